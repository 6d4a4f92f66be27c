package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"paddock/internal/bundle"
	"paddock/internal/catalog"
	"paddock/internal/engine"
	"paddock/internal/inbox"
	"paddock/internal/logging"
	"paddock/internal/session"
)

// newProcessCommand runs one synchronous ingestion sweep without the daemon.
// It uses the same stores and marker rules, so it is safe to mix with daemon
// runs as long as only one of them executes at a time.
func newProcessCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "process",
		Short: "Run a one-shot ingestion pass over the drop-off directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return err
			}

			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return err
			}

			store, err := bundle.Open(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			index, err := catalog.Open(cfg)
			if err != nil {
				return err
			}
			defer index.Close()

			manager := session.NewManager(cfg, logger, index)
			eng := engine.New(cfg, logger, store, inbox.New(cfg, logger), manager)

			if err := eng.RunOnce(cmd.Context()); err != nil {
				return fmt.Errorf("ingestion pass: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Ingestion pass complete.")
			return nil
		},
	}
}
