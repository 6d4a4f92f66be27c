package main

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/spf13/cobra"

	"paddock/internal/classify"
)

var sessionDatePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// newNewSessionCommand reserves the next free session key for a date/track
// pair and creates its workspace directory so the key stays taken.
func newNewSessionCommand(ctx *commandContext) *cobra.Command {
	var tag string

	cmd := &cobra.Command{
		Use:   "new-session <date> <track>",
		Short: "Reserve the next free session key for a date and track",
		Long: `Reserve a session key under the sessions directory.

Without --tag the key gets the next free two-digit run number for the
date and track. With --tag the preferred tag is used as-is, falling back
to an alphabetic disambiguator (-a, -b, ...) when the key is taken.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			date, track := args[0], args[1]
			if !sessionDatePattern.MatchString(date) {
				return fmt.Errorf("date %q must be YYYY-MM-DD", date)
			}

			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			key, err := classify.Build(cfg.Paths.SessionsDir, date, track, tag)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Join(cfg.Paths.SessionsDir, key), 0o755); err != nil {
				return fmt.Errorf("create session workspace: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), key)
			return nil
		},
	}

	cmd.Flags().StringVar(&tag, "tag", "", "Preferred run tag; a taken key falls back to -a, -b, ...")
	return cmd
}
