package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"paddock/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(newConfigInitCommand())
	configCmd.AddCommand(newConfigShowCommand(ctx))

	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string
	var overwrite bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Create a sample configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(targetPath)
			if target == "" {
				defaultPath, err := config.DefaultConfigPath()
				if err != nil {
					return fmt.Errorf("determine default config path: %w", err)
				}
				target = defaultPath
			} else {
				expanded, err := config.ExpandPath(target)
				if err != nil {
					return fmt.Errorf("resolve config path: %w", err)
				}
				target = expanded
			}

			dir := filepath.Dir(target)
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create config directory %q: %w", dir, err)
			}

			if !overwrite {
				if _, err := os.Stat(target); err == nil {
					return fmt.Errorf("config file already exists at %s (use --overwrite to replace it)", target)
				} else if err != nil && !os.IsNotExist(err) {
					return fmt.Errorf("check config path: %w", err)
				}
			}

			if err := config.CreateSample(target); err != nil {
				return fmt.Errorf("create sample config: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", target)
			fmt.Fprintln(out, "Edit the file to set car_dir before running paddockd.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite existing configuration if present")
	return cmd
}

func newConfigShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the resolved configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Car dir:              %s\n", cfg.Paths.CarDir)
			fmt.Fprintf(out, "Drop-off:             %s\n", cfg.Paths.InboxDir)
			fmt.Fprintf(out, "Sessions:             %s\n", cfg.Paths.SessionsDir)
			fmt.Fprintf(out, "Archive:              %s\n", cfg.Paths.ArchiveDir)
			fmt.Fprintf(out, "Logs:                 %s\n", cfg.Paths.LogDir)
			fmt.Fprintf(out, "Debounce:             %ds\n", cfg.Engine.DebounceSeconds)
			fmt.Fprintf(out, "Poll interval:        %ds\n", cfg.Engine.PollInterval)
			fmt.Fprintf(out, "Workers:              %d\n", cfg.Engine.WorkerCount)
			fmt.Fprintf(out, "Error retry interval: %ds\n", cfg.Engine.ErrorRetryInterval)
			fmt.Fprintf(out, "Force poll:           %s\n", yesNo(cfg.Engine.ForcePoll))
			fmt.Fprintf(out, "Archive enabled:      %s\n", yesNo(cfg.Archive.Enabled))
			return nil
		},
	}
}
