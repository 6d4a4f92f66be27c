package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"paddock/internal/ipc"
)

const (
	ansiReset = "\x1b[0m"
	ansiRed   = "\x1b[31m"
	ansiGreen = "\x1b[32m"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon and bundle store status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				status, err := client.Status()
				if err != nil {
					return err
				}
				printStatus(cmd, status)
				return nil
			})
		},
	}
}

func printStatus(cmd *cobra.Command, status *ipc.StatusResponse) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)

	state := "stopped"
	color := ansiRed
	if status.Running {
		state = "running"
		color = ansiGreen
	}
	if colorize {
		state = color + state + ansiReset
	}

	fmt.Fprintf(out, "Daemon:    %s (pid %d)\n", state, status.PID)
	fmt.Fprintf(out, "Car dir:   %s\n", status.CarDir)
	fmt.Fprintf(out, "Drop-off:  %s\n", status.InboxDir)
	fmt.Fprintf(out, "Bundle DB: %s\n", status.BundleDBPath)
	fmt.Fprintf(out, "Lock:      %s\n", status.LockPath)
	fmt.Fprintln(out)

	headers := []string{"Status", "Count"}
	rows := make([][]string, 0, len(status.BundleStats))
	for _, name := range []string{"accumulating", "ready", "processing", "done", "failed"} {
		rows = append(rows, []string{name, fmt.Sprintf("%d", status.BundleStats[name])})
	}
	fmt.Fprintln(out, renderTable(headers, rows, []columnAlignment{alignLeft, alignRight}))
}
