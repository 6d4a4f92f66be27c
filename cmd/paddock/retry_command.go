package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"paddock/internal/ipc"
)

func newRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry [session-key...]",
		Short: "Queue failed session bundles for reprocessing",
		Long:  "With no arguments, every failed bundle is queued for another pass.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Retry(args)
				if err != nil {
					return err
				}
				if resp.Updated == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No failed bundles to retry.")
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Queued %d bundle(s) for reprocessing.\n", resp.Updated)
				return nil
			})
		},
	}
}
