package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"paddock/internal/ipc"
)

func newSessionsCommand(ctx *commandContext) *cobra.Command {
	var statusFilters []string

	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List session bundles tracked by the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.SessionsList(statusFilters)
				if err != nil {
					return err
				}
				printSessions(cmd, resp.Sessions)
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVar(&statusFilters, "status", nil, "Filter by bundle status (repeatable)")
	return cmd
}

func printSessions(cmd *cobra.Command, sessions []ipc.Session) {
	out := cmd.OutOrStdout()
	if len(sessions) == 0 {
		fmt.Fprintln(out, "No session bundles.")
		return
	}

	headers := []string{"Session", "Status", "Files", "Last seen", "Error"}
	rows := make([][]string, 0, len(sessions))
	for _, s := range sessions {
		rows = append(rows, []string{
			s.SessionKey,
			s.Status,
			strconv.Itoa(s.FileCount),
			s.LastSeenAt.Local().Format(time.DateTime),
			s.ErrorMessage,
		})
	}
	fmt.Fprintln(out, renderTable(headers, rows, []columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft}))
}
