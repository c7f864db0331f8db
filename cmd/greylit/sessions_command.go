package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newSessionsCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List review sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withReadAPI(cmd.Context(), func(reqCtx context.Context, reader readAPI) error {
				sessions, err := reader.Sessions(reqCtx)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, map[string]any{"sessions": sessions})
				}
				if len(sessions) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No sessions found")
					return nil
				}
				table := renderTable(
					[]string{"ID", "Name", "Status", "Raw Results", "Created"},
					buildSessionRows(sessions),
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignLeft},
				)
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of a table")
	return cmd
}
