package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newResultsCommand(ctx *commandContext) *cobra.Command {
	var showDuplicates bool
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "results <session-id>",
		Short: "List a session's processed results",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sessionID, err := parseID(args[0], "session")
			if err != nil {
				return err
			}
			return ctx.withReadAPI(cmd.Context(), func(reqCtx context.Context, reader readAPI) error {
				results, err := reader.SessionResults(reqCtx, sessionID)
				if err != nil {
					return err
				}
				if results == nil {
					fmt.Fprintf(cmd.OutOrStdout(), "Session %d not found\n", sessionID)
					return nil
				}
				if asJSON {
					return writeJSON(cmd, results)
				}

				stdout := cmd.OutOrStdout()
				if len(results.Results) == 0 {
					fmt.Fprintf(stdout, "Session %d has no processed results\n", sessionID)
					return nil
				}

				table := renderTable(
					[]string{"ID", "Pos", "URL", "Type", "Lang", "Score", "Dup Group"},
					buildResultRows(results.Results),
					[]columnAlignment{alignRight, alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
				)
				fmt.Fprintln(stdout, table)

				if showDuplicates {
					if len(results.Groups) == 0 {
						fmt.Fprintln(stdout, "No duplicate groups")
						return nil
					}
					groupTable := renderTable(
						[]string{"Group", "Method", "Canonical", "Members", "Confidence"},
						buildDuplicateGroupRows(results.Groups),
						[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignRight},
					)
					fmt.Fprintln(stdout, groupTable)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&showDuplicates, "duplicates", false, "Also list duplicate groups")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of a table")
	return cmd
}
