package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"greylit/internal/api"
	"greylit/internal/ipc"
)

func newRunsCommand(ctx *commandContext) *cobra.Command {
	var sessionFlag int64
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List processing runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withReadAPI(cmd.Context(), func(reqCtx context.Context, reader readAPI) error {
				runs, err := reader.Runs(reqCtx, sessionFlag)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, map[string]any{"runs": runs})
				}
				if len(runs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No runs found")
					return nil
				}
				table := renderTable(
					[]string{"ID", "Session", "Status", "Stage", "Progress", "Dups", "Errors", "Started"},
					buildRunRows(runs),
					[]columnAlignment{alignRight, alignRight, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft},
				)
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}

	cmd.Flags().Int64Var(&sessionFlag, "session", 0, "Only list runs for this session")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of a table")
	return cmd
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "run <run-id>",
		Short: "Describe one processing run with its errors and progress feed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runID, err := parseID(args[0], "run")
			if err != nil {
				return err
			}
			return ctx.withReadAPI(cmd.Context(), func(reqCtx context.Context, reader readAPI) error {
				run, err := reader.DescribeRun(reqCtx, runID)
				if err != nil {
					return err
				}
				if run == nil {
					fmt.Fprintf(cmd.OutOrStdout(), "Run %d not found\n", runID)
					return nil
				}
				if asJSON {
					return writeJSON(cmd, run)
				}
				printRunDetail(cmd, run)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of the detail view")
	return cmd
}

func printRunDetail(cmd *cobra.Command, run *api.Run) {
	stdout := cmd.OutOrStdout()
	colorize := shouldColorize(stdout)

	for _, line := range renderSectionHeader(fmt.Sprintf("Run %d", run.ID), colorize) {
		fmt.Fprintln(stdout, line)
	}
	fmt.Fprintln(stdout, renderStatusLine("Session", statusInfo, fmt.Sprintf("%d", run.SessionID), colorize))
	fmt.Fprintln(stdout, renderStatusLine("Status", runStatusKind(run.Status), formatStatusLabel(run.Status), colorize))
	if run.CurrentStage != "" {
		fmt.Fprintln(stdout, renderStatusLine("Stage", statusInfo, formatStatusLabel(run.CurrentStage), colorize))
	}
	fmt.Fprintln(stdout, renderStatusLine("Progress", statusInfo, fmt.Sprintf("%d/%d processed", run.ProcessedCount, run.TotalRaw), colorize))
	fmt.Fprintln(stdout, renderStatusLine("Duplicates", statusInfo, fmt.Sprintf("%d", run.DuplicateCount), colorize))
	errorKind := statusInfo
	if run.ErrorCount > 0 {
		errorKind = statusWarn
	}
	fmt.Fprintln(stdout, renderStatusLine("Item errors", errorKind, fmt.Sprintf("%d", run.ErrorCount), colorize))
	fmt.Fprintln(stdout, renderStatusLine("Forced", statusInfo, yesNo(run.Force), colorize))
	if run.StartedAt != "" {
		fmt.Fprintln(stdout, renderStatusLine("Started", statusInfo, formatDisplayTime(run.StartedAt), colorize))
	}
	if run.CompletedAt != "" {
		fmt.Fprintln(stdout, renderStatusLine("Completed", statusInfo, formatDisplayTime(run.CompletedAt), colorize))
	}
	if run.ErrorMessage != "" {
		fmt.Fprintln(stdout, renderStatusLine("Error", statusError, run.ErrorMessage, colorize))
	}

	if len(run.Errors) > 0 {
		fmt.Fprintln(stdout)
		for _, line := range renderSectionHeader("Item Errors", colorize) {
			fmt.Fprintln(stdout, line)
		}
		for _, itemErr := range run.Errors {
			fmt.Fprintf(stdout, "%sraw result %d: %s\n", statusIndent, itemErr.RawResultID, itemErr.Message)
		}
	}

	if len(run.Events) > 0 {
		fmt.Fprintln(stdout)
		for _, line := range renderSectionHeader("Progress Feed", colorize) {
			fmt.Fprintln(stdout, line)
		}
		for _, event := range run.Events {
			stamp := formatDisplayTime(event.CreatedAt)
			if stamp != "" {
				fmt.Fprintf(stdout, "%s%s  [%s] %s\n", statusIndent, stamp, formatStatusLabel(event.Stage), event.Message)
			} else {
				fmt.Fprintf(stdout, "%s[%s] %s\n", statusIndent, formatStatusLabel(event.Stage), event.Message)
			}
		}
	}
}

func runStatusKind(status string) statusKind {
	switch status {
	case "completed":
		return statusOK
	case "failed":
		return statusError
	case "partial", "cancelled":
		return statusWarn
	default:
		return statusInfo
	}
}

func newCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <run-id>",
		Short: "Request cancellation of a processing run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runID, err := parseID(args[0], "run")
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.CancelRun(runID)
				if err != nil {
					return err
				}
				if resp.Accepted {
					fmt.Fprintf(cmd.OutOrStdout(), "Cancellation requested for run %d\n", runID)
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "Run %d is already finished\n", runID)
				}
				return nil
			})
		},
	}
}
