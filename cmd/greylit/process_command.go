package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"greylit/internal/ipc"
)

func newProcessCommand(ctx *commandContext) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "process <session-id>",
		Short: "Start a processing run for a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sessionID, err := parseID(args[0], "session")
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Process(sessionID, force)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Started run %d for session %d\n", resp.RunID, sessionID)
				fmt.Fprintf(cmd.OutOrStdout(), "Watch it with `greylit run %d`\n", resp.RunID)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Reprocess raw results that already have processed rows")
	return cmd
}

func parseID(arg, noun string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s id %q", noun, arg)
	}
	return id, nil
}
