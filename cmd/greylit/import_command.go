package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"greylit/internal/ingest"
	"greylit/internal/store"
)

func newImportCommand(ctx *commandContext) *cobra.Command {
	var sessionFlag int64
	var nameFlag string

	cmd := &cobra.Command{
		Use:   "import <file.json|->",
		Short: "Import raw search results into a session",
		Long: `Import reads a JSON document of raw search results, either a bare array or
{"results": [...]}, from a file or stdin ("-") and appends them to a session.
Pass --session to target an existing session or --name to create a new one.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := strings.TrimSpace(nameFlag)
			if sessionFlag <= 0 && name == "" {
				return errors.New("either --session or --name is required")
			}

			payload, err := readImportPayload(cmd, args[0])
			if err != nil {
				return err
			}

			sessionID, imported, err := runImport(ctx, cmd, sessionFlag, name, payload)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d raw results into session %d\n", imported, sessionID)
			fmt.Fprintf(cmd.OutOrStdout(), "Process them with `greylit process %d`\n", sessionID)
			return nil
		},
	}

	cmd.Flags().Int64Var(&sessionFlag, "session", 0, "Target session ID")
	cmd.Flags().StringVar(&nameFlag, "name", "", "Create a new session with this name and import into it")
	return cmd
}

func readImportPayload(cmd *cobra.Command, arg string) ([]byte, error) {
	if strings.TrimSpace(arg) == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(arg)
	if err != nil {
		return nil, fmt.Errorf("read import file: %w", err)
	}
	return data, nil
}

// runImport sends the payload through the daemon when it is reachable and
// writes straight to the database when it is not.
func runImport(ctx *commandContext, cmd *cobra.Command, sessionID int64, name string, payload []byte) (int64, int, error) {
	client, err := ctx.dialClient()
	if err == nil {
		defer client.Close()
		resp, err := client.ImportResults(sessionID, name, payload)
		if err != nil {
			return 0, 0, err
		}
		return resp.SessionID, resp.Imported, nil
	}

	cfg, cfgErr := ctx.ensureConfig()
	if cfgErr != nil {
		return 0, 0, cfgErr
	}
	st, openErr := store.Open(cfg)
	if openErr != nil {
		return 0, 0, openErr
	}
	defer st.Close()

	reqCtx := cmd.Context()
	if sessionID <= 0 {
		session, err := st.CreateSession(reqCtx, name, store.SessionCreated)
		if err != nil {
			return 0, 0, fmt.Errorf("create session %q: %w", name, err)
		}
		sessionID = session.ID
	}

	importer := ingest.NewImporter(st)
	results, err := importer.ImportReader(reqCtx, sessionID, bytes.NewReader(payload))
	if err != nil {
		return sessionID, 0, err
	}
	return sessionID, len(results), nil
}
