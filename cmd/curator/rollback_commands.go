package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"curator/internal/rollback"
)

func newRollbackCommand(ctx *commandContext) *cobra.Command {
	rollbackCmd := &cobra.Command{
		Use:   "rollback",
		Short: "Inspect and replay rollback sessions",
	}
	rollbackCmd.AddCommand(newRollbackListCommand(ctx))
	rollbackCmd.AddCommand(newRollbackRunCommand(ctx))
	return rollbackCmd
}

func newRollbackListCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List rollback sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *rollback.Store) error {
				sessions, err := store.ListSessions(cmd.Context())
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, sessions)
				}
				if len(sessions) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No rollback sessions recorded.")
					return nil
				}

				rows := make([][]string, 0, len(sessions))
				for _, session := range sessions {
					ops, err := store.Operations(cmd.Context(), session.ID)
					if err != nil {
						return err
					}
					pending, err := store.PendingOperations(cmd.Context(), session.ID)
					if err != nil {
						return err
					}
					rows = append(rows, []string{
						session.ID,
						session.Label,
						string(session.Status),
						strconv.Itoa(len(ops)),
						strconv.Itoa(len(pending)),
						formatTime(session.CreatedAt),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"Session", "Label", "Status", "Ops", "Pending", "Created"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit sessions as JSON")
	return cmd
}

func newRollbackRunCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run <session-id>",
		Short: "Reverse an open session's operations, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.driveClient()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			return ctx.withStore(func(store *rollback.Store) error {
				manager := rollback.NewManager(store, client, logger)
				result, err := manager.Rollback(cmd.Context(), args[0])

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Reversed %d, skipped %d (non-reversible), %d remaining.\n",
					result.Reversed, result.Skipped, result.Remaining)
				if err != nil {
					return fmt.Errorf("rollback incomplete; rerun to resume: %w", err)
				}
				fmt.Fprintf(out, "Session %s rolled back.\n", args[0])
				return nil
			})
		},
	}
}
