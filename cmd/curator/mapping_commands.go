package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"curator/internal/mapping"
)

func newMappingCommand(ctx *commandContext) *cobra.Command {
	mappingCmd := &cobra.Command{
		Use:   "mapping",
		Short: "Inspect and review agency-to-folder mappings",
	}
	mappingCmd.AddCommand(newMappingListCommand(ctx))
	mappingCmd.AddCommand(newMappingPendingCommand(ctx))
	mappingCmd.AddCommand(newMappingReviewCommand(ctx))
	mappingCmd.AddCommand(newMappingSkipCommand(ctx))
	mappingCmd.AddCommand(newMappingRemoveCommand(ctx))
	return mappingCmd
}

func newMappingListCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List every stored mapping",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.mappingStore()
			if err != nil {
				return err
			}
			all, err := store.All()
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd, all)
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderMappings(all))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit mappings as JSON")
	return cmd
}

func newMappingPendingCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "pending",
		Short: "List mappings awaiting human review",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.mappingStore()
			if err != nil {
				return err
			}
			pending, err := store.PendingReview()
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd, pending)
			}
			if len(pending) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Nothing pending review.")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderMappings(pending))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit pending mappings as JSON")
	return cmd
}

func newMappingReviewCommand(ctx *commandContext) *cobra.Command {
	var folderID, folderName string

	cmd := &cobra.Command{
		Use:   "review <agency>",
		Short: "Approve a pending mapping, optionally rebinding its folder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.mappingStore()
			if err != nil {
				return err
			}
			m, err := store.MarkReviewed(args[0], folderID, folderName)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Reviewed %q -> %q (%s)\n", m.AgencyName, m.FolderName, m.FolderID)
			return nil
		},
	}

	cmd.Flags().StringVar(&folderID, "folder-id", "", "Bind the agency to this folder id instead of the computed match")
	cmd.Flags().StringVar(&folderName, "folder-name", "", "Folder name recorded alongside --folder-id")
	return cmd
}

func newMappingSkipCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "skip <agency>",
		Short: "Skip a pending mapping so runs stop proposing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.mappingStore()
			if err != nil {
				return err
			}
			m, err := store.MarkSkipped(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Skipped %q.\n", m.AgencyName)
			return nil
		},
	}
}

func newMappingRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <agency>",
		Short: "Delete a mapping so the next run recomputes it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.mappingStore()
			if err != nil {
				return err
			}
			if err := store.Remove(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed mapping for %q.\n", args[0])
			return nil
		},
	}
}

func renderMappings(mappings []mapping.Mapping) string {
	rows := make([][]string, 0, len(mappings))
	for _, m := range mappings {
		rows = append(rows, []string{
			m.AgencyName,
			m.FolderName,
			strconv.Itoa(m.Confidence),
			string(m.MatchType),
			formatOptionalTime(m.ReviewedAt),
			formatOptionalTime(m.SkippedAt),
		})
	}
	return renderTable(
		[]string{"Agency", "Folder", "Confidence", "Type", "Reviewed", "Skipped"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft, alignLeft},
	)
}
