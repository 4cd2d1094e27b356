package main

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"curator/internal/hierarchy"
)

func newTreeCommand(ctx *commandContext) *cobra.Command {
	treeCmd := &cobra.Command{
		Use:   "tree",
		Short: "Inspect and refresh the hierarchy snapshot",
	}
	treeCmd.AddCommand(newTreeBuildCommand(ctx))
	treeCmd.AddCommand(newTreeShowCommand(ctx))
	treeCmd.AddCommand(newTreeClearCommand(ctx))
	return treeCmd
}

func newTreeBuildCommand(ctx *commandContext) *cobra.Command {
	var cacheMode string

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Fetch a fresh tree snapshot from the drive",
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := hierarchy.ParseCacheMode(cacheMode)
			if err != nil {
				return err
			}
			client, err := ctx.driveClient()
			if err != nil {
				return err
			}
			builder, err := ctx.treeBuilder(client)
			if err != nil {
				return err
			}
			tree, err := builder.Build(cmd.Context(), mode)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Built tree with %d folders (source: %s)\n",
				tree.FolderCount(), tree.Source)
			return nil
		},
	}

	cmd.Flags().StringVar(&cacheMode, "cache-mode", string(hierarchy.CacheModeWrite), "Tree cache mode: read-write, read, write, or none")
	return cmd
}

func newTreeShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the cached tree snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			tree, err := hierarchy.NewCache(cfg.Paths.HierarchyCache).Load()
			if err != nil {
				if hierarchy.IsCacheMiss(err) {
					return fmt.Errorf("no cached tree at %s; run `curator tree build` first", cfg.Paths.HierarchyCache)
				}
				return err
			}

			if jsonOut {
				return writeJSON(cmd, tree.Root)
			}

			rows := make([][]string, 0, len(tree.Root.Children))
			children := append([]*hierarchy.FolderNode(nil), tree.Root.Children...)
			sort.Slice(children, func(i, j int) bool { return children[i].Name < children[j].Name })
			for _, child := range children {
				rows = append(rows, []string{child.Name, child.ID, strconv.Itoa(len(child.Children))})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Snapshot built %s, %d folders total\n\n",
				formatTime(tree.BuiltAt), tree.FolderCount())
			fmt.Fprintln(out, renderTable(
				[]string{"Top-level folder", "ID", "Subfolders"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight},
			))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Dump the full tree as JSON")
	return cmd
}

func newTreeClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete the cached tree snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := hierarchy.NewCache(cfg.Paths.HierarchyCache).Clear(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Cleared hierarchy cache.")
			return nil
		},
	}
}
