package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"curator/internal/hierarchy"
	"curator/internal/merge"
	"curator/internal/reconcile"
	"curator/internal/rollback"
)

func newReconcileCommand(ctx *commandContext) *cobra.Command {
	var (
		dryRun       bool
		cacheMode    string
		resumePolicy string
		workers      int
		jsonOut      bool
	)

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Merge duplicate folders, map agencies, and file attachments",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			mode, err := hierarchy.ParseCacheMode(cacheMode)
			if err != nil {
				return err
			}
			policy, err := reconcile.ParseResumePolicy(resumePolicy)
			if err != nil {
				return err
			}
			if workers < 1 {
				workers = cfg.Merge.Workers
			}
			if !dryRun {
				dryRun = cfg.Merge.DryRun
			}

			return ctx.withStore(func(store *rollback.Store) error {
				runner, err := ctx.runner(store)
				if err != nil {
					return err
				}
				report, runErr := runner.Run(cmd.Context(), reconcile.Options{
					DryRun:       dryRun,
					CacheMode:    mode,
					ResumePolicy: policy,
					Workers:      workers,
				})
				if jsonOut {
					if err := writeJSON(cmd, report); err != nil {
						return err
					}
				} else {
					printRunReport(cmd, report, dryRun)
				}
				return runErr
			})
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Log intended actions without mutating anything")
	cmd.Flags().StringVar(&cacheMode, "cache-mode", string(hierarchy.CacheModeReadWrite), "Tree cache mode: read-write, read, write, or none")
	cmd.Flags().StringVar(&resumePolicy, "resume-policy", string(reconcile.ResumeFail), "What to do about open sessions from prior runs: fail, rollback, or ignore")
	cmd.Flags().IntVar(&workers, "workers", 0, "Merge worker pool size (defaults to merge.workers)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit the run report as JSON")
	return cmd
}

func printRunReport(cmd *cobra.Command, report reconcile.Report, dryRun bool) {
	out := cmd.OutOrStdout()

	rows := [][]string{
		mergeRow("suffix pass 1", report.SuffixPass1),
		mergeRow("exact pass", report.ExactPass),
		mergeRow("suffix pass 2", report.SuffixPass2),
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Merge pass", "Merged", "Abandoned", "Moves", "Trashed"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight},
	))

	fmt.Fprintf(out, "\nTree: %d folders (%s)\n", report.TreeFolders, report.TreeSource)
	fmt.Fprintf(out, "Mapping: %d exact, %d auto, %d pending review, %d preserved\n",
		report.Mapping.Exact, report.Mapping.Auto, report.Mapping.Manual, report.Mapping.Preserved)
	fmt.Fprintf(out, "Filing: %d filed, %d already done, %d unmapped, %d pending, %d folder missing\n",
		report.Filing.Filed, report.Filing.SkippedDone, report.Filing.SkippedUnmapped,
		report.Filing.SkippedPending, report.Filing.SkippedNoFolder)

	if len(report.RecoveredSessions) > 0 {
		fmt.Fprintf(out, "Recovered sessions: %s\n", strings.Join(report.RecoveredSessions, ", "))
	}
	switch {
	case dryRun:
		fmt.Fprintln(out, "Dry run: no mutations were issued.")
	case report.SessionCompleted:
		fmt.Fprintf(out, "Session %s completed.\n", report.SessionID)
	case report.SessionID != "":
		fmt.Fprintf(out, "Session %s remains OPEN; resolve it with `curator rollback run %s` or --resume-policy.\n",
			report.SessionID, report.SessionID)
	}
}

func mergeRow(label string, r merge.Report) []string {
	return []string{
		label,
		strconv.Itoa(r.GroupsMerged),
		strconv.Itoa(r.GroupsAbandoned),
		strconv.Itoa(r.ChildrenMoved),
		strconv.Itoa(r.SourcesTrashed),
	}
}
