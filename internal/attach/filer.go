package attach

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"curator/internal/drive"
	"curator/internal/hierarchy"
	"curator/internal/logging"
	"curator/internal/manifest"
	"curator/internal/mapping"
	"curator/internal/rollback"
)

// Record is one attachment awaiting filing, already parsed and
// year-resolved upstream.
type Record struct {
	FileID         string
	FileName       string
	AgencyName     string
	DeterminedYear string
}

// Options controls one filing pass.
type Options struct {
	// DryRun logs intended actions without mutating the remote, the rename
	// ledger, or the rollback session.
	DryRun bool
	// SessionID, when set, receives a move compensation per filed record.
	SessionID string
}

// Failure records one attachment that could not be filed.
type Failure struct {
	Record Record
	Err    error
}

// Report summarizes a filing pass.
type Report struct {
	Filed           int
	SkippedDone     int
	SkippedUnmapped int
	SkippedPending  int
	SkippedNoFolder int
	Failures        []Failure
}

// Filer moves attachments into their mapped agency folders and records each
// completed move in the rename ledger, so interrupted runs resume without
// re-filing.
type Filer struct {
	client   drive.Client
	mappings *mapping.Store
	renames  *manifest.RenameLedger
	store    *rollback.Store
	logger   *slog.Logger
}

// NewFiler constructs a Filer. store may be nil when no rollback session
// will be used.
func NewFiler(client drive.Client, mappings *mapping.Store, renames *manifest.RenameLedger, store *rollback.Store, logger *slog.Logger) *Filer {
	return &Filer{
		client:   client,
		mappings: mappings,
		renames:  renames,
		store:    store,
		logger:   logging.NewComponentLogger(logger, "attach"),
	}
}

// File places each record into its destination folder under tree. Records
// already present in the rename ledger are skipped; records whose agency is
// unmapped or pending review are counted and left for a later run. Completed
// records are persisted to the rename ledger even when other records fail.
func (f *Filer) File(ctx context.Context, tree *hierarchy.Tree, records []Record, opts Options) (Report, error) {
	var report Report

	doc, err := f.renames.Load()
	if err != nil {
		return report, err
	}
	done := manifest.RenamedFileIDs(doc)

	var completed []manifest.RenameEntry
	for _, record := range records {
		if _, ok := done[record.FileID]; ok {
			report.SkippedDone++
			continue
		}

		dest, skip := f.resolveDestination(tree, record, &report)
		if skip {
			continue
		}

		if opts.DryRun {
			f.logger.Info("would file attachment",
				logging.String("file_id", record.FileID),
				logging.String("agency", record.AgencyName),
				logging.String(logging.FieldTargetID, dest))
			report.Filed++
			continue
		}

		entry, err := f.fileOne(ctx, record, dest, opts.SessionID)
		if err != nil {
			report.Failures = append(report.Failures, Failure{Record: record, Err: err})
			continue
		}
		completed = append(completed, entry)
		report.Filed++
	}

	if len(completed) > 0 {
		if _, err := f.renames.AddEntries(completed); err != nil {
			return report, fmt.Errorf("persist rename ledger: %w", err)
		}
	}

	if len(report.Failures) > 0 {
		errs := make([]error, 0, len(report.Failures))
		for _, failure := range report.Failures {
			errs = append(errs, fmt.Errorf("file %s for %q: %w", failure.Record.FileID, failure.Record.AgencyName, failure.Err))
		}
		return report, fmt.Errorf("attach: %d of %d records failed: %w", len(report.Failures), len(records), errors.Join(errs...))
	}
	return report, nil
}

// resolveDestination picks the folder a record belongs in: the mapped agency
// folder, or its year subfolder when one exists. skip=true means the record
// was counted into the report and must not be filed this run.
func (f *Filer) resolveDestination(tree *hierarchy.Tree, record Record, report *Report) (dest string, skip bool) {
	m, err := f.mappings.Get(record.AgencyName)
	if err != nil {
		report.Failures = append(report.Failures, Failure{Record: record, Err: err})
		return "", true
	}
	if m == nil {
		report.SkippedUnmapped++
		return "", true
	}
	if !m.Accepted() {
		report.SkippedPending++
		return "", true
	}

	agencyNode := tree.NodeByID(m.FolderID)
	if agencyNode == nil {
		f.logger.Warn("mapped folder missing from tree snapshot",
			logging.String("agency", record.AgencyName),
			logging.String(logging.FieldTargetID, m.FolderID))
		report.SkippedNoFolder++
		return "", true
	}

	dest = agencyNode.ID
	if record.DeterminedYear != "" {
		for _, child := range agencyNode.Children {
			if child.Name == record.DeterminedYear {
				dest = child.ID
				break
			}
		}
	}
	return dest, false
}

func (f *Filer) fileOne(ctx context.Context, record Record, dest, sessionID string) (manifest.RenameEntry, error) {
	meta, err := f.client.GetMetadata(ctx, record.FileID)
	if err != nil {
		return manifest.RenameEntry{}, fmt.Errorf("get metadata: %w", err)
	}

	fromParent := ""
	if len(meta.ParentIDs) > 0 {
		fromParent = meta.ParentIDs[0]
	}
	if fromParent != dest {
		if err := f.client.MoveItem(ctx, record.FileID, dest); err != nil {
			return manifest.RenameEntry{}, fmt.Errorf("move into %s: %w", dest, err)
		}
		if sessionID != "" && f.store != nil {
			if err := f.store.AppendOperation(ctx, sessionID, rollback.Action{
				Kind:         rollback.ActionMove,
				ItemID:       record.FileID,
				FromParentID: fromParent,
				ToParentID:   dest,
				Reversible:   true,
			}); err != nil {
				return manifest.RenameEntry{}, fmt.Errorf("append compensating action: %w", err)
			}
		}
	}

	newName := canonicalName(record)
	if meta.Name != newName {
		patch := drive.MetadataPatch{Name: &newName}
		if err := f.client.UpdateMetadata(ctx, record.FileID, patch); err != nil {
			return manifest.RenameEntry{}, fmt.Errorf("rename to %q: %w", newName, err)
		}
	}

	f.logger.Info("filed attachment",
		logging.String("file_id", record.FileID),
		logging.String("agency", record.AgencyName),
		logging.String("year", record.DeterminedYear),
		logging.String(logging.FieldTargetID, dest))

	return manifest.RenameEntry{
		FileID:         record.FileID,
		OriginalName:   meta.Name,
		NewName:        newName,
		AgencyName:     record.AgencyName,
		DeterminedYear: record.DeterminedYear,
		RenamedAt:      time.Now().UTC(),
	}, nil
}

// canonicalName builds the destination file name from the record's
// provenance.
func canonicalName(record Record) string {
	parts := []string{record.AgencyName}
	if record.DeterminedYear != "" {
		parts = append(parts, record.DeterminedYear)
	}
	parts = append(parts, record.FileName)
	return strings.Join(parts, " - ")
}
