package merge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"curator/internal/dedupe"
	"curator/internal/drive"
	"curator/internal/logging"
	"curator/internal/rollback"
)

// Options controls one merge pass.
type Options struct {
	// DryRun logs intended actions without issuing any mutating call and
	// without touching the rollback session.
	DryRun bool
	// SessionID is the active rollback session receiving compensating
	// actions. Required unless DryRun is set.
	SessionID string
	// Workers bounds the pool processing independent groups. Values below 1
	// collapse to sequential execution.
	Workers int
}

// GroupFailure records a group abandoned mid-merge.
type GroupFailure struct {
	Group dedupe.Group
	Err   error
}

// Report summarizes a merge pass. An abandoned group means the rollback
// session holds an accurate partial log for it.
type Report struct {
	GroupsMerged    int
	GroupsAbandoned int
	ChildrenMoved   int
	SourcesTrashed  int
	Failures        []GroupFailure
}

// Executor merges duplicate folder groups by moving every child of each
// source member into the group target and trashing the emptied sources.
type Executor struct {
	client drive.Client
	store  *rollback.Store
	logger *slog.Logger

	// mu serializes session-log appends; the log is the one resource merge
	// workers share.
	mu sync.Mutex
}

// NewExecutor constructs an Executor.
func NewExecutor(client drive.Client, store *rollback.Store, logger *slog.Logger) *Executor {
	return &Executor{
		client: client,
		store:  store,
		logger: logging.NewComponentLogger(logger, "merge"),
	}
}

// MergeGroups processes the given duplicate groups. Groups are independent
// by construction (the tree is rebuilt between passes), so they run on a
// bounded worker pool; moves within one group stay sequential relative to
// the shared target. The returned error is non-nil when any group was
// abandoned; the Report carries the per-group detail either way.
func (e *Executor) MergeGroups(ctx context.Context, groups []dedupe.Group, opts Options) (Report, error) {
	var report Report
	if len(groups) == 0 {
		return report, nil
	}
	if !opts.DryRun && opts.SessionID == "" {
		return report, errors.New("merge: rollback session id required outside dry run")
	}

	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(groups) {
		workers = len(groups)
	}

	var (
		reportMu sync.Mutex
		wg       sync.WaitGroup
		queue    = make(chan dedupe.Group)
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for group := range queue {
				moved, trashed, err := e.mergeGroup(ctx, group, opts)
				reportMu.Lock()
				report.ChildrenMoved += moved
				report.SourcesTrashed += trashed
				if err != nil {
					report.GroupsAbandoned++
					report.Failures = append(report.Failures, GroupFailure{Group: group, Err: err})
				} else {
					report.GroupsMerged++
				}
				reportMu.Unlock()
			}
		}()
	}

	for _, group := range groups {
		queue <- group
	}
	close(queue)
	wg.Wait()

	if report.GroupsAbandoned > 0 {
		errs := make([]error, 0, len(report.Failures))
		for _, failure := range report.Failures {
			errs = append(errs, fmt.Errorf("group %q under %s: %w", failure.Group.Name, failure.Group.ParentID, failure.Err))
		}
		return report, fmt.Errorf("merge: %d of %d groups abandoned: %w",
			report.GroupsAbandoned, len(groups), errors.Join(errs...))
	}
	return report, nil
}

func (e *Executor) mergeGroup(ctx context.Context, group dedupe.Group, opts Options) (moved, trashed int, err error) {
	logger := e.logger.With(
		logging.String("group", group.Name),
		logging.String(logging.FieldTargetID, group.TargetID),
		logging.Bool(logging.FieldDryRun, opts.DryRun))

	for _, sourceID := range group.SourceIDs {
		children, err := e.listAllChildren(ctx, sourceID)
		if err != nil {
			return moved, trashed, err
		}

		for _, child := range children {
			if opts.DryRun {
				logger.Info("would move child",
					logging.String("child_id", child.ID),
					logging.String("child_name", child.Name),
					logging.String("from", sourceID))
				moved++
				continue
			}
			if err := e.client.MoveItem(ctx, child.ID, group.TargetID); err != nil {
				return moved, trashed, fmt.Errorf("move %s into %s: %w", child.ID, group.TargetID, err)
			}
			if err := e.appendAction(ctx, opts.SessionID, rollback.Action{
				Kind:         rollback.ActionMove,
				ItemID:       child.ID,
				FromParentID: sourceID,
				ToParentID:   group.TargetID,
				Reversible:   true,
			}); err != nil {
				return moved, trashed, err
			}
			moved++
		}

		if opts.DryRun {
			logger.Info("would trash emptied source", logging.String("source_id", sourceID))
			trashed++
			continue
		}
		if err := e.client.TrashItem(ctx, sourceID); err != nil {
			return moved, trashed, fmt.Errorf("trash emptied source %s: %w", sourceID, err)
		}
		if err := e.appendAction(ctx, opts.SessionID, rollback.Action{
			Kind:       rollback.ActionTrash,
			ItemID:     sourceID,
			Reversible: true,
		}); err != nil {
			return moved, trashed, err
		}
		trashed++
	}

	if !opts.DryRun {
		e.annotateTarget(ctx, group, moved)
	}

	logger.Info("merged duplicate group",
		logging.Int("children_moved", moved),
		logging.Int("sources_trashed", trashed))
	return moved, trashed, nil
}

// listAllChildren drains the paginated listing of one folder, files and
// sub-folders alike.
func (e *Executor) listAllChildren(ctx context.Context, folderID string) ([]drive.Item, error) {
	var items []drive.Item
	pageToken := ""
	for {
		page, err := e.client.ListChildren(ctx, folderID, pageToken)
		if err != nil {
			return nil, fmt.Errorf("list children of %s: %w", folderID, err)
		}
		items = append(items, page.Items...)
		if page.NextPageToken == "" {
			return items, nil
		}
		pageToken = page.NextPageToken
	}
}

func (e *Executor) appendAction(ctx context.Context, sessionID string, action rollback.Action) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.store.AppendOperation(ctx, sessionID, action); err != nil {
		return fmt.Errorf("append compensating action: %w", err)
	}
	return nil
}

// annotateTarget leaves a provenance note on the merge target. Best-effort:
// a retrying client degrades oversized notes to a minimal patch, and any
// remaining failure is logged rather than abandoning the already-merged group.
func (e *Executor) annotateTarget(ctx context.Context, group dedupe.Group, moved int) {
	note := fmt.Sprintf("curator: absorbed %d duplicate folder(s) of %q (%d items) on %s",
		len(group.SourceIDs), group.Name, moved, time.Now().UTC().Format("2006-01-02"))
	patch := drive.MetadataPatch{Description: &note}
	if err := e.client.UpdateMetadata(ctx, group.TargetID, patch); err != nil {
		e.logger.Warn("failed to annotate merge target",
			logging.String(logging.FieldTargetID, group.TargetID),
			logging.Error(err))
	}
}
