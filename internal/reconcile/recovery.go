package reconcile

import (
	"context"
	"fmt"
	"strings"

	"curator/internal/logging"
	"curator/internal/rollback"
)

// ResumePolicy decides what a run does about rollback sessions left open by
// a prior crash or abandoned merge.
type ResumePolicy string

const (
	// ResumeFail refuses to start while any session is open.
	ResumeFail ResumePolicy = "fail"
	// ResumeRollback rolls every open session back before starting.
	ResumeRollback ResumePolicy = "rollback"
	// ResumeIgnore logs the open sessions and proceeds.
	ResumeIgnore ResumePolicy = "ignore"
)

// ParseResumePolicy validates a policy string. Empty defaults to fail.
func ParseResumePolicy(s string) (ResumePolicy, error) {
	switch ResumePolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", ResumeFail:
		return ResumeFail, nil
	case ResumeRollback:
		return ResumeRollback, nil
	case ResumeIgnore:
		return ResumeIgnore, nil
	}
	return "", fmt.Errorf("unknown resume policy %q (want fail, rollback, or ignore)", s)
}

// recoverOpenSessions applies the resume policy to sessions left active by
// earlier runs. Returns the ids of sessions rolled back.
func (r *Runner) recoverOpenSessions(ctx context.Context, opts Options) ([]string, error) {
	open, err := r.deps.Store.ListOpen(ctx)
	if err != nil {
		return nil, fmt.Errorf("list open sessions: %w", err)
	}
	if len(open) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(open))
	for _, session := range open {
		ids = append(ids, session.ID)
	}

	switch opts.ResumePolicy {
	case ResumeIgnore:
		r.logger.Warn("proceeding despite open rollback sessions",
			logging.String("session_ids", strings.Join(ids, ", ")))
		return nil, nil
	case ResumeRollback:
		if opts.DryRun {
			return nil, fmt.Errorf("refusing to roll back open sessions in a dry run: %s", strings.Join(ids, ", "))
		}
		manager := rollback.NewManager(r.deps.Store, r.deps.Client, r.deps.Logger)
		for _, id := range ids {
			result, err := manager.Rollback(ctx, id)
			if err != nil {
				return nil, fmt.Errorf("roll back open session %s (%d operations remain): %w", id, result.Remaining, err)
			}
			r.logger.Info("rolled back open session",
				logging.String(logging.FieldSessionID, id),
				logging.Int("reversed", result.Reversed),
				logging.Int("skipped", result.Skipped))
		}
		return ids, nil
	default:
		return nil, fmt.Errorf("open rollback sessions from a prior run: %s (use --resume-policy rollback or ignore)", strings.Join(ids, ", "))
	}
}
