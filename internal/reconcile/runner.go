package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofrs/flock"

	"curator/internal/attach"
	"curator/internal/config"
	"curator/internal/dedupe"
	"curator/internal/drive"
	"curator/internal/hierarchy"
	"curator/internal/logging"
	"curator/internal/manifest"
	"curator/internal/mapping"
	"curator/internal/merge"
	"curator/internal/rollback"
)

// Deps carries the collaborators a Runner orchestrates.
type Deps struct {
	Config     *config.Config
	Client     drive.Client
	Builder    *hierarchy.Builder
	Store      *rollback.Store
	Mappings   *mapping.Store
	Matcher    *mapping.Matcher
	Extraction *manifest.ExtractionLedger
	Filer      *attach.Filer
	Logger     *slog.Logger
}

// Options controls one reconciliation run.
type Options struct {
	DryRun       bool
	CacheMode    hierarchy.CacheMode
	ResumePolicy ResumePolicy
	Workers      int
}

// MappingSummary counts what the agency mapping step produced.
type MappingSummary struct {
	Exact     int
	Auto      int
	Manual    int
	Preserved int
}

// Report is the user-visible summary of one run.
type Report struct {
	SessionID        string
	SessionCompleted bool

	TreeFolders int
	TreeSource  string

	SuffixPass1 merge.Report
	ExactPass   merge.Report
	SuffixPass2 merge.Report

	Mapping MappingSummary
	Filing  attach.Report

	RecoveredSessions []string
}

// Runner drives the full reconciliation sequence: build the tree, merge
// suffix duplicates, merge exact duplicates, re-run the suffix pass to catch
// duplicates the first merges exposed, map agencies onto the final tree, and
// file attachments. All merge passes share one rollback session that is
// completed only when the whole sequence succeeds.
type Runner struct {
	deps   Deps
	logger *slog.Logger
}

// NewRunner constructs a Runner.
func NewRunner(deps Deps) *Runner {
	return &Runner{
		deps:   deps,
		logger: logging.NewComponentLogger(deps.Logger, "reconcile"),
	}
}

// Run executes one reconciliation. The state directory lock enforces the
// single-writer assumption; a second concurrent run fails fast instead of
// corrupting shared state.
func (r *Runner) Run(ctx context.Context, opts Options) (Report, error) {
	var report Report

	lock := flock.New(r.deps.Config.LockPath())
	locked, err := lock.TryLock()
	if err != nil {
		return report, fmt.Errorf("acquire state lock: %w", err)
	}
	if !locked {
		return report, fmt.Errorf("another run holds the state lock at %s", r.deps.Config.LockPath())
	}
	defer func() { _ = lock.Unlock() }()

	recovered, err := r.recoverOpenSessions(ctx, opts)
	if err != nil {
		return report, err
	}
	report.RecoveredSessions = recovered

	sessionID := ""
	if !opts.DryRun {
		session, err := r.deps.Store.CreateSession(ctx, "reconcile "+time.Now().UTC().Format(time.RFC3339))
		if err != nil {
			return report, fmt.Errorf("create rollback session: %w", err)
		}
		sessionID = session.ID
	}
	report.SessionID = sessionID

	tree, err := r.deps.Builder.Build(ctx, opts.CacheMode)
	if err != nil {
		return report, fmt.Errorf("build hierarchy tree: %w", err)
	}
	r.logger.Info("hierarchy snapshot ready",
		logging.Int("folders", tree.FolderCount()),
		logging.String("source", tree.Source))

	mergeOpts := merge.Options{DryRun: opts.DryRun, SessionID: sessionID, Workers: opts.Workers}
	executor := merge.NewExecutor(r.deps.Client, r.deps.Store, r.deps.Logger)

	report.SuffixPass1, err = executor.MergeGroups(ctx, dedupe.DetectSuffix(tree), mergeOpts)
	if err != nil {
		return report, fmt.Errorf("suffix merge pass: %w", err)
	}
	if tree, err = r.rebuild(ctx, opts, false); err != nil {
		return report, err
	}

	report.ExactPass, err = executor.MergeGroups(ctx, dedupe.DetectExact(tree), mergeOpts)
	if err != nil {
		return report, fmt.Errorf("exact merge pass: %w", err)
	}
	if tree, err = r.rebuild(ctx, opts, false); err != nil {
		return report, err
	}

	// Second suffix pass catches duplicates the earlier merges exposed.
	report.SuffixPass2, err = executor.MergeGroups(ctx, dedupe.DetectSuffix(tree), mergeOpts)
	if err != nil {
		return report, fmt.Errorf("second suffix merge pass: %w", err)
	}
	if tree, err = r.rebuild(ctx, opts, true); err != nil {
		return report, err
	}
	report.TreeFolders = tree.FolderCount()
	report.TreeSource = tree.Source

	report.Mapping, err = r.mapAgencies(tree, opts.DryRun)
	if err != nil {
		return report, fmt.Errorf("map agencies: %w", err)
	}

	report.Filing, err = r.fileAttachments(ctx, tree, opts.DryRun, sessionID)
	if err != nil {
		return report, fmt.Errorf("file attachments: %w", err)
	}

	if sessionID != "" {
		if err := r.deps.Store.CompleteSession(ctx, sessionID); err != nil {
			return report, fmt.Errorf("complete rollback session: %w", err)
		}
		report.SessionCompleted = true
	}
	r.logger.Info("reconciliation complete",
		logging.String(logging.FieldSessionID, sessionID),
		logging.Bool(logging.FieldDryRun, opts.DryRun))
	return report, nil
}

// rebuild fetches a fresh snapshot after a merge pass. Intermediate rebuilds
// never touch the cache; the final rebuild refreshes it when the requested
// mode persists.
func (r *Runner) rebuild(ctx context.Context, opts Options, final bool) (*hierarchy.Tree, error) {
	mode := hierarchy.CacheModeNone
	if final && !opts.DryRun {
		switch opts.CacheMode {
		case hierarchy.CacheModeReadWrite, hierarchy.CacheModeWrite:
			mode = hierarchy.CacheModeWrite
		}
	}
	tree, err := r.deps.Builder.Build(ctx, mode)
	if err != nil {
		return nil, fmt.Errorf("rebuild hierarchy tree: %w", err)
	}
	return tree, nil
}

// mapAgencies scores every not-yet-mapped agency from the extraction ledger
// against the top-level folders of the final tree. Reviewed and skipped
// mappings are never recomputed.
func (r *Runner) mapAgencies(tree *hierarchy.Tree, dryRun bool) (MappingSummary, error) {
	var summary MappingSummary

	doc, err := r.deps.Extraction.Load()
	if err != nil {
		return summary, err
	}
	names := manifest.AgencyNames(doc)

	unmapped, err := r.deps.Mappings.Unmapped(names)
	if err != nil {
		return summary, err
	}

	candidates := make([]mapping.Candidate, 0, len(tree.Root.Children))
	for _, child := range tree.Root.Children {
		candidates = append(candidates, mapping.Candidate{ID: child.ID, Name: child.Name})
	}

	for _, name := range unmapped {
		match := r.deps.Matcher.Match(name, candidates)
		if !dryRun {
			stored, updated, err := r.deps.Mappings.Set(name, match)
			if err != nil {
				return summary, err
			}
			if !updated {
				summary.Preserved++
				r.logger.Info("kept existing review decision",
					logging.String("agency", name),
					logging.String("match_type", string(stored.MatchType)))
				continue
			}
		}
		switch match.MatchType {
		case mapping.MatchExact:
			summary.Exact++
		case mapping.MatchAuto:
			summary.Auto++
		default:
			summary.Manual++
		}
	}
	return summary, nil
}

// fileAttachments turns extraction ledger entries into filing records and
// hands them to the filer.
func (r *Runner) fileAttachments(ctx context.Context, tree *hierarchy.Tree, dryRun bool, sessionID string) (attach.Report, error) {
	doc, err := r.deps.Extraction.Load()
	if err != nil {
		return attach.Report{}, err
	}
	records := make([]attach.Record, 0, len(doc.Entries))
	for _, entry := range doc.Entries {
		records = append(records, attach.Record{
			FileID:         entry.FileID,
			FileName:       entry.FileName,
			AgencyName:     entry.AgencyName,
			DeterminedYear: entry.DeterminedYear,
		})
	}
	return r.deps.Filer.File(ctx, tree, records, attach.Options{DryRun: dryRun, SessionID: sessionID})
}
