package reconcile_test

import (
	"context"
	"testing"
	"time"

	"github.com/gofrs/flock"

	"curator/internal/attach"
	"curator/internal/config"
	"curator/internal/drive"
	"curator/internal/hierarchy"
	"curator/internal/logging"
	"curator/internal/manifest"
	"curator/internal/mapping"
	"curator/internal/reconcile"
	"curator/internal/rollback"
	"curator/internal/testsupport"
)

type fixture struct {
	cfg        *config.Config
	fake       *drive.Fake
	store      *rollback.Store
	mappings   *mapping.Store
	extraction *manifest.ExtractionLedger
	renames    *manifest.RenameLedger
	runner     *reconcile.Runner
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	fake := drive.NewFake(cfg.Drive.RootFolderID)

	store, err := rollback.Open(cfg.RollbackDBPath())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	logger := logging.NewNop()
	mappings := mapping.NewStore(cfg.Paths.MappingStore)
	extraction := manifest.NewExtractionLedger(cfg.Paths.ExtractionManifest)
	renames := manifest.NewRenameLedger(cfg.Paths.RenameManifest)
	builder := hierarchy.NewBuilder(fake, nil, logger, hierarchy.BuilderOptions{RootFolderID: cfg.Drive.RootFolderID})

	runner := reconcile.NewRunner(reconcile.Deps{
		Config:     cfg,
		Client:     fake,
		Builder:    builder,
		Store:      store,
		Mappings:   mappings,
		Matcher:    mapping.NewMatcher(nil, cfg.Matching.AutoThreshold, logger),
		Extraction: extraction,
		Filer:      attach.NewFiler(fake, mappings, renames, store, logger),
		Logger:     logger,
	})
	return &fixture{
		cfg:        cfg,
		fake:       fake,
		store:      store,
		mappings:   mappings,
		extraction: extraction,
		renames:    renames,
		runner:     runner,
	}
}

// seedMessyDrive builds a drive with a suffix duplicate holding the
// attachment this run should file.
func (fx *fixture) seedMessyDrive(t *testing.T) (agencyID, yearID, attachmentID string) {
	t.Helper()
	agencyID = fx.fake.AddFolder("root", "Acme Insurance")
	yearID = fx.fake.AddFolder(agencyID, "2021")
	dupe := fx.fake.AddFolder("root", "Acme Insurance (1)")
	attachmentID = fx.fake.AddFile(dupe, "scan001.pdf")

	if _, err := fx.extraction.AddEntries([]manifest.ExtractionEntry{{
		FileID:          attachmentID,
		FileName:        "scan001.pdf",
		AgencyName:      "Acme Insurance",
		DeterminedYear:  "2021",
		SourceZipFileID: "Z1",
		ExtractedAt:     time.Now().UTC(),
	}}); err != nil {
		t.Fatalf("AddEntries failed: %v", err)
	}
	return agencyID, yearID, attachmentID
}

func TestRunMergesMapsAndFiles(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	_, yearID, attachmentID := fx.seedMessyDrive(t)

	report, err := fx.runner.Run(ctx, reconcile.Options{CacheMode: hierarchy.CacheModeNone})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if report.SuffixPass1.GroupsMerged != 1 {
		t.Fatalf("expected one suffix merge, got %#v", report.SuffixPass1)
	}
	if !report.SessionCompleted {
		t.Fatal("session should be completed on full success")
	}

	session, err := fx.store.GetSession(ctx, report.SessionID)
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if session.Status != rollback.StatusCompleted {
		t.Fatalf("expected completed session, got %s", session.Status)
	}

	m, err := fx.mappings.Get("Acme Insurance")
	if err != nil {
		t.Fatalf("Get mapping failed: %v", err)
	}
	if m == nil || m.MatchType != mapping.MatchExact {
		t.Fatalf("expected exact mapping after dedupe, got %#v", m)
	}
	if report.Mapping.Exact != 1 {
		t.Fatalf("unexpected mapping summary: %#v", report.Mapping)
	}

	if fx.fake.ParentOf(attachmentID) != yearID {
		t.Fatal("attachment should be filed into the year folder")
	}
	if report.Filing.Filed != 1 {
		t.Fatalf("unexpected filing report: %#v", report.Filing)
	}

	doc, err := fx.renames.Load()
	if err != nil {
		t.Fatalf("Load renames failed: %v", err)
	}
	if len(doc.Entries) != 1 || doc.Entries[0].FileID != attachmentID {
		t.Fatalf("unexpected rename ledger: %#v", doc.Entries)
	}
}

func TestRunIsIdempotentAcrossInvocations(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	fx.seedMessyDrive(t)

	if _, err := fx.runner.Run(ctx, reconcile.Options{CacheMode: hierarchy.CacheModeNone}); err != nil {
		t.Fatalf("first Run failed: %v", err)
	}
	report, err := fx.runner.Run(ctx, reconcile.Options{CacheMode: hierarchy.CacheModeNone})
	if err != nil {
		t.Fatalf("second Run failed: %v", err)
	}

	if report.SuffixPass1.GroupsMerged != 0 || report.ExactPass.GroupsMerged != 0 {
		t.Fatalf("second run should find nothing to merge: %#v", report)
	}
	if report.Filing.Filed != 0 || report.Filing.SkippedDone != 1 {
		t.Fatalf("second run should skip the ledgered attachment: %#v", report.Filing)
	}
}

func TestDryRunTouchesNoState(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	_, _, attachmentID := fx.seedMessyDrive(t)
	inboxParent := fx.fake.ParentOf(attachmentID)

	report, err := fx.runner.Run(ctx, reconcile.Options{CacheMode: hierarchy.CacheModeNone, DryRun: true})
	if err != nil {
		t.Fatalf("dry Run failed: %v", err)
	}
	if report.SessionID != "" {
		t.Fatal("dry run must not create a session")
	}
	if report.SuffixPass1.GroupsMerged != 1 {
		t.Fatalf("dry run should still report intended merges: %#v", report.SuffixPass1)
	}
	// Mappings are not persisted in a dry run, so filing defers the record.
	if report.Filing.Filed != 0 || report.Filing.SkippedUnmapped != 1 {
		t.Fatalf("unexpected dry-run filing report: %#v", report.Filing)
	}

	if fx.fake.ParentOf(attachmentID) != inboxParent {
		t.Fatal("dry run must not move the attachment")
	}
	sessions, err := fx.store.ListSessions(ctx)
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(sessions) != 0 {
		t.Fatalf("dry run must not persist sessions, got %d", len(sessions))
	}
	all, err := fx.mappings.All()
	if err != nil {
		t.Fatalf("All failed: %v", err)
	}
	if len(all) != 0 {
		t.Fatalf("dry run must not write mappings, got %#v", all)
	}
}

func TestOpenSessionBlocksNewRunByDefault(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	fx.seedMessyDrive(t)

	if _, err := fx.store.CreateSession(ctx, "stranded"); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	_, err := fx.runner.Run(ctx, reconcile.Options{CacheMode: hierarchy.CacheModeNone})
	if err == nil {
		t.Fatal("expected open session to block the run")
	}
}

func TestResumePolicyRollbackClearsOpenSessions(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	fx.seedMessyDrive(t)

	stranded, err := fx.store.CreateSession(ctx, "stranded")
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	report, err := fx.runner.Run(ctx, reconcile.Options{
		CacheMode:    hierarchy.CacheModeNone,
		ResumePolicy: reconcile.ResumeRollback,
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(report.RecoveredSessions) != 1 || report.RecoveredSessions[0] != stranded.ID {
		t.Fatalf("unexpected recovered sessions: %v", report.RecoveredSessions)
	}

	session, err := fx.store.GetSession(ctx, stranded.ID)
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if session.Status != rollback.StatusRolledBack {
		t.Fatalf("expected stranded session rolled back, got %s", session.Status)
	}
}

func TestConcurrentRunIsRefused(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	fx.seedMessyDrive(t)

	held := flock.New(fx.cfg.LockPath())
	locked, err := held.TryLock()
	if err != nil || !locked {
		t.Fatalf("could not pre-acquire lock: locked=%v err=%v", locked, err)
	}
	defer func() { _ = held.Unlock() }()

	if _, err := fx.runner.Run(ctx, reconcile.Options{CacheMode: hierarchy.CacheModeNone}); err == nil {
		t.Fatal("expected the state lock to refuse a concurrent run")
	}
}

func TestParseResumePolicy(t *testing.T) {
	cases := []struct {
		in      string
		want    reconcile.ResumePolicy
		wantErr bool
	}{
		{"", reconcile.ResumeFail, false},
		{"fail", reconcile.ResumeFail, false},
		{"Rollback", reconcile.ResumeRollback, false},
		{" ignore ", reconcile.ResumeIgnore, false},
		{"retry", "", true},
	}
	for _, tc := range cases {
		got, err := reconcile.ParseResumePolicy(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseResumePolicy(%q) expected error", tc.in)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Errorf("ParseResumePolicy(%q) = %q, %v; want %q", tc.in, got, err, tc.want)
		}
	}
}
