package attach_test

import (
	"context"
	"path/filepath"
	"testing"

	"curator/internal/attach"
	"curator/internal/drive"
	"curator/internal/hierarchy"
	"curator/internal/logging"
	"curator/internal/manifest"
	"curator/internal/mapping"
	"curator/internal/rollback"
)

type fixture struct {
	fake     *drive.Fake
	mappings *mapping.Store
	renames  *manifest.RenameLedger
	filer    *attach.Filer

	agencyFolder string
	yearFolder   string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	fake := drive.NewFake("root")
	mappings := mapping.NewStore(filepath.Join(dir, "agency_mappings.json"))
	renames := manifest.NewRenameLedger(filepath.Join(dir, "rename_manifest.json"))

	agencyFolder := fake.AddFolder("root", "Acme Insurance")
	yearFolder := fake.AddFolder(agencyFolder, "2021")

	if _, _, err := mappings.Set("Acme Insurance", mapping.Mapping{
		FolderID:   agencyFolder,
		FolderName: "Acme Insurance",
		Confidence: 100,
		MatchType:  mapping.MatchExact,
	}); err != nil {
		t.Fatalf("Set mapping failed: %v", err)
	}

	return &fixture{
		fake:         fake,
		mappings:     mappings,
		renames:      renames,
		filer:        attach.NewFiler(fake, mappings, renames, nil, logging.NewNop()),
		agencyFolder: agencyFolder,
		yearFolder:   yearFolder,
	}
}

func (fx *fixture) tree(t *testing.T) *hierarchy.Tree {
	t.Helper()
	builder := hierarchy.NewBuilder(fx.fake, nil, logging.NewNop(), hierarchy.BuilderOptions{RootFolderID: fx.fake.RootID()})
	tree, err := builder.Build(context.Background(), hierarchy.CacheModeNone)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	return tree
}

func TestFileMovesRenamesAndLedgers(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	inbox := fx.fake.AddFolder("root", "_inbox")
	fileID := fx.fake.AddFile(inbox, "scan001.pdf")

	records := []attach.Record{{
		FileID: fileID, FileName: "scan001.pdf", AgencyName: "Acme Insurance", DeterminedYear: "2021",
	}}
	report, err := fx.filer.File(ctx, fx.tree(t), records, attach.Options{})
	if err != nil {
		t.Fatalf("File failed: %v", err)
	}
	if report.Filed != 1 {
		t.Fatalf("unexpected report: %#v", report)
	}
	if fx.fake.ParentOf(fileID) != fx.yearFolder {
		t.Fatal("file should land in the year subfolder")
	}
	meta, err := fx.fake.GetMetadata(ctx, fileID)
	if err != nil {
		t.Fatalf("GetMetadata failed: %v", err)
	}
	if meta.Name != "Acme Insurance - 2021 - scan001.pdf" {
		t.Fatalf("unexpected name %q", meta.Name)
	}

	doc, err := fx.renames.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(doc.Entries) != 1 || doc.Entries[0].OriginalName != "scan001.pdf" {
		t.Fatalf("unexpected ledger: %#v", doc.Entries)
	}
}

func TestSecondRunSkipsLedgeredRecords(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	inbox := fx.fake.AddFolder("root", "_inbox")
	fileID := fx.fake.AddFile(inbox, "scan001.pdf")

	records := []attach.Record{{
		FileID: fileID, FileName: "scan001.pdf", AgencyName: "Acme Insurance", DeterminedYear: "2021",
	}}
	if _, err := fx.filer.File(ctx, fx.tree(t), records, attach.Options{}); err != nil {
		t.Fatalf("File failed: %v", err)
	}

	report, err := fx.filer.File(ctx, fx.tree(t), records, attach.Options{})
	if err != nil {
		t.Fatalf("File failed: %v", err)
	}
	if report.Filed != 0 || report.SkippedDone != 1 {
		t.Fatalf("expected rerun to skip, got %#v", report)
	}
}

func TestUnmappedAndPendingAgenciesAreDeferred(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	inbox := fx.fake.AddFolder("root", "_inbox")
	f1 := fx.fake.AddFile(inbox, "a.pdf")
	f2 := fx.fake.AddFile(inbox, "b.pdf")

	if _, _, err := fx.mappings.Set("Pending Co", mapping.Mapping{
		FolderID: fx.agencyFolder, Confidence: 60, MatchType: mapping.MatchManual,
	}); err != nil {
		t.Fatalf("Set mapping failed: %v", err)
	}

	records := []attach.Record{
		{FileID: f1, FileName: "a.pdf", AgencyName: "Nobody Knows"},
		{FileID: f2, FileName: "b.pdf", AgencyName: "Pending Co"},
	}
	report, err := fx.filer.File(ctx, fx.tree(t), records, attach.Options{})
	if err != nil {
		t.Fatalf("File failed: %v", err)
	}
	if report.SkippedUnmapped != 1 || report.SkippedPending != 1 || report.Filed != 0 {
		t.Fatalf("unexpected report: %#v", report)
	}
	if fx.fake.ParentOf(f1) != inbox || fx.fake.ParentOf(f2) != inbox {
		t.Fatal("deferred records must not move")
	}
}

func TestMissingYearFolderFallsBackToAgencyFolder(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	inbox := fx.fake.AddFolder("root", "_inbox")
	fileID := fx.fake.AddFile(inbox, "scan.pdf")

	records := []attach.Record{{
		FileID: fileID, FileName: "scan.pdf", AgencyName: "Acme Insurance", DeterminedYear: "1999",
	}}
	report, err := fx.filer.File(ctx, fx.tree(t), records, attach.Options{})
	if err != nil {
		t.Fatalf("File failed: %v", err)
	}
	if report.Filed != 1 {
		t.Fatalf("unexpected report: %#v", report)
	}
	if fx.fake.ParentOf(fileID) != fx.agencyFolder {
		t.Fatal("file should fall back to the agency folder")
	}
}

func TestDryRunTouchesNothing(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	inbox := fx.fake.AddFolder("root", "_inbox")
	fileID := fx.fake.AddFile(inbox, "scan.pdf")

	records := []attach.Record{{
		FileID: fileID, FileName: "scan.pdf", AgencyName: "Acme Insurance", DeterminedYear: "2021",
	}}
	report, err := fx.filer.File(ctx, fx.tree(t), records, attach.Options{DryRun: true})
	if err != nil {
		t.Fatalf("File failed: %v", err)
	}
	if report.Filed != 1 {
		t.Fatalf("unexpected dry-run report: %#v", report)
	}
	if fx.fake.ParentOf(fileID) != inbox {
		t.Fatal("dry run must not move files")
	}
	doc, err := fx.renames.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(doc.Entries) != 0 {
		t.Fatalf("dry run must not write the ledger, got %#v", doc.Entries)
	}
}

func TestFilingLogsMoveCompensation(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	inbox := fx.fake.AddFolder("root", "_inbox")
	fileID := fx.fake.AddFile(inbox, "scan.pdf")

	store, err := rollback.Open(filepath.Join(t.TempDir(), "rollback.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	session, err := store.CreateSession(ctx, "file attachments")
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	filer := attach.NewFiler(fx.fake, fx.mappings, fx.renames, store, logging.NewNop())
	records := []attach.Record{{
		FileID: fileID, FileName: "scan.pdf", AgencyName: "Acme Insurance", DeterminedYear: "2021",
	}}
	if _, err := filer.File(ctx, fx.tree(t), records, attach.Options{SessionID: session.ID}); err != nil {
		t.Fatalf("File failed: %v", err)
	}

	ops, err := store.Operations(ctx, session.ID)
	if err != nil {
		t.Fatalf("Operations failed: %v", err)
	}
	if len(ops) != 1 || ops[0].Kind != rollback.ActionMove || ops[0].FromParentID != inbox {
		t.Fatalf("unexpected compensations: %#v", ops)
	}
}
