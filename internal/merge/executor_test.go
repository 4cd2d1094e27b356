package merge_test

import (
	"context"
	"path/filepath"
	"testing"

	"curator/internal/dedupe"
	"curator/internal/drive"
	"curator/internal/hierarchy"
	"curator/internal/logging"
	"curator/internal/merge"
	"curator/internal/rollback"
)

type fixture struct {
	fake     *drive.Fake
	store    *rollback.Store
	executor *merge.Executor
	session  *rollback.Session
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	fake := drive.NewFake("root")
	store, err := rollback.Open(filepath.Join(t.TempDir(), "rollback.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	session, err := store.CreateSession(context.Background(), "test merge")
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	return &fixture{
		fake:     fake,
		store:    store,
		executor: merge.NewExecutor(fake, store, logging.NewNop()),
		session:  session,
	}
}

func buildTree(t *testing.T, fake *drive.Fake) *hierarchy.Tree {
	t.Helper()
	builder := hierarchy.NewBuilder(fake, nil, logging.NewNop(), hierarchy.BuilderOptions{RootFolderID: fake.RootID()})
	tree, err := builder.Build(context.Background(), hierarchy.CacheModeNone)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	return tree
}

func TestMergeSuffixDuplicatesIntoBase(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)

	target := fx.fake.AddFolder("root", "Smith Agency")
	source := fx.fake.AddFolder("root", "Smith Agency (1)")
	for _, name := range []string{"a.pdf", "b.pdf", "c.pdf", "d.pdf", "e.pdf"} {
		fx.fake.AddFile(target, name)
	}
	fx.fake.AddFile(source, "f.pdf")
	fx.fake.AddFile(source, "g.pdf")

	groups := dedupe.DetectSuffix(buildTree(t, fx.fake))
	if len(groups) != 1 {
		t.Fatalf("expected one group, got %#v", groups)
	}

	report, err := fx.executor.MergeGroups(ctx, groups, merge.Options{SessionID: fx.session.ID})
	if err != nil {
		t.Fatalf("MergeGroups failed: %v", err)
	}
	if report.GroupsMerged != 1 || report.ChildrenMoved != 2 || report.SourcesTrashed != 1 {
		t.Fatalf("unexpected report: %#v", report)
	}

	if got := len(fx.fake.ChildIDs(target)); got != 7 {
		t.Fatalf("expected 7 children under target, got %d", got)
	}
	if !fx.fake.Trashed(source) {
		t.Fatal("source should be trashed")
	}

	ops, err := fx.store.Operations(ctx, fx.session.ID)
	if err != nil {
		t.Fatalf("Operations failed: %v", err)
	}
	moves, trashes := 0, 0
	for _, op := range ops {
		switch op.Kind {
		case rollback.ActionMove:
			moves++
		case rollback.ActionTrash:
			trashes++
		}
	}
	if moves != 2 || trashes != 1 {
		t.Fatalf("expected 2 move and 1 trash compensations, got %d/%d", moves, trashes)
	}
}

func TestMergeThenRollbackRestoresTree(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)

	target := fx.fake.AddFolder("root", "Acme")
	source1 := fx.fake.AddFolder("root", "Acme (1)")
	source2 := fx.fake.AddFolder("root", "Acme (2)")
	f1 := fx.fake.AddFile(source1, "one.pdf")
	f2 := fx.fake.AddFile(source2, "two.pdf")
	sub := fx.fake.AddFolder(source2, "2021")

	groups := dedupe.DetectSuffix(buildTree(t, fx.fake))
	if _, err := fx.executor.MergeGroups(ctx, groups, merge.Options{SessionID: fx.session.ID}); err != nil {
		t.Fatalf("MergeGroups failed: %v", err)
	}
	if fx.fake.ParentOf(sub) != target {
		t.Fatal("sub-folder should have moved to the target")
	}

	manager := rollback.NewManager(fx.store, fx.fake, logging.NewNop())
	result, err := manager.Rollback(ctx, fx.session.ID)
	if err != nil {
		t.Fatalf("Rollback failed: %v", err)
	}
	if !result.RolledBack {
		t.Fatalf("expected full rollback, got %#v", result)
	}

	if fx.fake.ParentOf(f1) != source1 || fx.fake.ParentOf(f2) != source2 || fx.fake.ParentOf(sub) != source2 {
		t.Fatal("children should be restored to their original parents")
	}
	if fx.fake.Trashed(source1) || fx.fake.Trashed(source2) {
		t.Fatal("sources should be restored from trash")
	}
}

func TestMergeExactDuplicatesKeepsLargestMember(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)

	big := fx.fake.AddFolder("root", "Jones Agency")
	small := fx.fake.AddFolder("root", "Jones Agency")
	fx.fake.AddFolder(big, "2020")
	fx.fake.AddFolder(big, "2021")
	fx.fake.AddFile(small, "stray.pdf")

	groups := dedupe.DetectExact(buildTree(t, fx.fake))
	if len(groups) != 1 {
		t.Fatalf("expected one group, got %#v", groups)
	}
	if groups[0].TargetID != big {
		t.Fatalf("expected member with more children as target, got %s", groups[0].TargetID)
	}

	report, err := fx.executor.MergeGroups(ctx, groups, merge.Options{SessionID: fx.session.ID})
	if err != nil {
		t.Fatalf("MergeGroups failed: %v", err)
	}
	if report.ChildrenMoved != 1 || report.SourcesTrashed != 1 {
		t.Fatalf("unexpected report: %#v", report)
	}
	if got := len(fx.fake.ChildIDs(big)); got != 3 {
		t.Fatalf("expected 3 children under target, got %d", got)
	}
}

func TestDryRunTouchesNothing(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)

	fx.fake.AddFolder("root", "Acme")
	source := fx.fake.AddFolder("root", "Acme (1)")
	fx.fake.AddFile(source, "a.pdf")

	groups := dedupe.DetectSuffix(buildTree(t, fx.fake))
	report, err := fx.executor.MergeGroups(ctx, groups, merge.Options{DryRun: true})
	if err != nil {
		t.Fatalf("MergeGroups dry run failed: %v", err)
	}
	if report.GroupsMerged != 1 || report.ChildrenMoved != 1 {
		t.Fatalf("unexpected dry-run report: %#v", report)
	}

	if fx.fake.Trashed(source) {
		t.Fatal("dry run must not trash anything")
	}
	ops, err := fx.store.Operations(ctx, fx.session.ID)
	if err != nil {
		t.Fatalf("Operations failed: %v", err)
	}
	if len(ops) != 0 {
		t.Fatalf("dry run must not touch the rollback session, got %#v", ops)
	}
}

func TestMidGroupFailureLeavesAccuratePartialLog(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)

	fx.fake.AddFolder("root", "Acme")
	source := fx.fake.AddFolder("root", "Acme (1)")
	fx.fake.AddFile(source, "a.pdf")
	b := fx.fake.AddFile(source, "b.pdf")
	fx.fake.AddFile(source, "c.pdf")

	// Fail the second move permanently (no retry layer in this fixture).
	fx.fake.FailNext("move_item", b, 1)

	groups := dedupe.DetectSuffix(buildTree(t, fx.fake))
	report, err := fx.executor.MergeGroups(ctx, groups, merge.Options{SessionID: fx.session.ID})
	if err == nil {
		t.Fatal("expected mid-group failure to surface")
	}
	if report.GroupsAbandoned != 1 || report.GroupsMerged != 0 {
		t.Fatalf("unexpected report: %#v", report)
	}

	// One move succeeded before the failure; its compensation must be logged
	// and the source must not be trashed.
	ops, err := fx.store.Operations(ctx, fx.session.ID)
	if err != nil {
		t.Fatalf("Operations failed: %v", err)
	}
	if len(ops) != 1 || ops[0].Kind != rollback.ActionMove {
		t.Fatalf("expected exactly one logged move, got %#v", ops)
	}
	if fx.fake.Trashed(source) {
		t.Fatal("source must survive an abandoned merge")
	}
}

func TestIndependentGroupsMergeInParallel(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)

	for _, name := range []string{"Alpha", "Beta", "Gamma", "Delta"} {
		target := fx.fake.AddFolder("root", name)
		source := fx.fake.AddFolder("root", name+" (1)")
		fx.fake.AddFile(source, "doc.pdf")
		_ = target
	}

	groups := dedupe.DetectSuffix(buildTree(t, fx.fake))
	if len(groups) != 4 {
		t.Fatalf("expected 4 groups, got %d", len(groups))
	}

	report, err := fx.executor.MergeGroups(ctx, groups, merge.Options{SessionID: fx.session.ID, Workers: 4})
	if err != nil {
		t.Fatalf("MergeGroups failed: %v", err)
	}
	if report.GroupsMerged != 4 || report.ChildrenMoved != 4 || report.SourcesTrashed != 4 {
		t.Fatalf("unexpected report: %#v", report)
	}
}
