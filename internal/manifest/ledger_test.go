package manifest_test

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"curator/internal/drive"
	"curator/internal/manifest"
)

func extractionLedger(t *testing.T) *manifest.ExtractionLedger {
	t.Helper()
	return manifest.NewExtractionLedger(filepath.Join(t.TempDir(), "extraction_manifest.json"))
}

func extractionEntry(fileID, zipID, agency string) manifest.ExtractionEntry {
	return manifest.ExtractionEntry{
		FileID:            fileID,
		FileName:          fileID + ".pdf",
		AgencyName:        agency,
		DeterminedYear:    "2021",
		SourceZipFileID:   zipID,
		SourceZipFileName: zipID + ".zip",
		ZipPath:           "docs/" + fileID + ".pdf",
		ExtractedAt:       time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestLoadAbsentFileYieldsEmptyManifest(t *testing.T) {
	ledger := extractionLedger(t)

	doc, err := ledger.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if doc.Version != 1 || len(doc.Entries) != 0 {
		t.Fatalf("unexpected empty manifest: %#v", doc)
	}
}

func TestLoadCorruptFileIsStructural(t *testing.T) {
	path := filepath.Join(t.TempDir(), "extraction_manifest.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	_, err := manifest.NewExtractionLedger(path).Load()
	if err == nil {
		t.Fatal("expected corrupt manifest to fail")
	}
	if !drive.IsStructural(err) {
		t.Fatalf("expected structural error, got %v", err)
	}
}

func TestAddEntriesReplacesByZipID(t *testing.T) {
	ledger := extractionLedger(t)

	first := []manifest.ExtractionEntry{
		extractionEntry("f1", "Z1", "Acme"),
		extractionEntry("f2", "Z1", "Acme"),
		extractionEntry("f3", "Z2", "Jones"),
	}
	if _, err := ledger.AddEntries(first); err != nil {
		t.Fatalf("AddEntries failed: %v", err)
	}

	// Re-extracting Z1 supersedes its old entries; Z2 survives untouched.
	second := []manifest.ExtractionEntry{
		extractionEntry("f4", "Z1", "Acme"),
	}
	doc, err := ledger.AddEntries(second)
	if err != nil {
		t.Fatalf("AddEntries failed: %v", err)
	}

	var ids []string
	for _, entry := range doc.Entries {
		ids = append(ids, entry.FileID)
	}
	if !reflect.DeepEqual(ids, []string{"f3", "f4"}) {
		t.Fatalf("expected [f3 f4], got %v", ids)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	ledger := extractionLedger(t)
	if _, err := ledger.AddEntries([]manifest.ExtractionEntry{
		extractionEntry("f1", "Z1", "Acme"),
		extractionEntry("f2", "Z2", "Jones"),
	}); err != nil {
		t.Fatalf("AddEntries failed: %v", err)
	}

	before, err := ledger.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if err := ledger.Save(before); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	after, err := ledger.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !reflect.DeepEqual(before.Entries, after.Entries) {
		t.Fatalf("round trip changed entries: %#v vs %#v", before.Entries, after.Entries)
	}
}

func TestAddNoEntriesKeepsManifestIntact(t *testing.T) {
	ledger := extractionLedger(t)
	if _, err := ledger.AddEntries([]manifest.ExtractionEntry{
		extractionEntry("f1", "Z1", "Acme"),
	}); err != nil {
		t.Fatalf("AddEntries failed: %v", err)
	}

	doc, err := ledger.AddEntries(nil)
	if err != nil {
		t.Fatalf("AddEntries failed: %v", err)
	}
	if len(doc.Entries) != 1 || doc.Entries[0].FileID != "f1" {
		t.Fatalf("empty add must not disturb entries: %#v", doc.Entries)
	}
}

func TestRemoveEntriesByFileID(t *testing.T) {
	ledger := extractionLedger(t)
	if _, err := ledger.AddEntries([]manifest.ExtractionEntry{
		extractionEntry("f1", "Z1", "Acme"),
		extractionEntry("f2", "Z1", "Acme"),
	}); err != nil {
		t.Fatalf("AddEntries failed: %v", err)
	}

	doc, err := ledger.RemoveEntries([]string{"f1", "unknown"})
	if err != nil {
		t.Fatalf("RemoveEntries failed: %v", err)
	}
	if len(doc.Entries) != 1 || doc.Entries[0].FileID != "f2" {
		t.Fatalf("expected only f2 to remain, got %#v", doc.Entries)
	}
}

func TestRenameLedgerReplacesPerFile(t *testing.T) {
	ledger := manifest.NewRenameLedger(filepath.Join(t.TempDir(), "rename_manifest.json"))

	if _, err := ledger.AddEntries([]manifest.RenameEntry{
		{FileID: "f1", OriginalName: "scan001.pdf", NewName: "Acme - 2021 - scan001.pdf", AgencyName: "Acme"},
	}); err != nil {
		t.Fatalf("AddEntries failed: %v", err)
	}
	doc, err := ledger.AddEntries([]manifest.RenameEntry{
		{FileID: "f1", OriginalName: "scan001.pdf", NewName: "Acme - 2022 - scan001.pdf", AgencyName: "Acme"},
	})
	if err != nil {
		t.Fatalf("AddEntries failed: %v", err)
	}
	if len(doc.Entries) != 1 || doc.Entries[0].NewName != "Acme - 2022 - scan001.pdf" {
		t.Fatalf("expected second rename to supersede, got %#v", doc.Entries)
	}
}

func TestExtractionQueryHelpers(t *testing.T) {
	doc := manifest.Document[manifest.ExtractionEntry]{Entries: []manifest.ExtractionEntry{
		extractionEntry("f1", "Z1", "Acme"),
		extractionEntry("f2", "Z2", "Jones"),
		extractionEntry("f3", "Z2", "Acme"),
	}}

	zips := manifest.ExtractedZipIDs(doc)
	if len(zips) != 2 {
		t.Fatalf("expected 2 zip ids, got %v", zips)
	}
	byAgency := manifest.EntriesByAgency(doc)
	if len(byAgency["Acme"]) != 2 || len(byAgency["Jones"]) != 1 {
		t.Fatalf("unexpected grouping: %#v", byAgency)
	}
	if names := manifest.AgencyNames(doc); !reflect.DeepEqual(names, []string{"Acme", "Jones"}) {
		t.Fatalf("expected first-seen order, got %v", names)
	}
}
