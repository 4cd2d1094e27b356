// Package testsupport provides shared fixtures for package tests.
package testsupport

import (
	"path/filepath"
	"testing"

	"curator/internal/config"
	"curator/internal/rollback"
)

// NewConfig returns a validated configuration rooted in a per-test temp
// directory, so tests never touch real user state.
func NewConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()

	cfg := config.Default()
	cfg.Paths.StateDir = filepath.Join(dir, "state")
	cfg.Paths.LogDir = filepath.Join(dir, "logs")
	cfg.Paths.HierarchyCache = filepath.Join(cfg.Paths.StateDir, "hierarchy_cache.json")
	cfg.Paths.ExtractionManifest = filepath.Join(cfg.Paths.StateDir, "extraction_manifest.json")
	cfg.Paths.RenameManifest = filepath.Join(cfg.Paths.StateDir, "rename_manifest.json")
	cfg.Paths.MappingStore = filepath.Join(cfg.Paths.StateDir, "agency_mappings.json")
	cfg.Drive.RootFolderID = "root"

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	return &cfg
}

// NewStore opens a rollback store in a per-test temp directory and closes it
// on cleanup.
func NewStore(t *testing.T) *rollback.Store {
	t.Helper()
	store, err := rollback.Open(filepath.Join(t.TempDir(), "rollback.db"))
	if err != nil {
		t.Fatalf("Open rollback store failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}
