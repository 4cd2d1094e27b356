package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// newTestRoot builds the root command against a config file rooted in a
// per-test temp directory and returns it with a capture buffer attached.
func newTestRoot(t *testing.T, args ...string) (*bytes.Buffer, func() error) {
	t.Helper()
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.toml")
	contents := fmt.Sprintf(`[paths]
state_dir = %q
log_dir = %q

[drive]
root_folder_id = "root"
`, filepath.Join(dir, "state"), filepath.Join(dir, "logs"))
	if err := os.WriteFile(configPath, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config failed: %v", err)
	}

	cmd := newRootCommand()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs(append([]string{"--config", configPath}, args...))
	return out, cmd.Execute
}

func TestVersionCommand(t *testing.T) {
	out, execute := newTestRoot(t, "version")
	if err := execute(); err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if !strings.HasPrefix(out.String(), "curator ") {
		t.Fatalf("unexpected output %q", out.String())
	}
}

func TestMappingPendingEmpty(t *testing.T) {
	out, execute := newTestRoot(t, "mapping", "pending")
	if err := execute(); err != nil {
		t.Fatalf("mapping pending failed: %v", err)
	}
	if !strings.Contains(out.String(), "Nothing pending review.") {
		t.Fatalf("unexpected output %q", out.String())
	}
}

func TestRollbackListEmpty(t *testing.T) {
	out, execute := newTestRoot(t, "rollback", "list")
	if err := execute(); err != nil {
		t.Fatalf("rollback list failed: %v", err)
	}
	if !strings.Contains(out.String(), "No rollback sessions recorded.") {
		t.Fatalf("unexpected output %q", out.String())
	}
}

func TestReconcileRequiresBaseURL(t *testing.T) {
	_, execute := newTestRoot(t, "reconcile")
	err := execute()
	if err == nil || !strings.Contains(err.Error(), "drive.base_url") {
		t.Fatalf("expected base_url error, got %v", err)
	}
}

func TestTreeShowWithoutCache(t *testing.T) {
	_, execute := newTestRoot(t, "tree", "show")
	err := execute()
	if err == nil || !strings.Contains(err.Error(), "no cached tree") {
		t.Fatalf("expected cache-miss error, got %v", err)
	}
}
