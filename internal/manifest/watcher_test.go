package manifest

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func waitForUpdate(t *testing.T, w *Watcher) *Manifest {
	t.Helper()
	select {
	case m, ok := <-w.Updates():
		if !ok {
			t.Fatal("updates channel closed")
		}
		return m
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for manifest update")
	}
	return nil
}

func TestWatcher_DeliversReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agents.yaml")
	if err := os.WriteFile(path, []byte("agents:\n  - id: a\n"), 0644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}

	w, err := Watch(path)
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	defer w.Close()

	if err := os.WriteFile(path, []byte("agents:\n  - id: a\n  - id: b\n"), 0644); err != nil {
		t.Fatalf("rewrite manifest: %v", err)
	}

	m := waitForUpdate(t, w)
	if len(m.Agents) != 2 {
		t.Errorf("len(Agents) = %d, want 2", len(m.Agents))
	}
}

func TestWatcher_SkipsInvalidReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agents.yaml")
	if err := os.WriteFile(path, []byte("agents:\n  - id: a\n"), 0644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}

	w, err := Watch(path)
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	defer w.Close()

	// An invalid write must not surface; the next valid one must.
	if err := os.WriteFile(path, []byte("agents: []\n"), 0644); err != nil {
		t.Fatalf("invalid write: %v", err)
	}
	if err := os.WriteFile(path, []byte("agents:\n  - id: fixed\n"), 0644); err != nil {
		t.Fatalf("valid write: %v", err)
	}

	m := waitForUpdate(t, w)
	if m.Agents[0].ID != "fixed" {
		t.Errorf("agent id = %q, want the valid reload", m.Agents[0].ID)
	}
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agents.yaml")
	if err := os.WriteFile(path, []byte("agents:\n  - id: a\n"), 0644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}

	w, err := Watch(path)
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	defer w.Close()

	if err := os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("x: 1\n"), 0644); err != nil {
		t.Fatalf("write other: %v", err)
	}

	select {
	case m := <-w.Updates():
		t.Errorf("unexpected update: %+v", m)
	case <-time.After(200 * time.Millisecond):
	}
}
