package memory

import (
	"path/filepath"
	"testing"
	"time"
)

func openTestSnapshotStore(t *testing.T) *SnapshotStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "memory.db")
	p, err := OpenSnapshotStore(path)
	if err != nil {
		t.Fatalf("OpenSnapshotStore: %v", err)
	}
	t.Cleanup(func() { p.Close() })
	return p
}

func TestSnapshotStore_SaveAndLoad(t *testing.T) {
	p := openTestSnapshotStore(t)

	s := NewStore()
	s.Store("skein/gen/tasks/t1/result", map[string]interface{}{"passed": float64(10)}, StoreOptions{Partition: "agent_results", TTL: time.Hour})
	s.Store("skein/patterns/gen/p1", "use table tests", StoreOptions{Partition: "patterns"})

	if err := p.Save(s.Export()); err != nil {
		t.Fatalf("Save: %v", err)
	}

	snap, err := p.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(snap.Entries) != 2 {
		t.Fatalf("Load returned %d entries, want 2", len(snap.Entries))
	}

	restored := NewStore()
	restored.Import(snap)

	v, ok := restored.Retrieve("skein/patterns/gen/p1")
	if !ok || v != "use table tests" {
		t.Errorf("restored pattern = (%v, %v), want stored value", v, ok)
	}

	v, ok = restored.Retrieve("skein/gen/tasks/t1/result")
	if !ok {
		t.Fatal("restored result should be present")
	}
	m, ok := v.(map[string]interface{})
	if !ok || m["passed"] != float64(10) {
		t.Errorf("restored result = %v, want map with passed=10", v)
	}

	stats := restored.Stats()
	if stats.Partitions["agent_results"] != 1 || stats.Partitions["patterns"] != 1 {
		t.Errorf("restored partitions = %v", stats.Partitions)
	}
}

func TestSnapshotStore_SaveReplacesPrevious(t *testing.T) {
	p := openTestSnapshotStore(t)

	first := NewStore()
	first.Store("old", 1, StoreOptions{})
	if err := p.Save(first.Export()); err != nil {
		t.Fatalf("Save first: %v", err)
	}

	second := NewStore()
	second.Store("new", 2, StoreOptions{})
	if err := p.Save(second.Export()); err != nil {
		t.Fatalf("Save second: %v", err)
	}

	snap, err := p.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(snap.Entries) != 1 {
		t.Fatalf("Load returned %d entries, want 1", len(snap.Entries))
	}
	if snap.Entries[0].Key != "new" {
		t.Errorf("persisted key = %q, want %q", snap.Entries[0].Key, "new")
	}
}

func TestSnapshotStore_LoadEmpty(t *testing.T) {
	p := openTestSnapshotStore(t)

	snap, err := p.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(snap.Entries) != 0 {
		t.Errorf("empty database yielded %d entries", len(snap.Entries))
	}
}

func TestSnapshotStore_SaveNil(t *testing.T) {
	p := openTestSnapshotStore(t)
	if err := p.Save(nil); err == nil {
		t.Error("Save(nil) should return an error")
	}
}

func TestSnapshotStore_PreservesExpiry(t *testing.T) {
	p := openTestSnapshotStore(t)

	exp := time.Now().Add(time.Hour).Truncate(time.Nanosecond)
	snap := &Snapshot{
		TakenAt: time.Now(),
		Entries: []SnapshotEntry{{
			Key:       "k",
			Value:     "v",
			Partition: "agent_results",
			ExpiresAt: &exp,
			StoredAt:  time.Now(),
		}},
	}

	if err := p.Save(snap); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := p.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Entries[0].ExpiresAt == nil {
		t.Fatal("expiry should survive persistence")
	}
	if !loaded.Entries[0].ExpiresAt.Equal(exp) {
		t.Errorf("ExpiresAt = %v, want %v", loaded.Entries[0].ExpiresAt, exp)
	}
}
