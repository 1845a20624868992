package memory

import "time"

// SnapshotEntry is the serializable form of one store entry.
type SnapshotEntry struct {
	// Key is the fully-qualified entry key.
	Key string `json:"key"`
	// Value is the stored payload.
	Value interface{} `json:"value"`
	// Partition is the logical bucket the entry belongs to.
	Partition string `json:"partition"`
	// ExpiresAt is the absolute expiry time, if any. Expiry is preserved
	// as absolute time across export/import: entries that expire between
	// export and import are dropped on import.
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	// StoredAt is when the entry was last written.
	StoredAt time.Time `json:"stored_at"`
}

// Snapshot is a full serializable copy of the store, suitable for
// persistence across process restarts.
type Snapshot struct {
	// TakenAt is when the snapshot was produced.
	TakenAt time.Time `json:"taken_at"`
	// Entries holds every live entry at export time.
	Entries []SnapshotEntry `json:"entries"`
}

// Export produces a snapshot of all live entries. Expired entries are
// excluded.
func (s *Store) Export() *Snapshot {
	now := s.now()
	snap := &Snapshot{TakenAt: now}

	s.mu.RLock()
	for key, e := range s.entries {
		if e.expired(now) {
			continue
		}
		se := SnapshotEntry{
			Key:       key,
			Value:     e.Value,
			Partition: e.Partition,
			StoredAt:  e.StoredAt,
		}
		if !e.ExpiresAt.IsZero() {
			exp := e.ExpiresAt
			se.ExpiresAt = &exp
		}
		snap.Entries = append(snap.Entries, se)
	}
	s.mu.RUnlock()

	return snap
}

// Import replaces the store contents with the snapshot. Entries whose
// absolute expiry has already passed are silently dropped, so a
// round-trip returns exactly the set of keys still valid at import time.
func (s *Store) Import(snap *Snapshot) {
	if snap == nil {
		return
	}
	now := s.now()
	entries := make(map[string]*entry, len(snap.Entries))

	for _, se := range snap.Entries {
		e := &entry{
			Value:     se.Value,
			Partition: se.Partition,
			StoredAt:  se.StoredAt,
		}
		if se.Partition == "" {
			e.Partition = DefaultPartition
		}
		if se.ExpiresAt != nil {
			e.ExpiresAt = *se.ExpiresAt
		}
		if e.expired(now) {
			continue
		}
		entries[se.Key] = e
	}

	s.mu.Lock()
	s.entries = entries
	s.mu.Unlock()
}
