package memory

import (
	"fmt"
	"regexp"
	"sync"
	"time"
)

// DefaultPartition is used when a write does not name a partition.
const DefaultPartition = "default"

// entry is a single stored value with its retention metadata.
type entry struct {
	// Value is the opaque payload.
	Value interface{}
	// Partition is the logical bucket the entry belongs to.
	Partition string
	// ExpiresAt is the absolute expiry time. Zero means no expiry.
	ExpiresAt time.Time
	// StoredAt is when the entry was last written.
	StoredAt time.Time
}

// expired reports whether the entry is past its expiry at the given time.
func (e *entry) expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && !now.Before(e.ExpiresAt)
}

// StoreOptions control retention and placement of a write.
type StoreOptions struct {
	// TTL makes the entry unreadable after this duration from the write.
	// Zero means the entry never expires.
	TTL time.Duration
	// Partition is the logical bucket for the entry. Empty selects
	// DefaultPartition.
	Partition string
}

// Stats is a point-in-time summary of the store contents.
type Stats struct {
	// EntryCount is the number of live (non-expired) entries.
	EntryCount int `json:"entry_count"`
	// Partitions maps partition name to live entry count.
	Partitions map[string]int `json:"partitions"`
}

// Store is an in-process coordination store. Writes to different keys do
// not contend beyond the map lock; writes to the same key race
// last-writer-wins with no merge semantics.
type Store struct {
	// entries maps fully-qualified keys to their entries.
	entries map[string]*entry
	// mu protects entries.
	mu sync.RWMutex
	// now is the clock, replaceable in tests.
	now func() time.Time
}

// NewStore creates an empty coordination store.
func NewStore() *Store {
	return &Store{
		entries: make(map[string]*entry),
		now:     time.Now,
	}
}

// Store upserts an entry at key. An existing value is overwritten
// unconditionally.
func (s *Store) Store(key string, value interface{}, opts StoreOptions) {
	partition := opts.Partition
	if partition == "" {
		partition = DefaultPartition
	}

	now := s.now()
	e := &entry{
		Value:     value,
		Partition: partition,
		StoredAt:  now,
	}
	if opts.TTL > 0 {
		e.ExpiresAt = now.Add(opts.TTL)
	}

	s.mu.Lock()
	s.entries[key] = e
	s.mu.Unlock()
}

// Retrieve returns the current value at key. The second return is false
// when the key is absent or expired; expired entries are removed lazily.
func (s *Store) Retrieve(key string) (interface{}, bool) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok {
		return nil, false
	}
	if e.expired(s.now()) {
		s.mu.Lock()
		// Re-check under the write lock: a concurrent Store may have
		// replaced the entry since the read.
		if cur, still := s.entries[key]; still && cur == e {
			delete(s.entries, key)
		}
		s.mu.Unlock()
		return nil, false
	}
	return e.Value, true
}

// Delete removes an entry regardless of its expiry.
func (s *Store) Delete(key string) {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
}

// Search returns all live entries whose key matches the regular
// expression. Partition scoping happens through the key convention
// ({namespace}/{agent}/{name}), so a pattern that includes a path prefix
// naturally narrows the result.
func (s *Store) Search(pattern string) (map[string]interface{}, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("compile search pattern: %w", err)
	}

	now := s.now()
	matches := make(map[string]interface{})

	s.mu.RLock()
	for key, e := range s.entries {
		if e.expired(now) {
			continue
		}
		if re.MatchString(key) {
			matches[key] = e.Value
		}
	}
	s.mu.RUnlock()

	return matches, nil
}

// SearchPartition returns all live entries in the named partition whose
// key matches the regular expression.
func (s *Store) SearchPartition(partition, pattern string) (map[string]interface{}, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("compile search pattern: %w", err)
	}

	now := s.now()
	matches := make(map[string]interface{})

	s.mu.RLock()
	for key, e := range s.entries {
		if e.Partition != partition || e.expired(now) {
			continue
		}
		if re.MatchString(key) {
			matches[key] = e.Value
		}
	}
	s.mu.RUnlock()

	return matches, nil
}

// Stats returns live entry counts per partition.
func (s *Store) Stats() Stats {
	now := s.now()
	stats := Stats{Partitions: make(map[string]int)}

	s.mu.RLock()
	for _, e := range s.entries {
		if e.expired(now) {
			continue
		}
		stats.EntryCount++
		stats.Partitions[e.Partition]++
	}
	s.mu.RUnlock()

	return stats
}

// Sweep removes all expired entries and returns how many were dropped.
// Expiry is also enforced lazily on every read, so calling Sweep is an
// optimization, not a correctness requirement.
func (s *Store) Sweep() int {
	now := s.now()
	removed := 0

	s.mu.Lock()
	for key, e := range s.entries {
		if e.expired(now) {
			delete(s.entries, key)
			removed++
		}
	}
	s.mu.Unlock()

	return removed
}
