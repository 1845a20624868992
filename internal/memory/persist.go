package memory

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SnapshotStore persists store snapshots to SQLite so fleet state
// survives process restarts.
type SnapshotStore struct {
	conn *sql.DB
	path string
	mu   sync.Mutex
}

// DefaultSnapshotPath returns the path to the snapshot database under
// the XDG data directory.
func DefaultSnapshotPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		home, _ := os.UserHomeDir()
		dataDir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataDir, "skein", "memory.db")
}

// OpenSnapshotStore opens (or creates) the snapshot database at path.
// Parent directories are created as needed and WAL mode is enabled for
// concurrent reads.
func OpenSnapshotStore(path string) (*SnapshotStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS memory_entries (
		key        TEXT PRIMARY KEY,
		value      TEXT NOT NULL,
		partition  TEXT NOT NULL,
		expires_at INTEGER,
		stored_at  INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_memory_entries_partition
		ON memory_entries(partition);
	`
	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SnapshotStore{conn: conn, path: path}, nil
}

// Path returns the path to the database file.
func (p *SnapshotStore) Path() string {
	return p.path
}

// Close closes the database connection.
func (p *SnapshotStore) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.conn.Close()
}

// Save replaces the persisted snapshot with the given one. The write is
// transactional: a crash mid-save leaves the previous snapshot intact.
func (p *SnapshotStore) Save(snap *Snapshot) error {
	if snap == nil {
		return fmt.Errorf("save snapshot: nil snapshot")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	tx, err := p.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM memory_entries"); err != nil {
		return fmt.Errorf("clear previous snapshot: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO memory_entries (key, value, partition, expires_at, stored_at)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range snap.Entries {
		raw, err := json.Marshal(e.Value)
		if err != nil {
			return fmt.Errorf("marshal value for %s: %w", e.Key, err)
		}
		var expiresAt sql.NullInt64
		if e.ExpiresAt != nil {
			expiresAt = sql.NullInt64{Int64: e.ExpiresAt.UnixNano(), Valid: true}
		}
		if _, err := stmt.Exec(e.Key, string(raw), e.Partition, expiresAt, e.StoredAt.UnixNano()); err != nil {
			return fmt.Errorf("insert entry %s: %w", e.Key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}
	return nil
}

// Load reads the persisted snapshot. An empty database yields an empty
// snapshot, not an error.
func (p *SnapshotStore) Load() (*Snapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	rows, err := p.conn.Query(`
		SELECT key, value, partition, expires_at, stored_at
		FROM memory_entries`)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	snap := &Snapshot{TakenAt: time.Now()}
	for rows.Next() {
		var (
			key       string
			raw       string
			partition string
			expiresAt sql.NullInt64
			storedAt  int64
		)
		if err := rows.Scan(&key, &raw, &partition, &expiresAt, &storedAt); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}

		var value interface{}
		if err := json.Unmarshal([]byte(raw), &value); err != nil {
			return nil, fmt.Errorf("unmarshal value for %s: %w", key, err)
		}

		se := SnapshotEntry{
			Key:       key,
			Value:     value,
			Partition: partition,
			StoredAt:  time.Unix(0, storedAt),
		}
		if expiresAt.Valid {
			exp := time.Unix(0, expiresAt.Int64)
			se.ExpiresAt = &exp
		}
		snap.Entries = append(snap.Entries, se)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}

	return snap, nil
}
