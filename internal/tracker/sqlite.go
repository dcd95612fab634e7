package tracker

import (
	"database/sql"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hochfrequenz/claude-review-orchestrator/internal/domain"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS reviewed_changes (
	change_key  TEXT PRIMARY KEY,
	reviewed_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// SQLiteStore is a transactional alternative to FileStore for deployments
// that outgrow the flat file. Keys are cached in memory at open so
// Contains never touches the database.
type SQLiteStore struct {
	db *sql.DB

	mu   sync.RWMutex
	keys map[string]struct{}
}

// NewSQLiteStore opens (creating if needed) the database at path and
// loads all recorded keys.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, domain.E(domain.KindIO, "tracker.open", err)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, domain.E(domain.KindIO, "tracker.open", err)
	}

	s := &SQLiteStore{db: db, keys: make(map[string]struct{})}
	if err := s.load(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) load() error {
	rows, err := s.db.Query(`SELECT change_key FROM reviewed_changes`)
	if err != nil {
		return domain.E(domain.KindIO, "tracker.load", err)
	}
	defer rows.Close()

	keys := make(map[string]struct{})
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return domain.E(domain.KindIO, "tracker.load", err)
		}
		keys[key] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return domain.E(domain.KindIO, "tracker.load", err)
	}

	s.mu.Lock()
	s.keys = keys
	s.mu.Unlock()
	return nil
}

// Contains reports whether key has been recorded
func (s *SQLiteStore) Contains(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.keys[key]
	return ok
}

// Record inserts key, ignoring duplicates
func (s *SQLiteStore) Record(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO reviewed_changes (change_key, reviewed_at) VALUES (?, ?)`,
		key, time.Now().UTC(),
	)
	if err != nil {
		return domain.E(domain.KindIO, "tracker.record", err)
	}
	s.keys[key] = struct{}{}
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
