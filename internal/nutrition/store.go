package nutrition

import (
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	_ "modernc.org/sqlite"
)

// Store owns the durable nutrition cache: a sqlite table mirrored into
// memory at startup. Entries are append-only; nothing is ever updated or
// deleted. Lookups run against the in-memory mirror, appends persist
// synchronously before becoming visible.
type Store struct {
	db     *sql.DB
	logger *slog.Logger

	mu      sync.RWMutex
	entries []cacheEntry
}

type cacheEntry struct {
	key string
	rec Record
}

// OpenStore opens (or creates) the cache table at path and loads it fully
// into memory. An unreadable or missing table starts the store empty instead
// of failing; persistence errors surface later as soft append failures.
func OpenStore(path string, logger *slog.Logger) *Store {
	s := &Store{logger: logger.With("component", "store")}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		s.logger.Error("open cache database failed, continuing without persistence", "error", err, "path", path)
		return s
	}
	if err := initSchema(db); err != nil {
		s.logger.Error("init cache schema failed, continuing without persistence", "error", err, "path", path)
		db.Close()
		return s
	}
	s.db = db

	if err := s.loadAll(); err != nil {
		s.logger.Warn("cache table unreadable, starting empty", "error", err)
		s.entries = nil
	}
	s.logger.Info("nutrition cache loaded", "entries", len(s.entries), "path", path)
	return s
}

func initSchema(db *sql.DB) error {
	schema := `
    CREATE TABLE IF NOT EXISTS nutrition_cache (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        normalized_key TEXT NOT NULL,
        name TEXT NOT NULL,
        calories REAL NOT NULL,
        protein REAL NOT NULL,
        fat REAL NOT NULL,
        carbs REAL NOT NULL
    );
    CREATE INDEX IF NOT EXISTS idx_nutrition_cache_key ON nutrition_cache(normalized_key);
    `
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

func (s *Store) loadAll() error {
	rows, err := s.db.Query(`SELECT normalized_key, name, calories, protein, fat, carbs FROM nutrition_cache ORDER BY id`)
	if err != nil {
		return fmt.Errorf("query cache: %w", err)
	}
	defer rows.Close()

	var entries []cacheEntry
	for rows.Next() {
		var e cacheEntry
		if err := rows.Scan(&e.key, &e.rec.Name, &e.rec.Calories, &e.rec.Protein, &e.rec.Fat, &e.rec.Carbs); err != nil {
			return fmt.Errorf("scan cache row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate cache rows: %w", err)
	}
	s.entries = entries
	return nil
}

// Lookup returns the first entry whose normalized key matches the normalized
// name exactly, falling back to a substring match so partial queries like
// "rice" still find "fried rice". Never mutates state.
func (s *Store) Lookup(name string) (Record, bool) {
	key := Normalize(name)
	if key == "" {
		return Record{}, false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.entries {
		if e.key == key {
			return e.rec, true
		}
	}
	for _, e := range s.entries {
		if strings.Contains(e.key, key) {
			return e.rec, true
		}
	}
	return Record{}, false
}

// Append persists a freshly resolved record and makes it visible to lookups.
// An entry with the same exact key is skipped to keep repeated queries from
// growing the table. A persistence failure leaves the cache unchanged; the
// caller still owns a perfectly good record.
func (s *Store) Append(rec Record) error {
	key := Normalize(rec.Name)
	if key == "" {
		return fmt.Errorf("record name %q normalizes to empty key", rec.Name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		if e.key == key {
			return nil
		}
	}

	if s.db != nil {
		_, err := s.db.Exec(
			`INSERT INTO nutrition_cache (normalized_key, name, calories, protein, fat, carbs) VALUES (?, ?, ?, ?, ?, ?)`,
			key, rec.Name, rec.Calories, rec.Protein, rec.Fat, rec.Carbs,
		)
		if err != nil {
			return fmt.Errorf("persist cache entry: %w", err)
		}
	}
	s.entries = append(s.entries, cacheEntry{key: key, rec: rec})
	return nil
}

// Len reports the number of cached entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
