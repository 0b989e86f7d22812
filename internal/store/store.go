// Package store implements the persistent entity store for continuityd.
//
// It uses SQLite with FTS5 full-text search to persist snapshots, memories,
// narratives, preferences, users, and API keys. Every content query is scoped
// to an owner; cross-tenant reads are structurally impossible because the
// owner filter lives in the SQL, not in the caller.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a row does not exist or is not owned by the
// caller. Ownership misses are deliberately indistinguishable from missing
// rows so that ids cannot be probed across tenants.
var ErrNotFound = errors.New("store: not found")

// Store wraps the SQLite database and exposes entity operations.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// Options configures Open.
type Options struct {
	// Path is the SQLite database file. The parent directory is created if
	// it does not exist. Use ":memory:" for an ephemeral database.
	Path string
}

// Open opens (or creates) the database at opts.Path and runs migrations.
func Open(opts Options, logger *zap.Logger) (*Store, error) {
	if opts.Path == "" {
		return nil, errors.New("store: path is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	if opts.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(opts.Path), 0o700); err != nil {
			return nil, fmt.Errorf("store: create data dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", opts.Path)
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}

	// SQLite performance pragmas
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return nil, fmt.Errorf("store: pragma %q: %w", p, err)
		}
	}

	s := &Store{db: db, logger: logger}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("store: migration: %w", err)
	}

	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	if _, err := s.db.Exec(Schema); err != nil {
		return err
	}

	// FTS triggers keep memories_fts in sync with memories (idempotent check).
	var name string
	err := s.db.QueryRow(
		"SELECT name FROM sqlite_master WHERE type='trigger' AND name='mem_fts_insert'",
	).Scan(&name)

	if err == sql.ErrNoRows {
		if _, err := s.db.Exec(ftsTriggers); err != nil {
			return err
		}
	} else if err != nil {
		return err
	}

	return nil
}
