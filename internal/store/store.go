// Package store persists datapoint definitions, raw facts and merged
// facts in a single-file SQLite database. All writes go through
// partition-scoped replacement, so re-ingesting a batch can never
// duplicate or half-update its rows.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

const driverName = "sqlite"

// ErrNotFound reports a lookup that matched no stored row.
var ErrNotFound = errors.New("not found")

// Store owns the database handle. Construct with Open; the zero value is
// not usable.
type Store struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// Open opens the database at path, creating the file and schema when
// absent. The pool is pinned to one connection: session pragmas only bind
// to the connection that ran them, and SQLite admits a single writer
// anyway. WAL keeps API readers concurrent with that writer.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sqlx.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	s := &Store{db: db, logger: logger}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return s, nil
}

// Ping verifies the database file is still reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}
