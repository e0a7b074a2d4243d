package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS published (
	key        TEXT PRIMARY KEY,
	expires_at INTEGER NOT NULL
)`

// sqliteStore implements a Store backed by a local SQLite file.
type sqliteStore struct {
	db      *sql.DB
	ttl     time.Duration
	cleanup *cleanupGate
}

// openSQLite initializes a SQLite-backed Store.
func openSQLite(path string, opts Options) (Store, error) {
	if err := ensureDir(path); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)

	for _, stmt := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		sqliteSchema,
		"CREATE INDEX IF NOT EXISTS idx_published_expires ON published(expires_at)",
	} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("init sqlite schema: %w", err)
		}
	}

	return &sqliteStore{
		db:      db,
		ttl:     opts.TTL,
		cleanup: newCleanupGate(opts.CleanupInterval, time.Now()),
	}, nil
}

// Close closes the SQLite store.
func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Seen reports whether key was marked and has not expired yet.
func (s *sqliteStore) Seen(key string) (bool, error) {
	if s == nil || s.db == nil {
		return false, nil
	}

	now := time.Now()
	if err := s.cleanup.maybeRun(now, s.sweep); err != nil {
		return false, err
	}

	var expiresAt int64
	err := s.db.QueryRow("SELECT expires_at FROM published WHERE key = ?", key).Scan(&expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query published key: %w", err)
	}
	if expiresAt > now.Unix() {
		return true, nil
	}
	if _, err := s.db.Exec("DELETE FROM published WHERE key = ?", key); err != nil {
		return false, fmt.Errorf("delete expired key: %w", err)
	}
	return false, nil
}

// Mark records key as published until the TTL elapses.
func (s *sqliteStore) Mark(key string) error {
	if s == nil || s.db == nil {
		return nil
	}

	now := time.Now()
	if err := s.cleanup.maybeRun(now, s.sweep); err != nil {
		return err
	}

	_, err := s.db.Exec(
		`INSERT INTO published (key, expires_at) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET expires_at = excluded.expires_at`,
		key, now.Add(s.ttl).Unix(),
	)
	if err != nil {
		return fmt.Errorf("mark published key: %w", err)
	}
	return nil
}

func (s *sqliteStore) sweep(now time.Time) error {
	if _, err := s.db.Exec("DELETE FROM published WHERE expires_at <= ?", now.Unix()); err != nil {
		return fmt.Errorf("sweep expired keys: %w", err)
	}
	return nil
}
