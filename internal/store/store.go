// Package store is the SQLite query layer behind the bot: users and their
// coin balance, rented game servers and their queue, and one-time codes.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// ErrUnavailable is returned by every accessor when no database is configured.
var ErrUnavailable = errors.New("store unavailable")

// ErrInsufficientFunds is returned when a spend exceeds the user's balance.
var ErrInsufficientFunds = errors.New("insufficient funds")

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// Store is safe for concurrent use. A nil *Store answers ErrUnavailable.
type Store struct {
	db *sql.DB
}

// Open opens (and migrates) the database at path.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("empty database path")
	}
	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}
	dsn := fmt.Sprintf("%s?_busy_timeout=5000&_foreign_keys=on", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite3: %w", err)
	}
	// one connection keeps :memory: databases shared and serialises writers
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db}
	if err := s.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) initSchema(ctx context.Context) error {
	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`CREATE TABLE IF NOT EXISTS users (
			id         INTEGER PRIMARY KEY,
			username   TEXT NOT NULL DEFAULT '',
			coins      INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS servers (
			id           TEXT PRIMARY KEY,
			owner_id     INTEGER NOT NULL,
			chat_id      INTEGER NOT NULL,
			name         TEXT NOT NULL,
			status       TEXT NOT NULL CHECK (status IN ('queued', 'active', 'stopped')),
			duration_sec INTEGER NOT NULL,
			created_at   INTEGER NOT NULL,
			expires_at   INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE INDEX IF NOT EXISTS idx_servers_status ON servers(status, created_at);`,
		`CREATE TABLE IF NOT EXISTS transactions (
			id         TEXT PRIMARY KEY,
			user_id    INTEGER NOT NULL REFERENCES users(id),
			kind       TEXT NOT NULL CHECK (kind IN ('earn', 'spend')),
			amount     INTEGER NOT NULL CHECK (amount > 0),
			created_at INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS codes (
			code       TEXT PRIMARY KEY,
			user_id    INTEGER NOT NULL,
			expires_at INTEGER NOT NULL
		);`,
	}
	for _, q := range stmts {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}
