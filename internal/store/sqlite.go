// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Provides genre/feed/token persistence with automatic schema creation

package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	// Ensure parent directory exists
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS genres (
			id TEXT PRIMARY KEY,
			owner TEXT NOT NULL,
			name TEXT NOT NULL,
			sort_order INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		);

		CREATE UNIQUE INDEX IF NOT EXISTS idx_genres_owner_name
			ON genres(owner, name);

		CREATE INDEX IF NOT EXISTS idx_genres_owner
			ON genres(owner);

		CREATE TABLE IF NOT EXISTS feeds (
			id TEXT PRIMARY KEY,
			owner TEXT NOT NULL,
			genre_id TEXT NOT NULL,
			url TEXT NOT NULL,
			label TEXT NOT NULL DEFAULT '',
			disabled INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			FOREIGN KEY (genre_id) REFERENCES genres(id)
		);

		CREATE UNIQUE INDEX IF NOT EXISTS idx_feeds_owner_url
			ON feeds(owner, url);

		CREATE INDEX IF NOT EXISTS idx_feeds_owner_genre
			ON feeds(owner, genre_id);

		CREATE TABLE IF NOT EXISTS access_tokens (
			id TEXT PRIMARY KEY,
			owner TEXT NOT NULL,
			key_prefix TEXT NOT NULL UNIQUE,
			token_hash TEXT NOT NULL UNIQUE,
			scopes TEXT NOT NULL DEFAULT '[]',
			name TEXT NOT NULL DEFAULT '',
			expires_at DATETIME,
			last_used_at DATETIME,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_access_tokens_owner
			ON access_tokens(owner);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("executing schema: %w", err)
	}
	return nil
}

// Close releases the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// isConstraintViolation checks if the error is a SQLite UNIQUE constraint violation
func isConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "UNIQUE constraint failed") ||
		strings.Contains(errStr, "constraint failed")
}

// nullTime converts a nil time pointer to nil, otherwise formats as RFC3339
func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

// parseTime parses an RFC3339 timestamp column, logging on failure rather
// than surfacing a corrupt row as an error.
func (s *SQLiteStore) parseTime(raw, column, id string) time.Time {
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		s.logger.Warn("failed to parse timestamp column", "column", column, "id", id, "error", err)
		return time.Time{}
	}
	return parsed
}
