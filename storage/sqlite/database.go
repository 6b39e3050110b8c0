// Package sqlite implements storage.ArticleStore on SQLite. It holds the
// articles collected by the scrape job until build-db embeds them.
package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/poiesic/newsrag/storage"
)

// ArticleStore wraps a SQLite database connection.
type ArticleStore struct {
	conn *sql.DB
	path string
}

var _ storage.ArticleStore = (*ArticleStore)(nil)

// Open creates or opens the article database at dbPath.
// The special path ":memory:" opens a private in-memory database.
func Open(dbPath string) (*ArticleStore, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
	}

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// A single connection keeps ":memory:" databases from splitting per connection.
	conn.SetMaxOpenConns(1)

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	if err := migrate(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrating schema: %w", err)
	}

	return &ArticleStore{conn: conn, path: dbPath}, nil
}

// Close closes the database connection.
func (s *ArticleStore) Close() error {
	return s.conn.Close()
}

// Path returns the database file path.
func (s *ArticleStore) Path() string {
	return s.path
}
