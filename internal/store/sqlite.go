// Package store provides SQLite-based persistence for sync history.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// DB wraps the SQL database connection.
type DB struct {
	*sql.DB
	path string
	now  func() time.Time
}

// Open opens or creates a SQLite database at the given path.
func Open(dbPath string) (*DB, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	d := &DB{DB: db, path: dbPath, now: time.Now}
	if err := d.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}
	return d, nil
}

// Path returns the database file location
func (d *DB) Path() string {
	return d.path
}

// migrate runs database migrations.
func (d *DB) migrate() error {
	_, err := d.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	var version int
	row := d.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&version); err != nil {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	migrations := []struct {
		version int
		sql     string
	}{
		{1, migration1},
		{2, migration2},
	}

	for _, m := range migrations {
		if m.version <= version {
			continue
		}
		if _, err := d.Exec(m.sql); err != nil {
			return fmt.Errorf("migration %d failed: %w", m.version, err)
		}
		if _, err := d.Exec("INSERT INTO schema_migrations (version) VALUES (?)", m.version); err != nil {
			return fmt.Errorf("failed to record migration %d: %w", m.version, err)
		}
	}
	return nil
}

// Migration 1: sync history
const migration1 = `
CREATE TABLE IF NOT EXISTS history (
    id TEXT PRIMARY KEY,
    seq INTEGER NOT NULL,
    date TEXT NOT NULL,
    task TEXT NOT NULL,
    project_id INTEGER NOT NULL,
    folder_id INTEGER NOT NULL,
    case_name TEXT,
    cases_count INTEGER NOT NULL DEFAULT 1,
    images_count INTEGER NOT NULL DEFAULT 0,
    status TEXT NOT NULL,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_history_seq ON history(seq);
`

// Migration 2: date lookups for the daily counter
const migration2 = `
CREATE INDEX IF NOT EXISTS idx_history_date ON history(date);
`
