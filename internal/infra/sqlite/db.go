// Package sqlite provides SQLite-based persistent storage for modelbay.
// Uses WAL mode for concurrent reads and crash-safe writes. Two tables:
// resume state for non-terminal transfers, and the installed-artifact
// library.
package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver (no CGO required)
)

// DB wraps a SQLite connection with WAL mode and migrations.
type DB struct {
	db *sql.DB
}

// Open creates or opens the SQLite database at dir/state.db.
// Enables WAL mode, foreign keys, and 5-second busy timeout.
func Open(dir string) (*DB, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	dbPath := filepath.Join(dir, "state.db")
	dsn := dbPath + "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	// Connection pool settings for SQLite
	db.SetMaxOpenConns(1) // SQLite is single-writer
	db.SetMaxIdleConns(1)

	d := &DB{db: db}
	if err := d.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return d, nil
}

// Close cleanly shuts down the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// Ping checks database connectivity.
func (d *DB) Ping() error {
	return d.db.Ping()
}

// migrate runs idempotent schema migrations.
func (d *DB) migrate() error {
	migrations := []string{
		// Resume state: one row per transfer, keyed by destination path so
		// no two transfers can ever write the same file.
		`CREATE TABLE IF NOT EXISTS transfers (
			dest_path       TEXT PRIMARY KEY,
			id              TEXT NOT NULL,
			descriptor_id   TEXT NOT NULL,
			name            TEXT NOT NULL DEFAULT '',
			source_url      TEXT NOT NULL,
			bytes_received  INTEGER NOT NULL DEFAULT 0,
			total_bytes     INTEGER NOT NULL DEFAULT 0,
			resume_token    TEXT NOT NULL DEFAULT '',
			expected_digest TEXT NOT NULL DEFAULT '',
			status          TEXT NOT NULL,
			last_error      TEXT NOT NULL DEFAULT '',
			enqueued_at     INTEGER NOT NULL,
			updated_at      INTEGER NOT NULL
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_transfers_id ON transfers(id)`,
		`CREATE INDEX IF NOT EXISTS idx_transfers_status ON transfers(status)`,

		// Installed artifacts: completed, digest-verified downloads.
		`CREATE TABLE IF NOT EXISTS library (
			name          TEXT PRIMARY KEY,
			descriptor_id TEXT NOT NULL,
			path          TEXT NOT NULL,
			size_bytes    INTEGER NOT NULL,
			digest        TEXT NOT NULL DEFAULT '',
			runtimes      TEXT NOT NULL DEFAULT '',
			installed_at  INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_library_installed ON library(installed_at)`,
	}

	for _, m := range migrations {
		if _, err := d.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}
	return nil
}

// ─── Helpers ────────────────────────────────────────────────────────────────

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}
