// Package index provides the SQLite-backed page cache shared by the page
// sources: listings, page details and their links per project.
package index

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const coreSchemaSQL = `
CREATE TABLE IF NOT EXISTS pages (
	project    TEXT NOT NULL,
	title_key  TEXT NOT NULL,
	title      TEXT NOT NULL,
	image      TEXT NOT NULL DEFAULT '',
	position   INTEGER NOT NULL DEFAULT -1,
	path       TEXT NOT NULL DEFAULT '',
	checksum   TEXT NOT NULL DEFAULT '',
	detail     INTEGER NOT NULL DEFAULT 0,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (project, title_key)
);

CREATE TABLE IF NOT EXISTS links (
	project    TEXT NOT NULL,
	source     TEXT NOT NULL,
	target     TEXT NOT NULL,
	target_key TEXT NOT NULL,
	kind       TEXT NOT NULL DEFAULT 'link',
	seq        INTEGER NOT NULL DEFAULT 0,
	UNIQUE(project, source, target_key, kind)
);

CREATE INDEX IF NOT EXISTS idx_pages_path ON pages(project, path);
CREATE INDEX IF NOT EXISTS idx_links_source ON links(project, source);
CREATE INDEX IF NOT EXISTS idx_links_target ON links(project, target_key);
`

// DB wraps a sql.DB with cache-specific operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("index: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: ping: %w", err)
	}
	if _, err := conn.Exec(coreSchemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply core schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
