// Package index provides the SQLite store behind the workspace: the document
// catalogue with optional FTS5 full-text search, and the persisted link
// registry.
package index

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const coreSchemaSQL = `
CREATE TABLE IF NOT EXISTS documents (
	id         TEXT PRIMARY KEY,
	title      TEXT NOT NULL DEFAULT '',
	checksum   TEXT NOT NULL DEFAULT '',
	tags       TEXT NOT NULL DEFAULT '[]',
	body       TEXT NOT NULL DEFAULT '',
	words      INTEGER NOT NULL DEFAULT 0,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS links (
	id                 INTEGER PRIMARY KEY,
	source             TEXT NOT NULL,
	content            TEXT NOT NULL DEFAULT '',
	alias              TEXT NOT NULL DEFAULT '',
	source_entity      TEXT NOT NULL DEFAULT '',
	initial_section    TEXT NOT NULL DEFAULT '',
	new_section_name   TEXT,
	new_section_before TEXT
);

CREATE TABLE IF NOT EXISTS doc_links (
	doc     TEXT NOT NULL,
	link_id INTEGER NOT NULL,
	tag     TEXT NOT NULL,
	UNIQUE(doc, link_id)
);

CREATE TABLE IF NOT EXISTS tag_links (
	tag      TEXT NOT NULL,
	link_id  INTEGER NOT NULL,
	position INTEGER NOT NULL,
	UNIQUE(tag, link_id)
);

CREATE TABLE IF NOT EXISTS doc_tags (
	doc      TEXT NOT NULL,
	tag      TEXT NOT NULL,
	position INTEGER NOT NULL,
	UNIQUE(doc, tag)
);

CREATE TABLE IF NOT EXISTS meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_doc_links_doc ON doc_links(doc);
CREATE INDEX IF NOT EXISTS idx_tag_links_tag ON tag_links(tag);
`

// DB wraps a sql.DB with index-specific operations.
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
	if err := initFTS(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply fts schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping checks that the database is reachable.
func (db *DB) Ping() error {
	return db.conn.Ping()
}
