package index

import (
	"database/sql"
	"fmt"
	"strconv"

	"github.com/starford/folio/internal/docmodel"
	"github.com/starford/folio/internal/linksync"
)

const registryVersionKey = "registry_version"

// SaveRegistry replaces the stored registry with reg in one transaction.
func (db *DB) SaveRegistry(reg linksync.Registry) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, table := range []string{"links", "doc_links", "tag_links", "doc_tags"} {
		if _, err := tx.Exec(`DELETE FROM ` + table); err != nil {
			return fmt.Errorf("index: clear %s: %w", table, err)
		}
	}

	linkStmt, err := tx.Prepare(`
		INSERT INTO links (id, source, content, alias, source_entity, initial_section, new_section_name, new_section_before)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("index: prepare link insert: %w", err)
	}
	defer linkStmt.Close()
	for _, id := range reg.LinkIDs() {
		l, _ := reg.Link(id)
		var name, before sql.NullString
		if l.NewSection != nil {
			name = sql.NullString{String: l.NewSection.NewName, Valid: true}
			before = sql.NullString{String: l.NewSection.InsertBeforeKey, Valid: true}
		}
		if _, err := linkStmt.Exec(int(id), l.Source, l.Content, l.Alias, string(l.SourceEntityKey),
			l.InitialSectionKey, name, before); err != nil {
			return fmt.Errorf("index: insert link %d: %w", id, err)
		}
	}

	for _, doc := range reg.Docs() {
		for id, tag := range reg.DocLinks(doc) {
			if _, err := tx.Exec(`INSERT INTO doc_links (doc, link_id, tag) VALUES (?, ?, ?)`, doc, int(id), tag); err != nil {
				return fmt.Errorf("index: insert doc link: %w", err)
			}
		}
		for pos, tag := range reg.DocTags(doc) {
			if _, err := tx.Exec(`INSERT INTO doc_tags (doc, tag, position) VALUES (?, ?, ?)`, doc, tag, pos); err != nil {
				return fmt.Errorf("index: insert doc tag: %w", err)
			}
		}
	}

	for _, tag := range reg.Tags() {
		for pos, id := range reg.TagLinks(tag) {
			if _, err := tx.Exec(`INSERT INTO tag_links (tag, link_id, position) VALUES (?, ?, ?)`, tag, int(id), pos); err != nil {
				return fmt.Errorf("index: insert tag link: %w", err)
			}
		}
	}

	if _, err := tx.Exec(`
		INSERT INTO meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, registryVersionKey, strconv.FormatUint(reg.Version(), 10)); err != nil {
		return fmt.Errorf("index: save registry version: %w", err)
	}

	return tx.Commit()
}

// LoadRegistry reads the stored registry. An empty database yields an empty
// registry at version 0.
func (db *DB) LoadRegistry() (linksync.Registry, error) {
	var version uint64
	var raw string
	err := db.conn.QueryRow(`SELECT value FROM meta WHERE key = ?`, registryVersionKey).Scan(&raw)
	switch {
	case err == sql.ErrNoRows:
	case err != nil:
		return linksync.Registry{}, fmt.Errorf("index: load registry version: %w", err)
	default:
		if version, err = strconv.ParseUint(raw, 10, 64); err != nil {
			return linksync.Registry{}, fmt.Errorf("index: parse registry version %q: %w", raw, err)
		}
	}

	b := linksync.NewBuilder(version)

	rows, err := db.conn.Query(`
		SELECT id, source, content, alias, source_entity, initial_section, new_section_name, new_section_before
		FROM links`)
	if err != nil {
		return linksync.Registry{}, fmt.Errorf("index: load links: %w", err)
	}
	for rows.Next() {
		var id int
		var l linksync.Link
		var entity string
		var name, before sql.NullString
		if err := rows.Scan(&id, &l.Source, &l.Content, &l.Alias, &entity, &l.InitialSectionKey, &name, &before); err != nil {
			rows.Close()
			return linksync.Registry{}, fmt.Errorf("index: scan link: %w", err)
		}
		l.SourceEntityKey = docmodel.EntityKey(entity)
		if name.Valid {
			l.NewSection = &linksync.NewSectionOptions{NewName: name.String, InsertBeforeKey: before.String}
		}
		b.Link(linksync.LinkID(id), l)
	}
	if err := closeRows(rows); err != nil {
		return linksync.Registry{}, err
	}

	if err := db.eachRow(`SELECT doc, link_id, tag FROM doc_links`, func(r *sql.Rows) error {
		var doc, tag string
		var id int
		if err := r.Scan(&doc, &id, &tag); err != nil {
			return err
		}
		b.DocLink(doc, linksync.LinkID(id), tag)
		return nil
	}); err != nil {
		return linksync.Registry{}, err
	}

	if err := db.eachRow(`SELECT tag, link_id FROM tag_links ORDER BY tag, position`, func(r *sql.Rows) error {
		var tag string
		var id int
		if err := r.Scan(&tag, &id); err != nil {
			return err
		}
		b.TagLink(tag, linksync.LinkID(id))
		return nil
	}); err != nil {
		return linksync.Registry{}, err
	}

	if err := db.eachRow(`SELECT doc, tag FROM doc_tags ORDER BY doc, position`, func(r *sql.Rows) error {
		var doc, tag string
		if err := r.Scan(&doc, &tag); err != nil {
			return err
		}
		b.DocTag(doc, tag)
		return nil
	}); err != nil {
		return linksync.Registry{}, err
	}

	return b.Registry(), nil
}

func (db *DB) eachRow(query string, fn func(*sql.Rows) error) error {
	rows, err := db.conn.Query(query)
	if err != nil {
		return fmt.Errorf("index: query registry: %w", err)
	}
	for rows.Next() {
		if err := fn(rows); err != nil {
			rows.Close()
			return fmt.Errorf("index: scan registry: %w", err)
		}
	}
	return closeRows(rows)
}

func closeRows(rows *sql.Rows) error {
	err := rows.Err()
	if cerr := rows.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("index: read registry: %w", err)
	}
	return nil
}
