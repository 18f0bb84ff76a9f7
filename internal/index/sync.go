package index

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/starford/folio/internal/checksum"
	"github.com/starford/folio/internal/models"
	"github.com/starford/folio/internal/storage"
	"github.com/starford/folio/internal/wordcount"
)

// Describe decodes a stored document and returns its index row and the plain
// text to search. tags are the registry tags of the document.
func Describe(id string, data []byte, tags []string) (DocumentRow, string, error) {
	var doc models.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return DocumentRow{}, "", fmt.Errorf("index: decode %s: %w", id, err)
	}
	if doc.Content == nil {
		return DocumentRow{}, "", fmt.Errorf("index: decode %s: document has no content", id)
	}
	if tags == nil {
		tags = []string{}
	}
	row := DocumentRow{
		ID:        id,
		Title:     doc.Title,
		Checksum:  checksum.Sum(data),
		Tags:      tags,
		Words:     wordcount.CountAll(doc.Content).Total(),
		UpdatedAt: doc.UpdatedAt,
	}
	return row, doc.Content.PlainText(), nil
}

// Sync walks the workspace and brings the index up to date:
//   - new/changed documents are decoded and upserted
//   - documents removed from disk are deleted from the index
func Sync(db *DB, store storage.Provider, logger *slog.Logger) error {
	metas, err := store.List("")
	if err != nil {
		return err
	}

	checksums, err := db.AllChecksums()
	if err != nil {
		return err
	}

	reg, err := db.LoadRegistry()
	if err != nil {
		return err
	}

	disk := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		disk[m.ID] = struct{}{}

		if checksums[m.ID] == m.Checksum {
			continue
		}

		data, err := store.Read(m.Path)
		if err != nil {
			logger.Warn("sync: read failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		if err := indexFile(db, m.ID, data, reg.DocTags(m.ID)); err != nil {
			logger.Warn("sync: index failed", slog.String("path", m.Path), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: indexed", slog.String("id", m.ID))
		}
	}

	for id := range checksums {
		if _, ok := disk[id]; !ok {
			if err := db.DeleteDocument(id); err != nil {
				logger.Warn("sync: delete failed", slog.String("id", id), slog.String("error", err.Error()))
			} else {
				logger.Debug("sync: removed stale", slog.String("id", id))
			}
		}
	}

	return nil
}

func indexFile(db *DB, id string, data []byte, tags []string) error {
	row, body, err := Describe(id, data, tags)
	if err != nil {
		return err
	}
	return db.UpsertDocument(row, body)
}

// indexPath indexes one document, reading its tags from the stored registry.
func indexPath(db *DB, store storage.Provider, rel string) (string, error) {
	id := storage.DocumentID(rel)
	data, err := store.Read(rel)
	if err != nil {
		return id, err
	}
	reg, err := db.LoadRegistry()
	if err != nil {
		return id, err
	}
	return id, indexFile(db, id, data, reg.DocTags(id))
}
