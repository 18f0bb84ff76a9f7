// Package storage defines the document file-system abstraction.
package storage

import (
	"path/filepath"
	"strings"

	"github.com/starford/folio/internal/models"
)

// DocumentExt is the extension of stored documents.
const DocumentExt = ".json"

// TrashDir holds soft-deleted documents. Hidden directories are skipped by
// List.
const TrashDir = ".trash"

// Provider is the interface for workspace file operations.
type Provider interface {
	// List returns metadata for every document under dir (relative to the
	// workspace root).
	List(dir string) ([]models.DocumentMetadata, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path.
	Write(path string, content []byte) error
	// Delete removes the file at path.
	Delete(path string) error
	// Move renames oldPath to newPath.
	Move(oldPath, newPath string) error
}

// DocumentPath returns the relative path of document id.
func DocumentPath(id string) string {
	return id + DocumentExt
}

// DocumentID returns the id stored at path, or "" when path is not a
// document.
func DocumentID(path string) string {
	if !strings.HasSuffix(path, DocumentExt) {
		return ""
	}
	return strings.TrimSuffix(filepath.ToSlash(path), DocumentExt)
}
