// Package models defines the stored and listed shapes of Folio documents.
package models

import (
	"time"

	"github.com/starford/folio/internal/docmodel"
)

// Document is the on-disk form of one document: its block content plus the
// fields the index and the API need without decoding the blocks.
type Document struct {
	ID        string            `json:"id"`
	Title     string            `json:"title"`
	Content   *docmodel.Content `json:"content"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// DocumentMetadata is a lightweight representation returned by list
// operations.
type DocumentMetadata struct {
	ID        string    `json:"id"`
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}
