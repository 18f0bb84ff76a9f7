package api

import (
	"github.com/starford/folio/internal/docmodel"
	"github.com/starford/folio/internal/index"
	"github.com/starford/folio/internal/linksync"
	"github.com/starford/folio/internal/workspace"
)

// CreateDocumentRequest is the request body for creating a document.
type CreateDocumentRequest = workspace.CreateRequest

// DocumentView is the full document response type (aliased from the domain layer).
type DocumentView = workspace.DocumentView

// DocumentListResponse wraps paginated document listings.
type DocumentListResponse struct {
	Documents []workspace.DocumentSummary `json:"documents" validate:"required"`
	Total     int                         `json:"total" example:"42" validate:"required"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []index.SearchResult `json:"results" validate:"required"`
}

// SelectionRequest carries a selection in the current document.
type SelectionRequest struct {
	Selection docmodel.Selection `json:"selection" validate:"required"`
}

// SectionRequest is the request body for inserting a section.
type SectionRequest struct {
	Selection docmodel.Selection `json:"selection" validate:"required"`
	Title     string             `json:"title" example:"Background"`
}

// UpdateImageRequest replaces the image identified by ImageID and ImageUseID.
type UpdateImageRequest struct {
	ImageID    string            `json:"imageId" validate:"required"`
	ImageUseID string            `json:"imageUseId" validate:"required"`
	Image      docmodel.ImageRef `json:"image" validate:"required"`
}

// FindStepRequest lists the block keys on screen.
type FindStepRequest struct {
	Visible []string `json:"visible"`
}

// ReplaceRequest is the request body for replacing find matches.
type ReplaceRequest struct {
	Replacement string `json:"replacement"`
	All         bool   `json:"all"`
}

// AliasRequest names the alias target of a link; empty re-attaches it.
type AliasRequest struct {
	Document string `json:"document" example:"pets"`
}

// SyncResponse reports what a synchronization pass changed.
type SyncResponse struct {
	Report linksync.SyncReport `json:"report"`
}

// AttachmentUploadResponse is returned after an image upload is attached.
type AttachmentUploadResponse struct {
	Filename string                  `json:"filename" example:"0f8e....png" validate:"required"`
	Size     int64                   `json:"size" example:"12345" validate:"required"`
	URL      string                  `json:"url" example:"/api/attachments/0f8e....png" validate:"required"`
	BlockKey string                  `json:"blockKey" validate:"required"`
	Image    docmodel.ImageRef       `json:"image" validate:"required"`
	Document *workspace.DocumentView `json:"document" validate:"required"`
}
