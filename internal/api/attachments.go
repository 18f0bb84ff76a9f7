package api

import (
	"errors"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/starford/folio/internal/attachments"
	"github.com/starford/folio/internal/docmodel"
	"github.com/starford/folio/internal/workspace"
)

// AttachmentHandler stores uploaded images and records them on document
// blocks.
type AttachmentHandler struct {
	svc      *workspace.Service
	files    *attachments.Store
	maxBytes int64
}

// NewAttachmentHandler creates a handler storing files under the workspace
// root.
func NewAttachmentHandler(svc *workspace.Service, root string, maxBytes int64) *AttachmentHandler {
	return &AttachmentHandler{svc: svc, files: attachments.NewStore(root, maxBytes), maxBytes: maxBytes}
}

// ServeFile handles GET /api/attachments/{filename}.
func (h *AttachmentHandler) ServeFile(w http.ResponseWriter, r *http.Request) {
	abs, err := h.files.Path(chi.URLParam(r, "filename"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if _, statErr := os.Stat(abs); errors.Is(statErr, os.ErrNotExist) {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, abs)
}

// Upload handles POST /api/documents/{id}/images (multipart/form-data).
//
// The "file" field holds the image. "anchorKey" and "offset" place the caret
// the image is attached at; "caption" and "width" are optional. The file is
// stored under a fresh name, which becomes the image id, and every upload
// gets its own image use id.
func (h *AttachmentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes+1<<20)
	if err := r.ParseMultipartForm(h.maxBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("file too large or invalid multipart"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("missing 'file' field in multipart form"))
		return
	}
	defer file.Close()

	offset, err := strconv.Atoi(r.FormValue("offset"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("offset must be an integer"))
		return
	}
	width := 0
	if v := r.FormValue("width"); v != "" {
		if width, err = strconv.Atoi(v); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("width must be an integer"))
			return
		}
	}

	name, size, err := h.files.Save(filepath.Ext(header.Filename), file)
	if err != nil {
		if errors.Is(err, attachments.ErrUnsupported) {
			writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
			return
		}
		slog.Error("api: store attachment failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("failed to write file"))
		return
	}

	img := docmodel.ImageRef{
		ImageID:    name,
		ImageUseID: uuid.NewString(),
		Caption:    r.FormValue("caption"),
		Width:      width,
	}
	sel := docmodel.Collapsed(r.FormValue("anchorKey"), offset)
	res, err := h.svc.AttachImage(r.Context(), docID(r), sel, img)
	if err != nil {
		_ = h.files.Remove(name)
		writeError(w, "attach image", err)
		return
	}

	writeJSON(w, http.StatusCreated, AttachmentUploadResponse{
		Filename: name,
		Size:     size,
		URL:      "/api/attachments/" + name,
		BlockKey: res.BlockKey,
		Image:    res.Image,
		Document: res.Document,
	})
}
