package api

import (
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/folio/internal/index"
	"github.com/starford/folio/internal/linksync"
	"github.com/starford/folio/internal/workspace"
)

// Handler holds API route handlers.
type Handler struct {
	svc *workspace.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *workspace.Service) *Handler {
	return &Handler{svc: svc}
}

// urlParam returns a decoded URL parameter. Document ids may contain encoded
// slashes (e.g. topics%2Fplan).
func urlParam(r *http.Request, name string) string {
	raw := chi.URLParam(r, name)
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

func docID(r *http.Request) string { return urlParam(r, "id") }

// ifMatch returns the If-Match header without ETag quoting.
func ifMatch(r *http.Request) string {
	return strings.Trim(strings.TrimPrefix(r.Header.Get("If-Match"), "W/"), `"`)
}

func writeDocument(w http.ResponseWriter, status int, v *workspace.DocumentView) {
	w.Header().Set("ETag", `"`+v.Checksum+`"`)
	writeJSON(w, status, v)
}

// ListDocuments handles GET /api/documents.
//
//	@Summary		List documents with optional pagination and filtering
//	@Tags			documents
//	@Produce		json
//	@Param			limit	query		int		false	"Page size"
//	@Param			offset	query		int		false	"Page offset"
//	@Param			tag		query		string	false	"Filter by tag"
//	@Param			sort	query		string	false	"Sort field"	Enums(updated_at, title, id)
//	@Success		200		{object}	DocumentListResponse
//	@Security		BearerAuth
//	@Router			/documents [get]
func (h *Handler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	items, total, err := h.svc.ListDocuments(r.Context(), workspace.ListQuery{
		Limit:  limit,
		Offset: offset,
		Tag:    q.Get("tag"),
		Sort:   q.Get("sort"),
	})
	if err != nil {
		writeError(w, "list documents", err)
		return
	}
	if items == nil {
		items = []workspace.DocumentSummary{}
	}
	writeJSON(w, http.StatusOK, DocumentListResponse{Documents: items, Total: total})
}

// GetDocument handles GET /api/documents/{id}.
//
//	@Summary		Open a document
//	@Tags			documents
//	@Produce		json
//	@Param			id	path		string	true	"Document id"
//	@Success		200	{object}	DocumentView
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/documents/{id} [get]
func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	v, err := h.svc.OpenDocument(r.Context(), docID(r))
	if err != nil {
		writeError(w, "open document", err)
		return
	}
	writeDocument(w, http.StatusOK, v)
}

// CreateDocument handles POST /api/documents.
//
//	@Summary		Create a document, optionally imported from Markdown
//	@Tags			documents
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateDocumentRequest	true	"Document to create"
//	@Success		201		{object}	DocumentView
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/documents [post]
func (h *Handler) CreateDocument(w http.ResponseWriter, r *http.Request) {
	var req CreateDocumentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	v, err := h.svc.CreateDocument(r.Context(), req)
	if err != nil {
		writeError(w, "create document", err)
		return
	}
	writeDocument(w, http.StatusCreated, v)
}

// DeleteDocument handles DELETE /api/documents/{id}.
//
//	@Summary		Move a document to the trash
//	@Tags			documents
//	@Param			id	path	string	true	"Document id"
//	@Success		204	"Document deleted"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/documents/{id} [delete]
func (h *Handler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteDocument(r.Context(), docID(r)); err != nil {
		writeError(w, "delete document", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ApplyEdit handles POST /api/documents/{id}/edits.
//
//	@Summary		Apply an editor event
//	@Tags			editing
//	@Accept			json
//	@Produce		json
//	@Param			id			path		string			true	"Document id"
//	@Param			If-Match	header		string			false	"Checksum the edit was made against"
//	@Param			body		body		workspace.Edit	true	"Editor event"
//	@Success		200			{object}	DocumentView
//	@Failure		400			{object}	errResponse
//	@Failure		409			{object}	errResponse
//	@Failure		422			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/documents/{id}/edits [post]
func (h *Handler) ApplyEdit(w http.ResponseWriter, r *http.Request) {
	var e workspace.Edit
	if !decodeJSON(w, r, &e) {
		return
	}
	if m := ifMatch(r); m != "" {
		e.IfMatch = m
	}
	v, err := h.svc.ApplyEdit(r.Context(), docID(r), e)
	if err != nil {
		writeError(w, "apply edit", err)
		return
	}
	writeDocument(w, http.StatusOK, v)
}

// Sync handles POST /api/documents/{id}/sync.
//
//	@Summary		Synchronize destination copies with the registry
//	@Tags			links
//	@Produce		json
//	@Param			id	path		string	true	"Document id"
//	@Success		200	{object}	SyncResponse
//	@Security		BearerAuth
//	@Router			/documents/{id}/sync [post]
func (h *Handler) Sync(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.Sync(r.Context(), docID(r))
	if err != nil {
		writeError(w, "sync document", err)
		return
	}
	writeJSON(w, http.StatusOK, SyncResponse{Report: report})
}

// CreateLink handles POST /api/documents/{id}/links.
//
//	@Summary		Tag the selected text
//	@Tags			links
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string					true	"Document id"
//	@Param			body	body		workspace.LinkRequest	true	"Selection and tag"
//	@Success		201		{object}	workspace.LinkResult
//	@Security		BearerAuth
//	@Router			/documents/{id}/links [post]
func (h *Handler) CreateLink(w http.ResponseWriter, r *http.Request) {
	var req workspace.LinkRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.svc.CreateLink(r.Context(), docID(r), req)
	if err != nil {
		writeError(w, "create link", err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// RemoveLinks handles DELETE /api/documents/{id}/links.
//
//	@Summary		Remove links from the selected text
//	@Tags			links
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string				true	"Document id"
//	@Param			body	body		SelectionRequest	true	"Selection"
//	@Success		200		{object}	workspace.RemoveLinksResult
//	@Security		BearerAuth
//	@Router			/documents/{id}/links [delete]
func (h *Handler) RemoveLinks(w http.ResponseWriter, r *http.Request) {
	var req SelectionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.svc.RemoveLinks(r.Context(), docID(r), req.Selection)
	if err != nil {
		writeError(w, "remove links", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// InsertSection handles POST /api/documents/{id}/sections.
func (h *Handler) InsertSection(w http.ResponseWriter, r *http.Request) {
	var req SectionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	v, err := h.svc.InsertSection(r.Context(), docID(r), req.Selection, req.Title)
	if err != nil {
		writeError(w, "insert section", err)
		return
	}
	writeDocument(w, http.StatusOK, v)
}

// UpdateImage handles PUT /api/documents/{id}/images/{blockKey}.
func (h *Handler) UpdateImage(w http.ResponseWriter, r *http.Request) {
	var req UpdateImageRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	v, err := h.svc.UpdateImage(r.Context(), docID(r), urlParam(r, "blockKey"), req.ImageID, req.ImageUseID, req.Image)
	if err != nil {
		writeError(w, "update image", err)
		return
	}
	writeDocument(w, http.StatusOK, v)
}

// Find handles GET /api/documents/{id}/find?q=.
//
//	@Summary		Set the search term and list its matches
//	@Tags			find
//	@Produce		json
//	@Param			id	path		string	true	"Document id"
//	@Param			q	query		string	false	"Search term (empty clears)"
//	@Success		200	{object}	workspace.FindView
//	@Security		BearerAuth
//	@Router			/documents/{id}/find [get]
func (h *Handler) Find(w http.ResponseWriter, r *http.Request) {
	v, err := h.svc.Find(r.Context(), docID(r), r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, "find", err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// FindNext handles POST /api/documents/{id}/find/next.
func (h *Handler) FindNext(w http.ResponseWriter, r *http.Request) { h.step(w, r, true) }

// FindPrev handles POST /api/documents/{id}/find/prev.
func (h *Handler) FindPrev(w http.ResponseWriter, r *http.Request) { h.step(w, r, false) }

func (h *Handler) step(w http.ResponseWriter, r *http.Request, forward bool) {
	var req FindStepRequest
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}
	v, err := h.svc.Step(r.Context(), docID(r), req.Visible, forward)
	if err != nil {
		writeError(w, "find step", err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// Replace handles POST /api/documents/{id}/replace.
//
//	@Summary		Replace the current match or all matches
//	@Tags			find
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string			true	"Document id"
//	@Param			body	body		ReplaceRequest	true	"Replacement"
//	@Success		200		{object}	workspace.ReplaceResult
//	@Security		BearerAuth
//	@Router			/documents/{id}/replace [post]
func (h *Handler) Replace(w http.ResponseWriter, r *http.Request) {
	var req ReplaceRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.svc.Replace(r.Context(), docID(r), req.Replacement, req.All)
	if err != nil {
		writeError(w, "replace", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// WordCount handles GET /api/documents/{id}/wordcount.
func (h *Handler) WordCount(w http.ResponseWriter, r *http.Request) {
	v, err := h.svc.WordCount(r.Context(), docID(r))
	if err != nil {
		writeError(w, "word count", err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// Registry handles GET /api/registry.
//
//	@Summary		Dump the link registry
//	@Tags			links
//	@Produce		json
//	@Success		200	{object}	linksync.Registry
//	@Security		BearerAuth
//	@Router			/registry [get]
func (h *Handler) Registry(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Registry())
}

// SetAlias handles PUT /api/links/{linkID}/alias.
func (h *Handler) SetAlias(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "linkID"))
	if err != nil || id < 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid link id"))
		return
	}
	var req AliasRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.svc.SetAlias(r.Context(), linksync.LinkID(id), req.Document); err != nil {
		writeError(w, "set alias", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteTag handles DELETE /api/tags/{tag}?doc=.
//
//	@Summary		Remove a tag from a document and delete its links
//	@Tags			links
//	@Param			tag	path	string	true	"Tag"
//	@Param			doc	query	string	true	"Document the tag is removed from"
//	@Success		204	"Tag deleted"
//	@Failure		400	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/tags/{tag} [delete]
func (h *Handler) DeleteTag(w http.ResponseWriter, r *http.Request) {
	doc := r.URL.Query().Get("doc")
	if doc == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'doc' is required"))
		return
	}
	tag := urlParam(r, "tag")
	if err := h.svc.DeleteTag(r.Context(), doc, tag); err != nil {
		writeError(w, "delete tag", err)
		return
	}
	slog.Info("api: tag deleted", slog.String("doc", doc), slog.String("tag", tag))
	w.WriteHeader(http.StatusNoContent)
}

// Search handles GET /api/search.
//
//	@Summary		Full-text search across documents
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.svc.Search(r.Context(), q, limit)
	if err != nil {
		writeError(w, "search", err)
		return
	}
	if results == nil {
		results = []index.SearchResult{}
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}
