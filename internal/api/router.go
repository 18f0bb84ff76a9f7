package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/folio/internal/workspace"
)

// RouterOptions configures NewRouter.
type RouterOptions struct {
	// AuthEnabled controls whether Bearer token auth is enforced.
	AuthEnabled bool
	Token       string
	// Events, if non-nil, is mounted at GET /events inside the auth group.
	Events http.Handler
	// Root is the workspace directory; attachments live under it.
	Root           string
	MaxUploadBytes int64
}

// NewRouter creates a chi router with all API routes mounted.
func NewRouter(svc *workspace.Service, opts RouterOptions) chi.Router {
	h := NewHandler(svc)
	ah := NewAttachmentHandler(svc, opts.Root, opts.MaxUploadBytes)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(opts.AuthEnabled, opts.Token))

	r.Route("/documents", func(r chi.Router) {
		r.Get("/", h.ListDocuments)
		r.Post("/", h.CreateDocument)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetDocument)
			r.Delete("/", h.DeleteDocument)

			r.Post("/edits", h.ApplyEdit)
			r.Post("/sync", h.Sync)
			r.Post("/links", h.CreateLink)
			r.Delete("/links", h.RemoveLinks)
			r.Post("/sections", h.InsertSection)

			r.Post("/images", ah.Upload)
			r.Put("/images/{blockKey}", h.UpdateImage)

			r.Get("/find", h.Find)
			r.Post("/find/next", h.FindNext)
			r.Post("/find/prev", h.FindPrev)
			r.Post("/replace", h.Replace)

			r.Get("/wordcount", h.WordCount)
		})
	})

	// Links and tags.
	r.Get("/registry", h.Registry)
	r.Put("/links/{linkID}/alias", h.SetAlias)
	r.Delete("/tags/{tag}", h.DeleteTag)

	r.Get("/search", h.Search)
	r.Get("/attachments/{filename}", ah.ServeFile)

	if opts.Events != nil {
		r.Get("/events", opts.Events.ServeHTTP)
	}

	return r
}
