package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	r.Get("/notes", h.ListNotes)
	r.Post("/notes", h.CreateNote)
	r.Route("/notes/{title}", func(r chi.Router) {
		r.Get("/", h.GetNote)
		r.Put("/", h.UpdateNote)
		r.Delete("/", h.DeleteNote)
		r.Post("/rename", h.RenameNote)
		r.Get("/links", h.Links)
		r.Get("/backlinks", h.Backlinks)
	})

	r.Get("/search", h.Search)
	r.Get("/graph", h.Graph)
	r.Get("/status", h.Status)
	r.Post("/reload", h.Reload)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
