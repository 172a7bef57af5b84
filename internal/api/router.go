package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/softmill/filedex/internal/recordservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *recordservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Record CRUD.
	r.Get("/records", h.ListRecords)
	r.Post("/records", h.CreateRecord)
	r.Get("/records/{ref}", h.GetRecord)
	r.Delete("/records/{ref}", h.DeleteRecord)

	// Content and metadata mutations.
	r.Put("/records/{ref}/content", h.UpdateContent)
	r.Put("/records/{ref}/category", h.ChangeCategory)
	r.Post("/records/{ref}/rename", h.RenameRecord)
	r.Post("/records/{ref}/move", h.MoveRecord)
	r.Post("/records/{ref}/refresh", h.RefreshRecord)

	// Live disk content (registry content may be stale until refreshed).
	r.Get("/records/{ref}/disk", h.ReadDisk)

	// SSE endpoint (protected by the same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
