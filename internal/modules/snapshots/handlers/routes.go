package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers the snapshot history routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/portfolio/snapshots", h.HandleListSnapshots)
	r.Post("/portfolio/snapshots", h.HandleTakeSnapshot)
}
