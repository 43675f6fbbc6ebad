package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers the portfolio risk routes. The /portfolio prefix is
// shared with the snapshot routes, so no sub-router is mounted.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/portfolio/overview", h.HandleGetOverview)
}
