package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers the panel session routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/panels", func(r chi.Router) {
		r.Post("/", h.HandleMount)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", func(w http.ResponseWriter, r *http.Request) {
				h.HandleGetPanel(w, r, chi.URLParam(r, "id"))
			})
			r.Delete("/", func(w http.ResponseWriter, r *http.Request) {
				h.HandleUnmount(w, r, chi.URLParam(r, "id"))
			})
			r.Post("/toggle/{kpi}", func(w http.ResponseWriter, r *http.Request) {
				h.HandleToggle(w, r, chi.URLParam(r, "id"), chi.URLParam(r, "kpi"))
			})
			r.Post("/collapse", func(w http.ResponseWriter, r *http.Request) {
				h.HandleCollapse(w, r, chi.URLParam(r, "id"))
			})
			r.Put("/region", func(w http.ResponseWriter, r *http.Request) {
				h.HandleSetRegion(w, r, chi.URLParam(r, "id"))
			})
			r.Delete("/region", func(w http.ResponseWriter, r *http.Request) {
				h.HandleClearRegion(w, r, chi.URLParam(r, "id"))
			})
			r.Post("/interactions", func(w http.ResponseWriter, r *http.Request) {
				h.HandleInteraction(w, r, chi.URLParam(r, "id"))
			})
			r.Get("/ws", func(w http.ResponseWriter, r *http.Request) {
				h.HandleStream(w, r, chi.URLParam(r, "id"))
			})
		})
	})
}
