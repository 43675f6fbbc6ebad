package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers the admin customer routes and the customer spend routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/admin", func(r chi.Router) {
		r.Get("/customers", h.HandleListCustomers)
		r.Post("/customers/import", h.HandleImport)
		r.Patch("/customers/{id}/credit_limit", func(w http.ResponseWriter, r *http.Request) {
			h.HandleUpdateCreditLimit(w, r, chi.URLParam(r, "id"))
		})
		r.Get("/customers/{id}/controls", func(w http.ResponseWriter, r *http.Request) {
			h.HandleGetControls(w, r, chi.URLParam(r, "id"))
		})
		r.Patch("/customers/{id}/controls", func(w http.ResponseWriter, r *http.Request) {
			h.HandleUpdateControls(w, r, chi.URLParam(r, "id"))
		})
		r.Get("/customer/{id}", func(w http.ResponseWriter, r *http.Request) {
			h.HandleGetCustomer(w, r, chi.URLParam(r, "id"))
		})
		r.Get("/customer/{id}/transactions", func(w http.ResponseWriter, r *http.Request) {
			h.HandleListTransactions(w, r, chi.URLParam(r, "id"))
		})
		r.Get("/top/customers", h.HandleTopCustomers)
	})

	r.Route("/customers/{id}", func(r chi.Router) {
		r.Post("/transactions", func(w http.ResponseWriter, r *http.Request) {
			h.HandleSimulateSpend(w, r, chi.URLParam(r, "id"))
		})
		r.Get("/transactions", func(w http.ResponseWriter, r *http.Request) {
			h.HandleListTransactions(w, r, chi.URLParam(r, "id"))
		})
	})
}
