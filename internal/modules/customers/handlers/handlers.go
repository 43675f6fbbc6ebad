// Package handlers provides HTTP handlers for customer administration and simulated spend.
package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/aristath/cardrisk/internal/domain"
	"github.com/aristath/cardrisk/internal/modules/customers"
	"github.com/aristath/cardrisk/internal/modules/drilldown"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

// maxImportBytes bounds an import request body
const maxImportBytes = 16 << 20

// CustomerService is the subset of customers.Service the handlers use
type CustomerService interface {
	Collection(ctx context.Context) ([]domain.Customer, error)
	Get(ctx context.Context, id string) (*domain.Customer, error)
	Import(ctx context.Context, records []customers.ImportRecord) (int, error)
	UpdateCreditLimit(ctx context.Context, id string, limit float64) (*domain.Customer, error)
	SimulateSpend(ctx context.Context, id string, req customers.SpendRequest) (*domain.Transaction, *domain.Customer, error)
	Transactions(ctx context.Context, id string, limit int) ([]domain.Transaction, error)
	Controls(ctx context.Context, id string) (*domain.Controls, error)
	UpdateControls(ctx context.Context, id string, upd customers.ControlsUpdate) (*domain.Controls, error)
	Top(ctx context.Context, kind drilldown.Kind, limit int) ([]domain.CustomerSummary, error)
}

// Handler handles customer HTTP requests
type Handler struct {
	service CustomerService
	log     zerolog.Logger
}

// NewHandler creates a new customer handler
func NewHandler(service CustomerService, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "customers").Logger(),
	}
}

// HandleListCustomers handles GET /api/admin/customers
func (h *Handler) HandleListCustomers(w http.ResponseWriter, r *http.Request) {
	all, err := h.service.Collection(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to load customers")
		http.Error(w, "Failed to load customers", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, envelope(map[string]interface{}{
		"customers": all,
		"count":     len(all),
	}))
}

// HandleGetCustomer handles GET /api/admin/customer/{id}
func (h *Handler) HandleGetCustomer(w http.ResponseWriter, r *http.Request, id string) {
	c, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, err, "Failed to get customer")
		return
	}
	h.writeJSON(w, http.StatusOK, envelope(c))
}

// HandleImport handles POST /api/admin/customers/import.
// The body is either an array of records or {"customers": [...]}.
func (h *Handler) HandleImport(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxImportBytes))
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}

	records, err := decodeImport(body)
	if err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	n, err := h.service.Import(r.Context(), records)
	if err != nil {
		h.writeError(w, err, "Failed to import customers")
		return
	}

	h.writeJSON(w, http.StatusOK, envelope(map[string]interface{}{"imported": n}))
}

func decodeImport(body []byte) ([]customers.ImportRecord, error) {
	var records []customers.ImportRecord
	if err := json.Unmarshal(body, &records); err == nil {
		return records, nil
	}

	var wrapped struct {
		Customers []customers.ImportRecord `json:"customers"`
	}
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, err
	}
	return wrapped.Customers, nil
}

// HandleUpdateCreditLimit handles PATCH /api/admin/customers/{id}/credit_limit
func (h *Handler) HandleUpdateCreditLimit(w http.ResponseWriter, r *http.Request, id string) {
	var req struct {
		CreditLimit *domain.Number `json:"credit_limit"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.CreditLimit == nil {
		http.Error(w, "credit_limit is required", http.StatusBadRequest)
		return
	}

	c, err := h.service.UpdateCreditLimit(r.Context(), id, req.CreditLimit.Float())
	if err != nil {
		h.writeError(w, err, "Failed to update credit limit")
		return
	}
	h.writeJSON(w, http.StatusOK, envelope(c))
}

// HandleGetControls handles GET /api/admin/customers/{id}/controls
func (h *Handler) HandleGetControls(w http.ResponseWriter, r *http.Request, id string) {
	c, err := h.service.Controls(r.Context(), id)
	if err != nil {
		h.writeError(w, err, "Failed to get controls")
		return
	}
	h.writeJSON(w, http.StatusOK, envelope(c))
}

// HandleUpdateControls handles PATCH /api/admin/customers/{id}/controls.
// Only the fields present in the body change; "spend_cap": null removes the cap.
func (h *Handler) HandleUpdateControls(w http.ResponseWriter, r *http.Request, id string) {
	upd, err := decodeControls(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	c, err := h.service.UpdateControls(r.Context(), id, upd)
	if err != nil {
		h.writeError(w, err, "Failed to update controls")
		return
	}
	h.writeJSON(w, http.StatusOK, envelope(c))
}

func decodeControls(body io.Reader) (customers.ControlsUpdate, error) {
	var (
		upd    customers.ControlsUpdate
		fields map[string]json.RawMessage
	)
	if err := json.NewDecoder(body).Decode(&fields); err != nil {
		return upd, errors.New("invalid request body")
	}

	if raw, ok := fields["spend_cap"]; ok {
		if string(raw) == "null" {
			upd.ClearSpendCap = true
		} else {
			var v float64
			if err := json.Unmarshal(raw, &v); err != nil {
				return upd, errors.New("spend_cap must be a number or null")
			}
			upd.SpendCap = &v
		}
	}
	if raw, ok := fields["category_blocks"]; ok {
		upd.CategoryBlocks = []string{}
		if string(raw) != "null" {
			if err := json.Unmarshal(raw, &upd.CategoryBlocks); err != nil {
				return upd, errors.New("category_blocks must be a list of strings")
			}
		}
	}
	if raw, ok := fields["alerts_enabled"]; ok && string(raw) != "null" {
		var v bool
		if err := json.Unmarshal(raw, &v); err != nil {
			return upd, errors.New("alerts_enabled must be a boolean")
		}
		upd.AlertsEnabled = &v
	}
	return upd, nil
}

// HandleTopCustomers handles GET /api/admin/top/customers?kind=&limit=.
// The body is {"customers": [...]}, the shape drill-down clients read.
func (h *Handler) HandleTopCustomers(w http.ResponseWriter, r *http.Request) {
	kind, err := drilldown.ParseKind(r.URL.Query().Get("kind"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	limit := drilldown.DefaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > drilldown.MaxLimit {
			http.Error(w, "limit must be between 1 and 50", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	rows, err := h.service.Top(r.Context(), kind, limit)
	if err != nil {
		h.writeError(w, err, "Failed to load top customers")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"kind":      kind,
		"limit":     limit,
		"customers": rows,
	})
}

// HandleSimulateSpend handles POST /api/customers/{id}/transactions
func (h *Handler) HandleSimulateSpend(w http.ResponseWriter, r *http.Request, id string) {
	var req customers.SpendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	txn, c, err := h.service.SimulateSpend(r.Context(), id, req)
	if err != nil {
		h.writeError(w, err, "Failed to record transaction")
		return
	}

	h.writeJSON(w, http.StatusCreated, envelope(map[string]interface{}{
		"transaction":     txn,
		"utilisation_pct": c.UtilisationPct,
		"customer":        c,
	}))
}

// HandleListTransactions handles GET /api/customers/{id}/transactions and
// GET /api/admin/customer/{id}/transactions
func (h *Handler) HandleListTransactions(w http.ResponseWriter, r *http.Request, id string) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	txs, err := h.service.Transactions(r.Context(), id, limit)
	if err != nil {
		h.writeError(w, err, "Failed to list transactions")
		return
	}
	h.writeJSON(w, http.StatusOK, envelope(map[string]interface{}{"transactions": txs}))
}

func envelope(data interface{}) map[string]interface{} {
	return map[string]interface{}{
		"data": data,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error, msg string) {
	switch {
	case errors.Is(err, customers.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, customers.ErrInvalidInput), errors.Is(err, drilldown.ErrUnknownKind):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		h.log.Error().Err(err).Msg(msg)
		http.Error(w, msg, http.StatusInternalServerError)
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
