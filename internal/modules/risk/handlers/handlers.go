// Package handlers provides HTTP handlers for portfolio risk KPIs.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/aristath/cardrisk/internal/modules/risk"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

// OverviewProvider computes the current KPI set
type OverviewProvider interface {
	Overview(ctx context.Context) (risk.PortfolioKPIs, error)
}

// Handler handles portfolio risk HTTP requests
type Handler struct {
	overview OverviewProvider
	log      zerolog.Logger
}

// NewHandler creates a new risk handler
func NewHandler(overview OverviewProvider, log zerolog.Logger) *Handler {
	return &Handler{
		overview: overview,
		log:      log.With().Str("handler", "risk").Logger(),
	}
}

// HandleGetOverview handles GET /api/portfolio/overview
func (h *Handler) HandleGetOverview(w http.ResponseWriter, r *http.Request) {
	kpis, err := h.overview.Overview(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to compute portfolio overview")
		http.Error(w, "Failed to compute portfolio overview", http.StatusInternalServerError)
		return
	}

	response := map[string]interface{}{
		"data": kpis,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}
	h.writeJSON(w, http.StatusOK, response)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
