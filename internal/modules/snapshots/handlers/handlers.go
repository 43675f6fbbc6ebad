// Package handlers provides HTTP handlers for KPI snapshot history.
package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/aristath/cardrisk/internal/modules/snapshots"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

// SnapshotService is the subset of snapshots.Service the handlers use
type SnapshotService interface {
	Take(ctx context.Context) (*snapshots.Snapshot, error)
	History(ctx context.Context, limit int) ([]snapshots.Snapshot, error)
}

// Handler handles snapshot HTTP requests
type Handler struct {
	service SnapshotService
	log     zerolog.Logger
}

// NewHandler creates a new snapshot handler
func NewHandler(service SnapshotService, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "snapshots").Logger(),
	}
}

// HandleListSnapshots handles GET /api/portfolio/snapshots?limit=
func (h *Handler) HandleListSnapshots(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	history, err := h.service.History(r.Context(), limit)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list snapshots")
		http.Error(w, "Failed to list snapshots", http.StatusInternalServerError)
		return
	}
	if history == nil {
		history = []snapshots.Snapshot{}
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"snapshots": history,
			"count":     len(history),
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
			"limit":     snapshots.ClampLimit(limit),
		},
	})
}

// HandleTakeSnapshot handles POST /api/portfolio/snapshots
func (h *Handler) HandleTakeSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := h.service.Take(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to take snapshot")
		http.Error(w, "Failed to take snapshot", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusCreated, map[string]interface{}{
		"data": snap,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
