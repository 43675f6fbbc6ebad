// Package handlers exposes panel sessions over HTTP and WebSocket.
package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/aristath/cardrisk/internal/modules/panel"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

// Sessions is the subset of panel.Manager the handlers use
type Sessions interface {
	Mount() *panel.Session
	Get(id string) (*panel.Session, error)
	Unmount(id string) error
}

// Handler handles panel session requests
type Handler struct {
	sessions Sessions
	log      zerolog.Logger
}

// NewHandler creates a new panel handler
func NewHandler(sessions Sessions, log zerolog.Logger) *Handler {
	return &Handler{
		sessions: sessions,
		log:      log.With().Str("handler", "panels").Logger(),
	}
}

// HandleMount handles POST /api/panels
func (h *Handler) HandleMount(w http.ResponseWriter, r *http.Request) {
	s := h.sessions.Mount()
	snap, err := s.Panel.Snapshot()
	if err != nil {
		h.writeError(w, err, "Failed to mount panel")
		return
	}

	h.writeJSON(w, http.StatusCreated, envelope(map[string]interface{}{
		"session_id": s.ID,
		"panel":      snap,
	}))
}

// HandleGetPanel handles GET /api/panels/{id}
func (h *Handler) HandleGetPanel(w http.ResponseWriter, r *http.Request, id string) {
	s, err := h.sessions.Get(id)
	if err != nil {
		h.writeError(w, err, "Failed to get panel")
		return
	}

	snap, err := s.Panel.Snapshot()
	if err != nil {
		h.writeError(w, err, "Failed to get panel")
		return
	}

	resp := map[string]interface{}{"panel": snap}
	if region, ok := s.Dismissal.Region(); ok {
		resp["region"] = region
	}
	h.writeJSON(w, http.StatusOK, envelope(resp))
}

// HandleUnmount handles DELETE /api/panels/{id}
func (h *Handler) HandleUnmount(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.sessions.Unmount(id); err != nil {
		h.writeError(w, err, "Failed to unmount panel")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleToggle handles POST /api/panels/{id}/toggle/{kpi}
func (h *Handler) HandleToggle(w http.ResponseWriter, r *http.Request, id, kpi string) {
	k, err := panel.ParseKPI(kpi)
	if err != nil {
		h.writeError(w, err, "Failed to toggle panel")
		return
	}

	s, err := h.sessions.Get(id)
	if err != nil {
		h.writeError(w, err, "Failed to toggle panel")
		return
	}

	snap, err := s.Panel.Toggle(k)
	if err != nil {
		h.writeError(w, err, "Failed to toggle panel")
		return
	}

	h.writeJSON(w, http.StatusOK, envelope(map[string]interface{}{"panel": snap}))
}

// HandleCollapse handles POST /api/panels/{id}/collapse
func (h *Handler) HandleCollapse(w http.ResponseWriter, r *http.Request, id string) {
	s, err := h.sessions.Get(id)
	if err != nil {
		h.writeError(w, err, "Failed to collapse panel")
		return
	}

	changed, err := s.Panel.CollapseAll()
	if err != nil {
		h.writeError(w, err, "Failed to collapse panel")
		return
	}
	h.writeSnapshot(w, s, map[string]interface{}{"collapsed": changed})
}

// HandleSetRegion handles PUT /api/panels/{id}/region
func (h *Handler) HandleSetRegion(w http.ResponseWriter, r *http.Request, id string) {
	var rect panel.Rect
	if err := json.NewDecoder(r.Body).Decode(&rect); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	s, err := h.sessions.Get(id)
	if err != nil {
		h.writeError(w, err, "Failed to set region")
		return
	}

	if err := s.Dismissal.SetRegion(rect); err != nil {
		h.writeError(w, err, "Failed to set region")
		return
	}

	h.writeJSON(w, http.StatusOK, envelope(map[string]interface{}{"region": rect}))
}

// HandleClearRegion handles DELETE /api/panels/{id}/region
func (h *Handler) HandleClearRegion(w http.ResponseWriter, r *http.Request, id string) {
	s, err := h.sessions.Get(id)
	if err != nil {
		h.writeError(w, err, "Failed to clear region")
		return
	}
	s.Dismissal.ClearRegion()
	w.WriteHeader(http.StatusNoContent)
}

// interactionRequest accepts {"x", "y", "origin"} as well as {"point": {...}, "origin"}
type interactionRequest struct {
	X      *float64     `json:"x"`
	Y      *float64     `json:"y"`
	Point  *panel.Point `json:"point"`
	Origin string       `json:"origin"`
}

func (req interactionRequest) interaction() (panel.Interaction, error) {
	origin, err := panel.ParseOrigin(req.Origin)
	if err != nil {
		return panel.Interaction{}, err
	}

	switch {
	case req.Point != nil:
		return panel.Interaction{Point: *req.Point, Origin: origin}, nil
	case req.X != nil && req.Y != nil:
		return panel.Interaction{Point: panel.Point{X: *req.X, Y: *req.Y}, Origin: origin}, nil
	default:
		return panel.Interaction{}, errors.New("interaction point is required")
	}
}

// HandleInteraction handles POST /api/panels/{id}/interactions
func (h *Handler) HandleInteraction(w http.ResponseWriter, r *http.Request, id string) {
	var req interactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	ev, err := req.interaction()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s, err := h.sessions.Get(id)
	if err != nil {
		h.writeError(w, err, "Failed to observe interaction")
		return
	}

	dismissed, err := s.Dismissal.Observe(ev)
	if err != nil {
		h.writeError(w, err, "Failed to observe interaction")
		return
	}
	h.writeSnapshot(w, s, map[string]interface{}{"dismissed": dismissed})
}

func (h *Handler) writeSnapshot(w http.ResponseWriter, s *panel.Session, resp map[string]interface{}) {
	snap, err := s.Panel.Snapshot()
	if err != nil {
		h.writeError(w, err, "Failed to get panel")
		return
	}
	resp["panel"] = snap
	h.writeJSON(w, http.StatusOK, envelope(resp))
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
	case errors.Is(err, panel.ErrSessionNotFound), errors.Is(err, panel.ErrClosed):
		http.Error(w, panel.ErrSessionNotFound.Error(), http.StatusNotFound)
	case errors.Is(err, panel.ErrUnknownKPI), errors.Is(err, panel.ErrInvalidRegion):
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
