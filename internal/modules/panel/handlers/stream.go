package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/aristath/cardrisk/internal/modules/panel"
	"github.com/goccy/go-json"
	"nhooyr.io/websocket"
)

const writeWait = 10 * time.Second

// frame is one server-to-client WebSocket message
type frame struct {
	Type  string          `json:"type"`
	Panel *panel.Snapshot `json:"panel,omitempty"`
	Error string          `json:"error,omitempty"`
}

// command is one client-to-server WebSocket message. Interactions reuse the
// REST body shape.
type command struct {
	Type   string      `json:"type"`
	KPI    string      `json:"kpi"`
	Region *panel.Rect `json:"region"`
	interactionRequest
}

// HandleStream handles GET /api/panels/{id}/ws. Every panel change is pushed
// as a snapshot frame, and the client may drive the panel with toggle,
// collapse, region and interaction commands on the same socket.
func (h *Handler) HandleStream(w http.ResponseWriter, r *http.Request, id string) {
	s, err := h.sessions.Get(id)
	if err != nil {
		h.writeError(w, err, "Failed to open panel stream")
		return
	}

	updates, unsubscribe, err := s.Panel.Subscribe()
	if err != nil {
		h.writeError(w, err, "Failed to open panel stream")
		return
	}
	defer unsubscribe()

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Str("session_id", id).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "")

	log := h.log.With().Str("session_id", id).Logger()
	log.Debug().Msg("Panel stream opened")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go h.readCommands(ctx, cancel, conn, s)

	for {
		select {
		case <-ctx.Done():
			log.Debug().Msg("Panel stream closed by client")
			return
		case snap, ok := <-updates:
			if !ok {
				conn.Close(websocket.StatusGoingAway, "panel unmounted")
				return
			}
			if err := writeFrame(ctx, conn, frame{Type: "snapshot", Panel: &snap}); err != nil {
				log.Debug().Err(err).Msg("Panel stream write failed")
				return
			}
		}
	}
}

func (h *Handler) readCommands(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, s *panel.Session) {
	defer cancel()

	for {
		msgType, data, err := conn.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway && ctx.Err() == nil {
				h.log.Debug().Err(err).Str("session_id", s.ID).Msg("Panel stream read failed")
			}
			return
		}
		if msgType != websocket.MessageText {
			continue
		}

		if err := h.apply(s, data); err != nil {
			if werr := writeFrame(ctx, conn, frame{Type: "error", Error: err.Error()}); werr != nil {
				return
			}
		}
	}
}

// apply runs one command. Resulting state changes reach the client through
// the subscription, so nothing is written here on success.
func (h *Handler) apply(s *panel.Session, data []byte) error {
	// A command counts as activity, so a panel driven only over the socket
	// is not evicted as idle.
	if _, err := h.sessions.Get(s.ID); err != nil {
		return err
	}

	var cmd command
	if err := json.Unmarshal(data, &cmd); err != nil {
		return fmt.Errorf("invalid command: %w", err)
	}

	switch cmd.Type {
	case "toggle":
		k, err := panel.ParseKPI(cmd.KPI)
		if err != nil {
			return err
		}
		_, err = s.Panel.Toggle(k)
		return err
	case "collapse":
		_, err := s.Panel.CollapseAll()
		return err
	case "region":
		if cmd.Region == nil {
			s.Dismissal.ClearRegion()
			return nil
		}
		return s.Dismissal.SetRegion(*cmd.Region)
	case "interaction":
		ev, err := cmd.interaction()
		if err != nil {
			return err
		}
		_, err = s.Dismissal.Observe(ev)
		return err
	default:
		return fmt.Errorf("unknown command %q", cmd.Type)
	}
}

func writeFrame(ctx context.Context, conn *websocket.Conn, f frame) error {
	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("failed to marshal frame: %w", err)
	}

	writeCtx, cancel := context.WithTimeout(ctx, writeWait)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data)
}
