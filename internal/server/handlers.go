package server

import (
	"context"
	"net/http"
	"time"

	"github.com/goccy/go-json"
)

const healthCheckTimeout = 2 * time.Second

// handleHealth handles health check requests. A database that fails its
// quick check turns the response into a 503.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	status := "healthy"
	code := http.StatusOK
	databases := make(map[string]string)
	for _, db := range s.healthCheckers() {
		if err := db.QuickCheck(ctx); err != nil {
			databases[db.Name()] = err.Error()
			status = "degraded"
			code = http.StatusServiceUnavailable
			continue
		}
		databases[db.Name()] = "ok"
	}

	s.writeJSON(w, code, map[string]interface{}{
		"status":    status,
		"version":   "1.0.0",
		"service":   "cardrisk",
		"databases": databases,
		"panels":    s.container.PanelManager.Count(),
	})
}

func (s *Server) healthCheckers() []HealthChecker {
	return []HealthChecker{s.container.CustomersDB, s.container.CacheDB}
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
