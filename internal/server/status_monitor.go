package server

import (
	"context"
	"sync"
	"time"

	"github.com/aristath/cardrisk/internal/events"
	"github.com/rs/zerolog"
)

// HealthChecker is a database the status monitor can probe
type HealthChecker interface {
	Name() string
	QuickCheck(ctx context.Context) error
}

// StatusMonitor periodically checks database health and emits an event when it changes
type StatusMonitor struct {
	emitter   events.Emitter
	databases []HealthChecker
	log       zerolog.Logger

	// Previous per-database status, empty until the first check
	lastStatus map[string]string

	stopOnce sync.Once
	stop     chan struct{}
}

// NewStatusMonitor creates a new status monitor
func NewStatusMonitor(emitter events.Emitter, databases []HealthChecker, log zerolog.Logger) *StatusMonitor {
	if emitter == nil {
		emitter = events.Nop{}
	}
	return &StatusMonitor{
		emitter:   emitter,
		databases: databases,
		log:       log.With().Str("component", "status_monitor").Logger(),
		stop:      make(chan struct{}),
	}
}

// Start begins periodic status monitoring
func (m *StatusMonitor) Start(interval time.Duration) {
	go m.monitor(interval)
}

// Stop ends monitoring. It is safe to call before Start or more than once.
func (m *StatusMonitor) Stop() {
	m.stopOnce.Do(func() {
		close(m.stop)
	})
}

func (m *StatusMonitor) monitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Do initial check
	m.checkStatuses()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.checkStatuses()
		}
	}
}

// checkStatuses probes every database and emits SystemStatusChanged on the
// first check and whenever any database changes state
func (m *StatusMonitor) checkStatuses() {
	ctx, cancel := context.WithTimeout(context.Background(), healthCheckTimeout)
	defer cancel()

	current := make(map[string]string, len(m.databases))
	healthy := true
	for _, db := range m.databases {
		if err := db.QuickCheck(ctx); err != nil {
			current[db.Name()] = err.Error()
			healthy = false
			continue
		}
		current[db.Name()] = "ok"
	}

	if m.lastStatus != nil && sameStatus(m.lastStatus, current) {
		return
	}
	m.lastStatus = current

	if !healthy {
		m.log.Warn().Interface("databases", current).Msg("System status degraded")
	} else {
		m.log.Debug().Msg("System status healthy")
	}
	m.emitter.EmitTyped("status_monitor", &events.SystemStatusData{
		Healthy:   healthy,
		Databases: current,
	})
}

func sameStatus(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}
