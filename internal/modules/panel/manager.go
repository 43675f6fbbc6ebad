package panel

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aristath/cardrisk/internal/events"
	"github.com/aristath/cardrisk/internal/modules/drilldown"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrSessionNotFound is returned for unknown or evicted session ids
var ErrSessionNotFound = errors.New("panel session not found")

// Session is one mounted panel with its dismissal controller
type Session struct {
	ID        string
	Panel     *Panel
	Dismissal *Dismissal

	lastActive atomic.Int64
}

// LastActive returns the time of the last access through the manager
func (s *Session) LastActive() time.Time {
	return time.UnixMilli(s.lastActive.Load())
}

func (s *Session) touch(now time.Time) {
	s.lastActive.Store(now.UnixMilli())
}

// Manager owns the mounted panel sessions
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	fetcher  drilldown.Fetcher
	opts     Options
	events   events.Emitter
	log      zerolog.Logger
	now      func() time.Time
}

// NewManager creates a manager whose panels fetch through fetcher
func NewManager(fetcher drilldown.Fetcher, opts Options) *Manager {
	if opts.Events == nil {
		opts.Events = events.Nop{}
	}
	return &Manager{
		sessions: make(map[string]*Session),
		fetcher:  fetcher,
		opts:     opts,
		events:   opts.Events,
		log:      opts.Log.With().Str("service", "panel_manager").Logger(),
		now:      time.Now,
	}
}

// Mount creates a collapsed panel session
func (m *Manager) Mount() *Session {
	id := uuid.New().String()
	p := New(id, m.fetcher, m.opts)
	s := &Session{
		ID:        id,
		Panel:     p,
		Dismissal: NewDismissal(p, m.opts.Log),
	}
	s.touch(m.now())

	m.mu.Lock()
	m.sessions[id] = s
	count := len(m.sessions)
	m.mu.Unlock()

	m.log.Info().Str("session_id", id).Int("sessions", count).Msg("Panel mounted")
	m.events.EmitTyped("panel", events.NewPanelData(events.PanelMounted, id, "", ""))
	return s
}

// Get returns a session and marks it active
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	s.touch(m.now())
	return s, nil
}

// Unmount closes and removes a session
func (m *Manager) Unmount(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}

	m.close(s, "unmounted")
	return nil
}

// EvictIdle unmounts sessions not accessed within maxIdle of now
func (m *Manager) EvictIdle(now time.Time, maxIdle time.Duration) int {
	cutoff := now.Add(-maxIdle)

	var idle []*Session
	m.mu.Lock()
	for id, s := range m.sessions {
		if s.LastActive().Before(cutoff) {
			idle = append(idle, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range idle {
		m.close(s, "idle")
	}
	return len(idle)
}

// CloseAll unmounts every session
func (m *Manager) CloseAll() {
	m.mu.Lock()
	all := make([]*Session, 0, len(m.sessions))
	for id, s := range m.sessions {
		all = append(all, s)
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	for _, s := range all {
		m.close(s, "shutdown")
	}
}

// Count returns the number of mounted sessions
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *Manager) close(s *Session, reason string) {
	s.Panel.Close()
	m.log.Info().Str("session_id", s.ID).Str("reason", reason).Msg("Panel unmounted")
	m.events.EmitTyped("panel", events.NewPanelData(events.PanelUnmounted, s.ID, "", reason))
}
