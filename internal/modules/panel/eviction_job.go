package panel

import (
	"time"

	"github.com/rs/zerolog"
)

// EvictionJob unmounts panel sessions that have been idle too long
type EvictionJob struct {
	manager *Manager
	maxIdle time.Duration
	log     zerolog.Logger
}

// NewEvictionJob creates the idle-session eviction job
func NewEvictionJob(manager *Manager, maxIdle time.Duration, log zerolog.Logger) *EvictionJob {
	return &EvictionJob{
		manager: manager,
		maxIdle: maxIdle,
		log:     log.With().Str("job", "panel_eviction").Logger(),
	}
}

// Name returns the job name
func (j *EvictionJob) Name() string {
	return "panel_eviction"
}

// Run executes the job
func (j *EvictionJob) Run() error {
	evicted := j.manager.EvictIdle(j.manager.now(), j.maxIdle)
	if evicted > 0 {
		j.log.Info().Int("evicted", evicted).Int("remaining", j.manager.Count()).Msg("Evicted idle panel sessions")
	}
	return nil
}
