package snapshots

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

const jobTimeout = 2 * time.Minute

// Job takes a KPI snapshot on the scheduler's cadence
type Job struct {
	service *Service
	log     zerolog.Logger
}

// NewJob creates the snapshot job
func NewJob(service *Service, log zerolog.Logger) *Job {
	return &Job{
		service: service,
		log:     log.With().Str("job", "kpi_snapshot").Logger(),
	}
}

// Name returns the job name
func (j *Job) Name() string {
	return "kpi_snapshot"
}

// Run executes the job
func (j *Job) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	if _, err := j.service.Take(ctx); err != nil {
		j.log.Error().Err(err).Msg("Failed to take KPI snapshot")
		return err
	}
	return nil
}
