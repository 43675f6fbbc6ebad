package di

import (
	"fmt"

	"github.com/aristath/cardrisk/internal/config"
	"github.com/aristath/cardrisk/internal/modules/panel"
	"github.com/aristath/cardrisk/internal/modules/snapshots"
	"github.com/aristath/cardrisk/internal/reliability"
	"github.com/aristath/cardrisk/internal/scheduler"
	"github.com/rs/zerolog"
)

const (
	panelEvictionSchedule  = "@every 1m"
	checkDatabasesSchedule = "0 30 3 * * *"
	walCheckpointSchedule  = "@every 15m"
)

// RegisterJobs creates the background jobs and registers them with the scheduler.
// Returns JobInstances for manual triggering via API.
func RegisterJobs(container *Container, cfg *config.Config, log zerolog.Logger) (*JobInstances, error) {
	if container == nil {
		return nil, fmt.Errorf("container cannot be nil")
	}

	container.Scheduler = scheduler.New(log)
	instances := &JobInstances{
		Snapshot:       snapshots.NewJob(container.SnapshotService, log),
		PanelEviction:  panel.NewEvictionJob(container.PanelManager, cfg.PanelIdleTimeout, log),
		CheckDatabases: scheduler.NewCheckDatabasesJob(log, container.CustomersDB, container.CacheDB),
		WALCheckpoint:  scheduler.NewWALCheckpointJob(log, container.CustomersDB, container.CacheDB),
	}

	schedules := []struct {
		schedule string
		job      scheduler.Job
	}{
		{cfg.SnapshotSchedule, instances.Snapshot},
		{panelEvictionSchedule, instances.PanelEviction},
		{checkDatabasesSchedule, instances.CheckDatabases},
		{walCheckpointSchedule, instances.WALCheckpoint},
	}

	if container.BackupService != nil {
		instances.Backup = reliability.NewBackupJob(container.BackupService, cfg.Backup.RetentionDays, log)
		schedules = append(schedules, struct {
			schedule string
			job      scheduler.Job
		}{cfg.Backup.Schedule, instances.Backup})
	}

	for _, s := range schedules {
		if err := container.Scheduler.AddJob(s.schedule, s.job); err != nil {
			return nil, fmt.Errorf("failed to register %s job: %w", s.job.Name(), err)
		}
	}

	container.Jobs = instances
	log.Info().Int("jobs", len(schedules)).Msg("Jobs registered")

	return instances, nil
}
