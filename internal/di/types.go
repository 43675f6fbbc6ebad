// Package di provides dependency injection wiring and initialization.
package di

import (
	"github.com/aristath/cardrisk/internal/config"
	"github.com/aristath/cardrisk/internal/database"
	"github.com/aristath/cardrisk/internal/events"
	"github.com/aristath/cardrisk/internal/modules/customers"
	"github.com/aristath/cardrisk/internal/modules/drilldown"
	"github.com/aristath/cardrisk/internal/modules/panel"
	"github.com/aristath/cardrisk/internal/modules/risk"
	"github.com/aristath/cardrisk/internal/modules/snapshots"
	"github.com/aristath/cardrisk/internal/reliability"
	"github.com/aristath/cardrisk/internal/scheduler"
)

// Container holds all application dependencies
type Container struct {
	// Databases
	CustomersDB *database.DB
	CacheDB     *database.DB

	// Events
	EventBus     *events.Bus
	EventManager *events.Manager

	// Risk policy
	PolicyStore   *config.PolicyStore
	PolicyWatcher *config.PolicyWatcher // nil without a policy file

	// Repositories
	CustomerRepo *customers.Repository
	SnapshotRepo *snapshots.Repository

	// Services
	CustomerService *customers.Service
	RiskService     *risk.Service
	SnapshotService *snapshots.Service
	BackupService   *reliability.BackupService // nil when backups are not configured
	Fetcher         drilldown.Fetcher
	PanelManager    *panel.Manager

	// Background jobs
	Scheduler *scheduler.Scheduler
	Jobs      *JobInstances
}

// JobInstances holds job references for manual triggering via the API
type JobInstances struct {
	Snapshot       scheduler.Job
	PanelEviction  scheduler.Job
	CheckDatabases scheduler.Job
	WALCheckpoint  scheduler.Job
	Backup         scheduler.Job // nil when backups are not configured
}

// ByName returns the job registered under name
func (j *JobInstances) ByName(name string) (scheduler.Job, bool) {
	for _, job := range j.All() {
		if job.Name() == name {
			return job, true
		}
	}
	return nil, false
}

// All returns every configured job
func (j *JobInstances) All() []scheduler.Job {
	all := []scheduler.Job{j.Snapshot, j.PanelEviction, j.CheckDatabases, j.WALCheckpoint, j.Backup}
	out := all[:0]
	for _, job := range all {
		if job != nil {
			out = append(out, job)
		}
	}
	return out
}

// Close releases everything the container owns. It is safe on a partially
// wired container.
func (c *Container) Close() {
	if c.Scheduler != nil {
		c.Scheduler.Stop()
	}
	if c.PolicyWatcher != nil {
		c.PolicyWatcher.Stop()
	}
	if c.PanelManager != nil {
		c.PanelManager.CloseAll()
	}
	if c.CacheDB != nil {
		_ = c.CacheDB.Close()
	}
	if c.CustomersDB != nil {
		_ = c.CustomersDB.Close()
	}
}
