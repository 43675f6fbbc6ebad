package server

import (
	"context"
	"net/http"
	"time"

	"github.com/aristath/cardrisk/internal/database"
	"github.com/aristath/cardrisk/internal/reliability"
	"github.com/aristath/cardrisk/internal/scheduler"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// StatsSource is a database that reports its size
type StatsSource interface {
	Name() string
	Path() string
	GetStats() (*database.Stats, error)
}

// JobRunner lists and runs scheduled jobs
type JobRunner interface {
	Status() []scheduler.EntryStatus
	RunNow(job scheduler.Job) error
}

// JobLookup resolves a job by name
type JobLookup interface {
	ByName(name string) (scheduler.Job, bool)
}

// PanelCounter reports the number of mounted panel sessions
type PanelCounter interface {
	Count() int
}

// BackupRunner creates and lists database backups
type BackupRunner interface {
	CreateAndUpload(ctx context.Context) (reliability.BackupInfo, error)
	ListBackups(ctx context.Context) ([]reliability.BackupInfo, error)
}

// SystemDeps are the collaborators of SystemHandlers. Backups may be nil.
type SystemDeps struct {
	Log       zerolog.Logger
	Databases []StatsSource
	Scheduler JobRunner
	Jobs      JobLookup
	Panels    PanelCounter
	Backups   BackupRunner
}

// SystemHandlers handles system-wide monitoring and operations endpoints
type SystemHandlers struct {
	log       zerolog.Logger
	databases []StatsSource
	scheduler JobRunner
	jobs      JobLookup
	panels    PanelCounter
	backups   BackupRunner
	started   time.Time

	// CPU and RAM usage percentages
	sampleStats func() (float64, float64)
}

// NewSystemHandlers creates a new system handlers instance
func NewSystemHandlers(deps SystemDeps) *SystemHandlers {
	h := &SystemHandlers{
		log:       deps.Log.With().Str("handler", "system").Logger(),
		databases: deps.Databases,
		scheduler: deps.Scheduler,
		jobs:      deps.Jobs,
		panels:    deps.Panels,
		backups:   deps.Backups,
		started:   time.Now(),
	}
	h.sampleStats = h.getSystemStats
	return h
}

// DBInfo describes one database file
type DBInfo struct {
	Name         string  `json:"name"`
	Path         string  `json:"path"`
	SizeMB       float64 `json:"size_mb"`
	WALSizeMB    float64 `json:"wal_size_mb"`
	PageCount    int64   `json:"page_count"`
	FreelistPage int64   `json:"freelist_pages"`
	Error        string  `json:"error,omitempty"`
}

// DatabaseStatsResponse is the database stats payload
type DatabaseStatsResponse struct {
	Databases   []DBInfo `json:"databases"`
	TotalSizeMB float64  `json:"total_size_mb"`
	LastChecked string   `json:"last_checked"`
}

// SystemStatusResponse is the system status payload
type SystemStatusResponse struct {
	Status         string   `json:"status"`
	CPUPercent     float64  `json:"cpu_percent"`
	MemoryPercent  float64  `json:"memory_percent"`
	UptimeSeconds  int64    `json:"uptime_seconds"`
	MountedPanels  int      `json:"mounted_panels"`
	Jobs           int      `json:"jobs"`
	BackupsEnabled bool     `json:"backups_enabled"`
	Databases      []DBInfo `json:"databases"`
	LastUpdated    string   `json:"last_updated"`
}

// JobsStatusResponse lists the scheduled jobs
type JobsStatusResponse struct {
	Jobs []scheduler.EntryStatus `json:"jobs"`
}

const bytesPerMB = 1024 * 1024

func (h *SystemHandlers) collectDatabaseStats() ([]DBInfo, float64) {
	infos := make([]DBInfo, 0, len(h.databases))
	total := 0.0
	for _, db := range h.databases {
		info := DBInfo{Name: db.Name(), Path: db.Path()}
		stats, err := db.GetStats()
		if err != nil {
			h.log.Warn().Err(err).Str("database", db.Name()).Msg("Failed to get database stats")
			info.Error = err.Error()
		} else {
			info.SizeMB = float64(stats.SizeBytes) / bytesPerMB
			info.WALSizeMB = float64(stats.WALSizeBytes) / bytesPerMB
			info.PageCount = stats.PageCount
			info.FreelistPage = stats.FreelistCount
			total += info.SizeMB + info.WALSizeMB
		}
		infos = append(infos, info)
	}
	return infos, total
}

// HandleSystemStatus returns CPU, RAM, database and session statistics
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	cpuPercent, memPercent := h.sampleStats()
	dbs, _ := h.collectDatabaseStats()

	status := "healthy"
	for _, db := range dbs {
		if db.Error != "" {
			status = "degraded"
			break
		}
	}

	h.writeJSON(w, http.StatusOK, SystemStatusResponse{
		Status:         status,
		CPUPercent:     cpuPercent,
		MemoryPercent:  memPercent,
		UptimeSeconds:  int64(time.Since(h.started).Seconds()),
		MountedPanels:  h.panels.Count(),
		Jobs:           len(h.scheduler.Status()),
		BackupsEnabled: h.backups != nil,
		Databases:      dbs,
		LastUpdated:    time.Now().Format(time.RFC3339),
	})
}

// HandleDatabaseStats returns database statistics
func (h *SystemHandlers) HandleDatabaseStats(w http.ResponseWriter, r *http.Request) {
	dbs, total := h.collectDatabaseStats()
	h.writeJSON(w, http.StatusOK, DatabaseStatsResponse{
		Databases:   dbs,
		TotalSizeMB: total,
		LastChecked: time.Now().Format(time.RFC3339),
	})
}

// HandleJobsStatus lists the scheduled jobs with their last and next runs
func (h *SystemHandlers) HandleJobsStatus(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, JobsStatusResponse{Jobs: h.scheduler.Status()})
}

// HandleTriggerJob runs a job in the background
// POST /api/system/jobs/{name}
func (h *SystemHandlers) HandleTriggerJob(w http.ResponseWriter, r *http.Request, name string) {
	job, ok := h.jobs.ByName(name)
	if !ok {
		h.writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown job: " + name})
		return
	}

	go func() {
		if err := h.scheduler.RunNow(job); err != nil {
			h.log.Error().Err(err).Str("job", name).Msg("Triggered job failed")
		}
	}()

	h.log.Info().Str("job", name).Msg("Job triggered")
	h.writeJSON(w, http.StatusAccepted, map[string]string{
		"status": "triggered",
		"job":    name,
	})
}

// HandleTriggerBackup creates and uploads a backup now
// POST /api/system/backup
func (h *SystemHandlers) HandleTriggerBackup(w http.ResponseWriter, r *http.Request) {
	if h.backups == nil {
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "backups are not configured"})
		return
	}

	info, err := h.backups.CreateAndUpload(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Manual backup failed")
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "backup failed"})
		return
	}
	h.writeJSON(w, http.StatusCreated, info)
}

// HandleListBackups lists the uploaded backups, newest first
// GET /api/system/backups
func (h *SystemHandlers) HandleListBackups(w http.ResponseWriter, r *http.Request) {
	if h.backups == nil {
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "backups are not configured"})
		return
	}

	backups, err := h.backups.ListBackups(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list backups")
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list backups"})
		return
	}
	if backups == nil {
		backups = []reliability.BackupInfo{}
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"backups": backups})
}

// getSystemStats calculates CPU and RAM usage percentages.
// CPU is sampled over 100ms to keep the endpoint responsive.
func (h *SystemHandlers) getSystemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}

	return cpuAvg, memStat.UsedPercent
}

func (h *SystemHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
