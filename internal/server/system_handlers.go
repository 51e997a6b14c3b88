package server

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/tradesim/internal/database"
	"github.com/aristath/tradesim/internal/di"
	"github.com/aristath/tradesim/internal/scheduler"
)

// SystemStatusResponse represents the system status response
type SystemStatusResponse struct {
	Status        string    `json:"status"` // "healthy" or "degraded"
	Version       string    `json:"version"`
	UptimeSeconds int64     `json:"uptime_seconds"`
	Running       bool      `json:"running"`
	Ticks         uint64    `json:"ticks"`
	Seed          uint64    `json:"seed"`
	Symbols       int       `json:"symbols"`
	StateBackend  string    `json:"state_backend,omitempty"`
	LastSaved     string    `json:"last_saved,omitempty"`
	CPUPercent    float64   `json:"cpu_percent"`
	MemoryPercent float64   `json:"memory_percent"`
	Goroutines    int       `json:"goroutines"`
	Databases     []DBInfo  `json:"databases"`
	CheckedAt     time.Time `json:"checked_at"`
}

// DBInfo represents information about a single database
type DBInfo struct {
	Name      string  `json:"name"`
	Path      string  `json:"path"`
	SizeMB    float64 `json:"size_mb"`
	WALSizeMB float64 `json:"wal_size_mb"`
	Healthy   bool    `json:"healthy"`
	Error     string  `json:"error,omitempty"`
}

// SystemHandlers serves health, host statistics and manual job triggers
type SystemHandlers struct {
	container *di.Container
	jobs      *di.JobInstances
	started   time.Time
	log       zerolog.Logger
}

// NewSystemHandlers creates system handlers. jobs may be nil.
func NewSystemHandlers(container *di.Container, jobs *di.JobInstances, log zerolog.Logger) *SystemHandlers {
	return &SystemHandlers{
		container: container,
		jobs:      jobs,
		started:   time.Now(),
		log:       log.With().Str("handler", "system").Logger(),
	}
}

// HandleHealth is a cheap liveness probe
// GET /api/health
func (h *SystemHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(h.log, w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"version": Version,
		"running": h.container.Controller.IsRunning(),
	})
}

// HandleSystemStatus returns simulator and host statistics
// GET /api/system/status
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	c := h.container
	cpuPercent, memPercent := h.getSystemStats()

	resp := SystemStatusResponse{
		Status:        "healthy",
		Version:       Version,
		UptimeSeconds: int64(time.Since(h.started).Seconds()),
		Running:       c.Controller.IsRunning(),
		Ticks:         c.Scheduler.TickCount(),
		Seed:          c.Seed,
		Symbols:       c.PriceBook.Len(),
		CPUPercent:    cpuPercent,
		MemoryPercent: memPercent,
		Goroutines:    runtime.NumGoroutine(),
		Databases:     []DBInfo{},
		CheckedAt:     time.Now().UTC(),
	}
	if c.PersistenceService != nil {
		resp.StateBackend = c.PersistenceService.Backend()
		if saved := c.PersistenceService.LastSaved(); !saved.IsZero() {
			resp.LastSaved = saved.Format(time.RFC3339)
		}
	}

	for _, db := range []*database.DB{c.LedgerDB, c.StateDB} {
		if db == nil {
			continue
		}
		info := h.databaseInfo(r.Context(), db)
		if !info.Healthy {
			resp.Status = "degraded"
		}
		resp.Databases = append(resp.Databases, info)
	}

	writeJSON(h.log, w, http.StatusOK, resp)
}

func (h *SystemHandlers) databaseInfo(ctx context.Context, db *database.DB) DBInfo {
	info := DBInfo{Name: db.Name(), Path: db.Path(), Healthy: true}
	if err := db.QuickCheck(ctx); err != nil {
		info.Healthy = false
		info.Error = err.Error()
		return info
	}
	stats, err := db.GetStats()
	if err != nil {
		h.log.Warn().Err(err).Str("database", db.Name()).Msg("Failed to get database stats")
		return info
	}
	info.SizeMB = float64(stats.SizeBytes) / 1024 / 1024
	info.WALSizeMB = float64(stats.WALSizeBytes) / 1024 / 1024
	return info
}

// getSystemStats samples CPU over 100ms and memory instantly
func (h *SystemHandlers) getSystemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil || len(cpuPercent) == 0 {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return cpuPercent[0], 0
	}
	return cpuPercent[0], memStat.UsedPercent
}

// HandleTriggerJob runs a background job immediately
// POST /api/system/jobs/{job}
func (h *SystemHandlers) HandleTriggerJob(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "job")
	job := h.lookupJob(name)
	if job == nil {
		writeError(h.log, w, http.StatusNotFound, "unknown job: "+name)
		return
	}

	var err error
	if h.container.JobScheduler != nil {
		err = h.container.JobScheduler.RunNow(job)
	} else {
		err = job.Run()
	}
	if err != nil {
		h.log.Error().Err(err).Str("job", name).Msg("Manual job run failed")
		writeJSON(h.log, w, http.StatusInternalServerError, map[string]string{
			"status":  "error",
			"job":     name,
			"message": err.Error(),
		})
		return
	}

	writeJSON(h.log, w, http.StatusOK, map[string]string{
		"status":  "success",
		"job":     name,
		"message": "Job completed",
	})
}

func (h *SystemHandlers) lookupJob(name string) scheduler.Job {
	if h.jobs == nil {
		return nil
	}
	var jobs []scheduler.Job
	if h.jobs.Autosave != nil {
		jobs = append(jobs, h.jobs.Autosave)
	}
	if h.jobs.RegimeCleanup != nil {
		jobs = append(jobs, h.jobs.RegimeCleanup)
	}
	if h.jobs.CheckDBs != nil {
		jobs = append(jobs, h.jobs.CheckDBs)
	}
	for _, job := range jobs {
		if job.Name() == name {
			return job
		}
	}
	return nil
}
