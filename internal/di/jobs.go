package di

import (
	"fmt"
	"time"

	"github.com/aristath/tradesim/internal/config"
	"github.com/aristath/tradesim/internal/scheduler"
	"github.com/rs/zerolog"
)

// RegisterJobs creates the background jobs and schedules them on the
// container's cron scheduler. The scheduler is not started.
func RegisterJobs(container *Container, cfg *config.Config, log zerolog.Logger) (*JobInstances, error) {
	if container == nil {
		return nil, fmt.Errorf("container cannot be nil")
	}

	container.JobScheduler = scheduler.New(log)
	instances := &JobInstances{}

	autosave := scheduler.NewAutosaveJob(container.PersistenceService, 30*time.Second)
	autosave.SetLogger(log.With().Str("job", autosave.Name()).Logger())
	if err := container.JobScheduler.AddJob(cfg.Jobs.AutosaveSchedule, autosave); err != nil {
		return nil, fmt.Errorf("failed to register autosave job: %w", err)
	}
	instances.Autosave = autosave

	cleanup := scheduler.NewRegimeHistoryCleanupJob(container.RegimePersistence, cfg.Jobs.RegimeHistoryRetention)
	cleanup.SetLogger(log.With().Str("job", cleanup.Name()).Logger())
	if err := container.JobScheduler.AddJob(cfg.Jobs.RegimeCleanupSchedule, cleanup); err != nil {
		return nil, fmt.Errorf("failed to register regime history cleanup job: %w", err)
	}
	instances.RegimeCleanup = cleanup

	checkDBs := scheduler.NewCheckDatabasesJob(container.LedgerDB, container.StateDB)
	checkDBs.SetLogger(log.With().Str("job", checkDBs.Name()).Logger())
	if err := container.JobScheduler.AddJob(cfg.Jobs.DatabaseCheckSchedule, checkDBs); err != nil {
		return nil, fmt.Errorf("failed to register database check job: %w", err)
	}
	instances.CheckDBs = checkDBs

	log.Info().Int("jobs", container.JobScheduler.JobCount()).Msg("Jobs registered")
	return instances, nil
}
