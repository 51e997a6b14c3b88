package scheduler

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/aristath/tradesim/internal/database"
	"github.com/rs/zerolog"
)

// walWarnFrames is the WAL size above which a checkpoint is logged as overdue
const walWarnFrames = 1000

// CheckDatabasesJob pings every database, verifies integrity and reports WAL growth
type CheckDatabasesJob struct {
	databases map[string]*database.DB
	log       zerolog.Logger
}

// NewCheckDatabasesJob creates a job over the given databases. Nil entries are skipped.
func NewCheckDatabasesJob(databases ...*database.DB) *CheckDatabasesJob {
	named := make(map[string]*database.DB, len(databases))
	for _, db := range databases {
		if db != nil {
			named[db.Name()] = db
		}
	}
	return &CheckDatabasesJob{databases: named, log: zerolog.Nop()}
}

// SetLogger sets the logger for the job
func (j *CheckDatabasesJob) SetLogger(log zerolog.Logger) {
	j.log = log
}

// Name returns the job name
func (j *CheckDatabasesJob) Name() string {
	return "check_databases"
}

// Run checks each database in name order and fails on the first corrupt one
func (j *CheckDatabasesJob) Run() error {
	names := make([]string, 0, len(j.databases))
	for name := range j.databases {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		db := j.databases[name]

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := db.HealthCheck(ctx)
		cancel()
		if err != nil {
			j.log.Error().Err(err).Str("database", name).Msg("Database integrity check failed")
			return fmt.Errorf("database %s failed health check: %w", name, err)
		}

		// PRAGMA wal_checkpoint returns: busy, log, checkpointed
		var busy, walFrames, checkpointed int
		if err := db.Conn().QueryRow("PRAGMA wal_checkpoint(PASSIVE)").Scan(&busy, &walFrames, &checkpointed); err != nil {
			j.log.Warn().Err(err).Str("database", name).Msg("Failed to check WAL checkpoint")
			continue
		}

		if walFrames > walWarnFrames {
			j.log.Warn().
				Str("database", name).
				Int("wal_frames", walFrames).
				Int("checkpointed", checkpointed).
				Msg("WAL file is large, checkpoint may be needed")
		} else {
			j.log.Debug().
				Str("database", name).
				Int("wal_frames", walFrames).
				Msg("Database OK")
		}
	}

	j.log.Debug().Int("checked", len(names)).Msg("Database check completed")
	return nil
}
