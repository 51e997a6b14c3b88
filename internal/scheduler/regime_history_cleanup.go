package scheduler

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// RegimeHistoryPruner deletes regime transitions recorded before a cutoff
type RegimeHistoryPruner interface {
	PruneOlderThan(cutoff time.Time) (int64, error)
}

// RegimeHistoryCleanupJob keeps the regime history table within its retention window
type RegimeHistoryCleanupJob struct {
	pruner    RegimeHistoryPruner
	retention time.Duration
	now       func() time.Time
	log       zerolog.Logger
}

// NewRegimeHistoryCleanupJob creates a cleanup job keeping retentionDays of history
func NewRegimeHistoryCleanupJob(pruner RegimeHistoryPruner, retentionDays int) *RegimeHistoryCleanupJob {
	return &RegimeHistoryCleanupJob{
		pruner:    pruner,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
		now:       time.Now,
		log:       zerolog.Nop(),
	}
}

// SetLogger sets the logger for the job
func (j *RegimeHistoryCleanupJob) SetLogger(log zerolog.Logger) {
	j.log = log
}

// Name returns the job name
func (j *RegimeHistoryCleanupJob) Name() string {
	return "regime_history_cleanup"
}

// Run deletes transitions older than the retention window
func (j *RegimeHistoryCleanupJob) Run() error {
	if j.retention <= 0 {
		return nil
	}

	cutoff := j.now().Add(-j.retention)
	removed, err := j.pruner.PruneOlderThan(cutoff)
	if err != nil {
		return fmt.Errorf("failed to prune regime history: %w", err)
	}

	if removed > 0 {
		j.log.Info().
			Int64("removed", removed).
			Time("cutoff", cutoff).
			Msg("Pruned regime history")
	}
	return nil
}
