package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// StateSaver persists the running simulation
type StateSaver interface {
	Save(ctx context.Context) error
}

// AutosaveJob periodically saves simulation, market and portfolio state
type AutosaveJob struct {
	saver   StateSaver
	timeout time.Duration
	log     zerolog.Logger
}

// NewAutosaveJob creates an autosave job. Each run is bounded by timeout.
func NewAutosaveJob(saver StateSaver, timeout time.Duration) *AutosaveJob {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &AutosaveJob{saver: saver, timeout: timeout, log: zerolog.Nop()}
}

// SetLogger sets the logger for the job
func (j *AutosaveJob) SetLogger(log zerolog.Logger) {
	j.log = log
}

// Name returns the job name
func (j *AutosaveJob) Name() string {
	return "autosave_state"
}

// Run saves the current state
func (j *AutosaveJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	start := time.Now()
	if err := j.saver.Save(ctx); err != nil {
		return err
	}
	j.log.Debug().Dur("took", time.Since(start)).Msg("Autosave completed")
	return nil
}
