package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type countingJob struct {
	runs  atomic.Int32
	block chan struct{}
	err   error
}

func (j *countingJob) Name() string { return "counting" }

func (j *countingJob) Run() error {
	j.runs.Add(1)
	if j.block != nil {
		<-j.block
	}
	return j.err
}

func TestAddJob_InvalidSchedule(t *testing.T) {
	s := New(zerolog.Nop())

	err := s.AddJob("every now and then", &countingJob{})

	assert.Error(t, err)
	assert.Equal(t, 0, s.JobCount())
}

func TestAddJob_EmptyScheduleDisablesJob(t *testing.T) {
	s := New(zerolog.Nop())

	require.NoError(t, s.AddJob("", &countingJob{}))
	assert.Equal(t, 0, s.JobCount())
}

func TestAddJob_AcceptsFiveAndSixFieldSpecs(t *testing.T) {
	s := New(zerolog.Nop())

	require.NoError(t, s.AddJob("*/5 * * * *", &countingJob{}))
	require.NoError(t, s.AddJob("0 */5 * * * *", &countingJob{}))
	require.NoError(t, s.AddJob("@every 30s", &countingJob{}))
	assert.Equal(t, 3, s.JobCount())
}

func TestScheduler_RunsJobs(t *testing.T) {
	s := New(zerolog.Nop())
	job := &countingJob{err: errors.New("failures are logged, not fatal")}
	require.NoError(t, s.AddJob("@every 1s", job))

	s.Start()
	defer s.Stop()

	assert.Eventually(t, func() bool { return job.runs.Load() >= 1 }, 3*time.Second, 20*time.Millisecond)
}

func TestScheduler_SkipsOverlappingRuns(t *testing.T) {
	s := New(zerolog.Nop())
	job := &countingJob{block: make(chan struct{})}
	require.NoError(t, s.AddJob("@every 1s", job))

	s.Start()
	require.Eventually(t, func() bool { return job.runs.Load() == 1 }, 3*time.Second, 20*time.Millisecond)
	time.Sleep(1500 * time.Millisecond)
	assert.Equal(t, int32(1), job.runs.Load())

	close(job.block)
	s.Stop()
}

func TestRunNow(t *testing.T) {
	s := New(zerolog.Nop())
	job := &countingJob{}

	require.NoError(t, s.RunNow(job))
	assert.Equal(t, int32(1), job.runs.Load())
}

type mockSaver struct {
	mock.Mock
}

func (m *mockSaver) Save(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func TestAutosaveJob(t *testing.T) {
	saver := &mockSaver{}
	saver.On("Save", mock.MatchedBy(func(ctx context.Context) bool {
		_, hasDeadline := ctx.Deadline()
		return hasDeadline
	})).Return(nil).Once()
	saver.On("Save", mock.Anything).Return(errors.New("disk full")).Once()

	job := NewAutosaveJob(saver, time.Second)
	assert.Equal(t, "autosave_state", job.Name())

	assert.NoError(t, job.Run())
	assert.EqualError(t, job.Run(), "disk full")
	saver.AssertExpectations(t)
}

type mockPruner struct {
	mock.Mock
}

func (m *mockPruner) PruneOlderThan(cutoff time.Time) (int64, error) {
	args := m.Called(cutoff)
	return args.Get(0).(int64), args.Error(1)
}

func TestRegimeHistoryCleanupJob(t *testing.T) {
	now := time.Date(2024, 5, 31, 0, 0, 0, 0, time.UTC)
	pruner := &mockPruner{}
	pruner.On("PruneOlderThan", now.AddDate(0, 0, -30)).Return(int64(4), nil).Once()

	job := NewRegimeHistoryCleanupJob(pruner, 30)
	job.now = func() time.Time { return now }

	require.NoError(t, job.Run())
	pruner.AssertExpectations(t)
}

func TestRegimeHistoryCleanupJob_Errors(t *testing.T) {
	pruner := &mockPruner{}
	pruner.On("PruneOlderThan", mock.Anything).Return(int64(0), errors.New("locked"))

	err := NewRegimeHistoryCleanupJob(pruner, 7).Run()

	assert.ErrorContains(t, err, "locked")
}

func TestRegimeHistoryCleanupJob_ZeroRetentionKeepsEverything(t *testing.T) {
	pruner := &mockPruner{}

	require.NoError(t, NewRegimeHistoryCleanupJob(pruner, 0).Run())
	pruner.AssertNotCalled(t, "PruneOlderThan", mock.Anything)
}
