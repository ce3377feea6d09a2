package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/putscan/pkg/logger"
)

type fakeJob struct {
	name     string
	schedule string
	err      error
	block    chan struct{}
	runs     int32
}

func (j *fakeJob) Name() string     { return j.name }
func (j *fakeJob) Schedule() string { return j.schedule }

func (j *fakeJob) Run(ctx context.Context) error {
	atomic.AddInt32(&j.runs, 1)
	if j.block != nil {
		select {
		case <-j.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return j.err
}

func newJob(name string) *fakeJob {
	return &fakeJob{name: name, schedule: "0 45 9 * * MON-FRI"}
}

func TestAddJob(t *testing.T) {
	s := New(logger.Nop(), time.UTC)

	require.NoError(t, s.AddJob(newJob("scan")))
	assert.Error(t, s.AddJob(newJob("scan")), "duplicate name")

	bad := newJob("bad")
	bad.schedule = "not a cron"
	assert.Error(t, s.AddJob(bad))

	assert.Equal(t, []string{"scan"}, s.GetAllJobs())
}

func TestRunJob_RecordsHistoryWithoutRetry(t *testing.T) {
	s := New(logger.Nop(), time.UTC)

	ok := newJob("ok")
	failing := newJob("failing")
	failing.err = errors.New("gateway down")
	require.NoError(t, s.AddJob(ok))
	require.NoError(t, s.AddJob(failing))

	result, err := s.RunJob(context.Background(), "ok")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, TriggerManual, result.Trigger)

	_, err = s.RunJob(context.Background(), "failing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gateway down")
	assert.Equal(t, int32(1), atomic.LoadInt32(&failing.runs), "no retries")

	history, err := s.GetJobHistory("failing")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.False(t, history[0].Success)
	assert.Equal(t, "gateway down", history[0].Error)

	stats := s.GetJobStats()
	assert.Equal(t, 1, stats["ok"].TotalRuns)
	assert.Equal(t, 1.0, stats["ok"].SuccessRate)
	assert.Equal(t, 1, stats["failing"].FailureCount)
	assert.NotNil(t, stats["failing"].LastFailure)
	assert.Nil(t, stats["failing"].LastSuccess)
	assert.Equal(t, "gateway down", stats["failing"].LastError)

	_, err = s.RunJob(context.Background(), "missing")
	assert.Error(t, err)
}

func TestRunJob_SkipsOverlappingRun(t *testing.T) {
	s := New(logger.Nop(), time.UTC)
	job := newJob("slow")
	job.block = make(chan struct{})
	require.NoError(t, s.AddJob(job))

	done := make(chan error, 1)
	go func() {
		_, err := s.RunJob(context.Background(), "slow")
		done <- err
	}()

	require.Eventually(t, func() bool {
		return s.GetJobStats()["slow"].Running
	}, time.Second, 5*time.Millisecond)

	_, err := s.RunJob(context.Background(), "slow")
	assert.ErrorContains(t, err, "already running")

	close(job.block)
	assert.NoError(t, <-done)
	assert.Equal(t, int32(1), atomic.LoadInt32(&job.runs))
}

func TestRemoveJob(t *testing.T) {
	s := New(logger.Nop(), time.UTC)
	require.NoError(t, s.AddJob(newJob("scan")))

	require.NoError(t, s.RemoveJob("scan"))
	assert.Error(t, s.RemoveJob("scan"))
	assert.Empty(t, s.GetAllJobs())
	assert.True(t, s.NextRun("scan").IsZero())
}

func TestStartComputesNextRun(t *testing.T) {
	s := New(logger.Nop(), time.UTC)
	require.NoError(t, s.AddJob(newJob("scan")))

	s.Start()
	defer s.Stop()

	require.Eventually(t, func() bool {
		return !s.NextRun("scan").IsZero()
	}, time.Second, 5*time.Millisecond)

	next := s.NextRun("scan").In(time.UTC)
	assert.Equal(t, 9, next.Hour())
	assert.Equal(t, 45, next.Minute())
	assert.NotEqual(t, time.Saturday, next.Weekday())
	assert.NotEqual(t, time.Sunday, next.Weekday())
}

func TestJobHistoryBounded(t *testing.T) {
	h := &JobHistory{}
	for i := 0; i < maxHistory+10; i++ {
		h.AddResult(JobResult{Success: i%2 == 0})
	}

	assert.Len(t, h.Results, maxHistory)
	assert.Len(t, h.GetLatestResults(5), 5)
	assert.Len(t, h.GetFailedResults(), maxHistory/2)
	assert.InDelta(t, 0.5, h.GetSuccessRate(), 1e-9)
	assert.Empty(t, (&JobHistory{}).GetLatestResults(3))
}
