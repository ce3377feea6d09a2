package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/wonny/putscan/pkg/logger"
)

// Triggers recorded in JobResult
const (
	TriggerCron   = "cron"
	TriggerManual = "manual"
)

// Scheduler manages scheduled jobs.
// Jobs are not retried: a failed run is recorded and the next tick tries again.
// ⭐ SSOT: 스케줄 관리는 이 스케줄러에서만
type Scheduler struct {
	cron    *cron.Cron
	logger  *logger.Logger
	jobs    map[string]Job
	entries map[string]cron.EntryID
	history map[string]*JobHistory
	running map[string]bool
	mu      sync.RWMutex

	// ctx is handed to every job run; cancelled by Stop
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a new scheduler evaluating schedules in loc (nil = local time)
func New(log *logger.Logger, loc *time.Location) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		cron:    cron.New(cron.WithSeconds(), cron.WithLocation(loc)),
		logger:  log,
		jobs:    make(map[string]Job),
		entries: make(map[string]cron.EntryID),
		history: make(map[string]*JobHistory),
		running: make(map[string]bool),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// AddJob adds a job to the scheduler
func (s *Scheduler) AddJob(job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	jobName := job.Name()

	if _, exists := s.jobs[jobName]; exists {
		return fmt.Errorf("job %s already exists", jobName)
	}

	id, err := s.cron.AddFunc(job.Schedule(), func() {
		s.runJob(s.ctx, job, TriggerCron)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule job %s: %w", jobName, err)
	}

	s.jobs[jobName] = job
	s.entries[jobName] = id
	s.history[jobName] = &JobHistory{}

	s.logger.WithFields(map[string]interface{}{
		"job":      jobName,
		"schedule": job.Schedule(),
	}).Info("Job added to scheduler")

	return nil
}

// RemoveJob removes a job from the scheduler; its history is kept
func (s *Scheduler) RemoveJob(jobName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, exists := s.entries[jobName]
	if !exists {
		return fmt.Errorf("job %s not found", jobName)
	}

	s.cron.Remove(id)
	delete(s.jobs, jobName)
	delete(s.entries, jobName)
	s.logger.WithField("job", jobName).Info("Job removed from scheduler")

	return nil
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.logger.Info("Starting scheduler")
	s.cron.Start()
}

// Stop cancels running jobs and waits for them to return
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping scheduler")
	s.cancel()
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("Scheduler stopped")
}

// RunJob runs a specific job immediately (outside of schedule) and waits for it
func (s *Scheduler) RunJob(ctx context.Context, jobName string) (JobResult, error) {
	s.mu.RLock()
	job, exists := s.jobs[jobName]
	s.mu.RUnlock()

	if !exists {
		return JobResult{}, fmt.Errorf("job %s not found", jobName)
	}

	result, ran := s.runJob(ctx, job, TriggerManual)
	if !ran {
		return result, fmt.Errorf("job %s is already running", jobName)
	}
	if !result.Success {
		return result, fmt.Errorf("job %s failed: %s", jobName, result.Error)
	}
	return result, nil
}

// NextRun returns the next scheduled time of a job (zero before Start)
func (s *Scheduler) NextRun(jobName string) time.Time {
	s.mu.RLock()
	id, exists := s.entries[jobName]
	s.mu.RUnlock()

	if !exists {
		return time.Time{}
	}
	return s.cron.Entry(id).Next
}

// runJob executes a job once. A tick that arrives while the previous run of the
// same job is still going is skipped (ran=false).
func (s *Scheduler) runJob(ctx context.Context, job Job, trigger string) (JobResult, bool) {
	jobName := job.Name()

	s.mu.Lock()
	if s.running[jobName] {
		s.mu.Unlock()
		s.logger.WithField("job", jobName).Warn("Job still running, skipping this run")
		return JobResult{JobName: jobName, Trigger: trigger}, false
	}
	s.running[jobName] = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.running, jobName)
		s.mu.Unlock()
	}()

	startTime := time.Now()
	s.logger.WithFields(map[string]interface{}{
		"job":     jobName,
		"trigger": trigger,
	}).Info("Job started")

	err := job.Run(ctx)

	endTime := time.Now()
	duration := endTime.Sub(startTime)

	result := JobResult{
		JobName:   jobName,
		Trigger:   trigger,
		StartTime: startTime,
		EndTime:   endTime,
		Duration:  duration,
		Success:   err == nil,
	}
	if err != nil {
		result.Error = err.Error()
	}

	s.mu.Lock()
	if history, exists := s.history[jobName]; exists {
		history.AddResult(result)
	}
	s.mu.Unlock()

	if err == nil {
		s.logger.WithFields(map[string]interface{}{
			"job":      jobName,
			"duration": duration,
		}).Info("Job completed successfully")
	} else {
		s.logger.WithFields(map[string]interface{}{
			"job":      jobName,
			"duration": duration,
			"error":    err.Error(),
		}).Error("Job failed")
	}

	return result, true
}

// GetJobHistory returns a copy of the history for a specific job
func (s *Scheduler) GetJobHistory(jobName string) ([]JobResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, exists := s.history[jobName]
	if !exists {
		return nil, fmt.Errorf("job %s not found", jobName)
	}

	return history.GetLatestResults(len(history.Results)), nil
}

// GetAllJobs returns all registered job names, sorted
func (s *Scheduler) GetAllJobs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	jobs := make([]string, 0, len(s.jobs))
	for jobName := range s.jobs {
		jobs = append(jobs, jobName)
	}
	sort.Strings(jobs)

	return jobs
}

// GetJobStats returns statistics for all registered jobs
func (s *Scheduler) GetJobStats() map[string]JobStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := make(map[string]JobStats)

	for jobName, job := range s.jobs {
		history := s.history[jobName]
		failedResults := history.GetFailedResults()

		st := JobStats{
			JobName:      jobName,
			Schedule:     job.Schedule(),
			Running:      s.running[jobName],
			TotalRuns:    len(history.Results),
			SuccessCount: len(history.Results) - len(failedResults),
			FailureCount: len(failedResults),
			SuccessRate:  history.GetSuccessRate(),
		}

		if latest := history.GetLatestResults(1); len(latest) == 1 {
			last := latest[0]
			st.LastRun = &last.StartTime
			st.LastError = last.Error
		}
		for i := len(history.Results) - 1; i >= 0; i-- {
			r := history.Results[i]
			if r.Success && st.LastSuccess == nil {
				st.LastSuccess = &r.StartTime
			}
			if !r.Success && st.LastFailure == nil {
				st.LastFailure = &r.StartTime
			}
		}

		if next := s.cron.Entry(s.entries[jobName]).Next; !next.IsZero() {
			st.NextRun = &next
		}

		stats[jobName] = st
	}

	return stats
}

// JobStats represents statistics for a job
type JobStats struct {
	JobName      string     `json:"job_name"`
	Schedule     string     `json:"schedule"`
	Running      bool       `json:"running"`
	TotalRuns    int        `json:"total_runs"`
	SuccessCount int        `json:"success_count"`
	FailureCount int        `json:"failure_count"`
	SuccessRate  float64    `json:"success_rate"`
	LastRun      *time.Time `json:"last_run,omitempty"`
	LastSuccess  *time.Time `json:"last_success,omitempty"`
	LastFailure  *time.Time `json:"last_failure,omitempty"`
	LastError    string     `json:"last_error,omitempty"`
	NextRun      *time.Time `json:"next_run,omitempty"`
}
