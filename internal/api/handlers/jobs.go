package handlers

import (
	"context"
	"net/http"
	"sort"

	"github.com/gorilla/mux"

	"github.com/wonny/putscan/internal/scheduler"
	"github.com/wonny/putscan/pkg/logger"
)

// JobRunner is the scheduler surface exposed over HTTP
type JobRunner interface {
	GetJobStats() map[string]scheduler.JobStats
	GetJobHistory(jobName string) ([]scheduler.JobResult, error)
	RunJob(ctx context.Context, jobName string) (scheduler.JobResult, error)
}

// JobHandler handles scheduler endpoints
type JobHandler struct {
	scheduler JobRunner
	logger    *logger.Logger
}

// NewJobHandler creates a new job handler
func NewJobHandler(s JobRunner, log *logger.Logger) *JobHandler {
	return &JobHandler{
		scheduler: s,
		logger:    log,
	}
}

// List returns stats for every registered job, sorted by name
// GET /api/jobs
func (h *JobHandler) List(w http.ResponseWriter, r *http.Request) {
	stats := h.scheduler.GetJobStats()

	out := make([]scheduler.JobStats, 0, len(stats))
	for _, st := range stats {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].JobName < out[j].JobName })

	respondJSON(w, http.StatusOK, out)
}

// History returns the run history of one job
// GET /api/jobs/{name}/history
func (h *JobHandler) History(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	history, err := h.scheduler.GetJobHistory(name)
	if err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, history)
}

// Run triggers a job immediately and waits for it
// POST /api/jobs/{name}/run
func (h *JobHandler) Run(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	if _, ok := h.scheduler.GetJobStats()[name]; !ok {
		respondError(w, http.StatusNotFound, "job "+name+" not found")
		return
	}

	result, err := h.scheduler.RunJob(r.Context(), name)
	if err != nil {
		h.logger.WithError(err).WithField("job", name).Warn("Manual job run failed")
		respondJSON(w, http.StatusConflict, map[string]interface{}{
			"error":  err.Error(),
			"result": result,
		})
		return
	}

	respondJSON(w, http.StatusOK, result)
}
