package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/wonny/putscan/internal/brain"
	"github.com/wonny/putscan/internal/export"
	"github.com/wonny/putscan/pkg/logger"
)

// LatestSource provides the most recent scan result
type LatestSource interface {
	Latest(ctx context.Context) (*brain.RunResult, bool)
}

// ScanHandler serves scan results
// ⭐ SSOT: 스캔 결과 API 핸들러는 여기서만
type ScanHandler struct {
	store  LatestSource
	logger *logger.Logger
}

// NewScanHandler creates a new scan handler
func NewScanHandler(store LatestSource, log *logger.Logger) *ScanHandler {
	return &ScanHandler{
		store:  store,
		logger: log,
	}
}

// GetLatest returns the latest scan result
// GET /api/scans/latest?limit=N
func (h *ScanHandler) GetLatest(w http.ResponseWriter, r *http.Request) {
	result, ok := h.store.Latest(r.Context())
	if !ok {
		respondError(w, http.StatusNotFound, "No scan has completed yet")
		return
	}

	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			respondError(w, http.StatusBadRequest, "Invalid 'limit' (expected a non-negative integer)")
			return
		}
		if limit < len(result.Rows) {
			trimmed := *result
			trimmed.Rows = result.Rows[:limit]
			result = &trimmed
		}
	}

	respondJSON(w, http.StatusOK, result)
}

// GetLatestCSV returns the latest rows in the export format
// GET /api/scans/latest.csv
func (h *ScanHandler) GetLatestCSV(w http.ResponseWriter, r *http.Request) {
	result, ok := h.store.Latest(r.Context())
	if !ok {
		respondError(w, http.StatusNotFound, "No scan has completed yet")
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.FileName(result.StartedAt)+`"`)
	if err := export.WriteCSV(w, result.Rows); err != nil {
		h.logger.WithError(err).Error("Failed to write CSV")
	}
}
