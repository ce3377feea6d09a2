package jobs

import (
	"context"
	"fmt"

	"github.com/wonny/putscan/internal/brain"
	"github.com/wonny/putscan/internal/contracts"
	"github.com/wonny/putscan/internal/export"
	"github.com/wonny/putscan/internal/scanconfig"
	"github.com/wonny/putscan/pkg/logger"
	"github.com/wonny/putscan/pkg/metrics"
)

// FeedFactory opens a fresh market feed for one scan
type FeedFactory func() (contracts.MarketFeed, error)

// ScanJob runs the full put scan on the scan config's schedule
// ⭐ SSOT: 정기 스캔 스케줄은 이 Job에서만
type ScanJob struct {
	newFeed  FeedFactory
	config   *scanconfig.Config
	exporter *export.Exporter
	metrics  *metrics.Registry
	store    *brain.ResultStore
	logger   *logger.Logger
}

// NewScanJob creates a new scan job
func NewScanJob(newFeed FeedFactory, cfg *scanconfig.Config, exporter *export.Exporter, m *metrics.Registry, store *brain.ResultStore, log *logger.Logger) *ScanJob {
	return &ScanJob{
		newFeed:  newFeed,
		config:   cfg,
		exporter: exporter,
		metrics:  m,
		store:    store,
		logger:   log,
	}
}

// Name returns the job name
func (j *ScanJob) Name() string {
	return "put_scan:" + j.config.Meta.ScanID
}

// Schedule returns the cron schedule from the scan config
func (j *ScanJob) Schedule() string {
	return j.config.Schedule.Cron
}

// Run executes one scan and publishes its result
func (j *ScanJob) Run(ctx context.Context) error {
	j.logger.Info("Starting scheduled put scan")

	feed, err := j.newFeed()
	if err != nil {
		return fmt.Errorf("open feed: %w", err)
	}

	o := brain.NewOrchestrator(feed, j.config, brain.Options{
		Exporter: j.exporter,
		Metrics:  j.metrics,
	}, j.logger)

	result, err := o.Run(ctx, brain.RunConfig{})
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	j.store.Save(ctx, result)

	j.logger.WithFields(map[string]interface{}{
		"run_id":  result.RunID,
		"rows":    len(result.Rows),
		"skipped": len(result.Skipped),
		"export":  result.ExportPath,
		"top":     result.Summary.Top,
	}).Info("Scheduled put scan completed")

	return nil
}
