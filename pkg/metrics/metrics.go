package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Stage results used as metric labels
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultSkipped = "skipped"
	ResultTimeout = "timeout"
)

// Registry holds the scanner's Prometheus collectors.
// All methods are safe on a nil *Registry (metrics disabled).
// ⭐ SSOT: 메트릭 정의는 여기서만
type Registry struct {
	reg *prometheus.Registry

	StageDuration   *prometheus.HistogramVec
	StageErrors     *prometheus.CounterVec
	GatewayRequests *prometheus.CounterVec
	QuoteOutcomes   *prometheus.CounterVec
	ActiveScans     prometheus.Gauge
	TotalScans      prometheus.Counter
	LastScanRows    prometheus.Gauge
	LastScanTime    prometheus.Gauge
}

// New creates a registry with every scanner metric registered
func New() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),

		StageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "putscan_stage_duration_seconds",
				Help:    "Duration of each scan stage per symbol in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15, 30},
			},
			[]string{"stage", "result"},
		),

		StageErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "putscan_stage_errors_total",
				Help: "Symbols skipped, by the stage that failed",
			},
			[]string{"stage"},
		),

		GatewayRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "putscan_gateway_requests_total",
				Help: "Requests sent to the IBKR gateway by endpoint and outcome",
			},
			[]string{"endpoint", "outcome"},
		),

		QuoteOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "putscan_quote_waits_total",
				Help: "Live quote readiness waits by outcome",
			},
			[]string{"outcome"},
		),

		ActiveScans: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "putscan_active_scans",
			Help: "Number of scans currently running",
		}),

		TotalScans: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "putscan_scans_total",
			Help: "Total number of scans started",
		}),

		LastScanRows: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "putscan_last_scan_rows",
			Help: "Rows produced by the most recent scan",
		}),

		LastScanTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "putscan_last_scan_timestamp_seconds",
			Help: "Unix time the most recent scan finished",
		}),
	}

	r.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.StageDuration,
		r.StageErrors,
		r.GatewayRequests,
		r.QuoteOutcomes,
		r.ActiveScans,
		r.TotalScans,
		r.LastScanRows,
		r.LastScanTime,
	)

	return r
}

// Gatherer exposes the underlying registry (tests, custom exporters)
func (r *Registry) Gatherer() prometheus.Gatherer {
	if r == nil {
		return prometheus.NewRegistry()
	}
	return r.reg
}

// Handler serves the registry in Prometheus text format
func (r *Registry) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// StageTimer tracks execution time of one stage for one symbol
type StageTimer struct {
	r     *Registry
	stage string
	start time.Time
}

// StartStage begins timing a stage
func (r *Registry) StartStage(stage string) *StageTimer {
	return &StageTimer{r: r, stage: stage, start: time.Now()}
}

// Stop records the stage duration under result
func (t *StageTimer) Stop(result string) {
	if t == nil || t.r == nil {
		return
	}
	t.r.StageDuration.WithLabelValues(t.stage, result).Observe(time.Since(t.start).Seconds())
	if result == ResultError {
		t.r.StageErrors.WithLabelValues(t.stage).Inc()
	}
}

// RecordGatewayRequest counts one gateway call
func (r *Registry) RecordGatewayRequest(endpoint string, err error) {
	if r == nil {
		return
	}
	outcome := ResultSuccess
	if err != nil {
		outcome = ResultError
	}
	r.GatewayRequests.WithLabelValues(endpoint, outcome).Inc()
}

// RecordQuoteWait counts a readiness wait outcome (ready / timeout)
func (r *Registry) RecordQuoteWait(ready bool) {
	if r == nil {
		return
	}
	outcome := "ready"
	if !ready {
		outcome = ResultTimeout
	}
	r.QuoteOutcomes.WithLabelValues(outcome).Inc()
}

// ScanStarted marks a scan as running
func (r *Registry) ScanStarted() {
	if r == nil {
		return
	}
	r.ActiveScans.Inc()
	r.TotalScans.Inc()
}

// ScanFinished marks a scan as done and records its output size
func (r *Registry) ScanFinished(rows int, at time.Time) {
	if r == nil {
		return
	}
	r.ActiveScans.Dec()
	r.LastScanRows.Set(float64(rows))
	r.LastScanTime.Set(float64(at.Unix()))
}
