package brain

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"

	"github.com/wonny/putscan/internal/contracts"
	"github.com/wonny/putscan/internal/export"
	"github.com/wonny/putscan/internal/s0_price"
	"github.com/wonny/putscan/internal/s1_chain"
	"github.com/wonny/putscan/internal/s2_quotes"
	"github.com/wonny/putscan/internal/s3_yield"
	"github.com/wonny/putscan/internal/scanconfig"
	"github.com/wonny/putscan/internal/selection"
	"github.com/wonny/putscan/pkg/logger"
	"github.com/wonny/putscan/pkg/metrics"
)

// Orchestrator drives the per-instrument pipeline across the universe
// ⭐ SSOT: 파이프라인 조율은 여기서만
type Orchestrator struct {
	feed   contracts.MarketFeed
	config *scanconfig.Config

	// Stage components
	resolver *s0_price.Resolver
	chains   *s1_chain.Builder
	acquirer *s2_quotes.Acquirer
	ranker   *selection.Ranker
	exporter *export.Exporter

	metrics  *metrics.Registry
	progress io.Writer
	clock    func() time.Time
	logger   *logger.Logger
}

// Options are the optional collaborators of an Orchestrator
type Options struct {
	Exporter *export.Exporter  // nil: no CSV
	Metrics  *metrics.Registry // nil: no metrics
	Progress io.Writer         // nil: no progress bar
	Clock    func() time.Time  // nil: time.Now
}

// RunConfig holds configuration for one scan
type RunConfig struct {
	RunID   string   // empty: generated
	Symbols []string // empty: scan config universe
}

// Skip records an instrument that produced no rows because a stage failed
type Skip struct {
	Symbol string          `json:"symbol"`
	Stage  contracts.Stage `json:"stage"`
	Reason string          `json:"reason"`
}

// RunResult holds the results of a complete scan
type RunResult struct {
	RunID      string                  `json:"run_id"`
	ScanID     string                  `json:"scan_id"`
	ConfigHash string                  `json:"config_hash"`
	StartedAt  time.Time               `json:"started_at"`
	Today      string                  `json:"today"`
	Symbols    []string                `json:"symbols"`
	Rows       []contracts.ScanRow     `json:"rows"` // ranked
	Summary    selection.Summary       `json:"summary"`
	Stages     []contracts.StageResult `json:"stages"`
	Skipped    []Skip                  `json:"skipped"`
	ExportPath string                  `json:"export_path,omitempty"`
	Duration   time.Duration           `json:"duration"`
}

// Empty reports whether the scan found no opportunities
func (r *RunResult) Empty() bool {
	return len(r.Rows) == 0
}

// NewOrchestrator creates a new orchestrator
func NewOrchestrator(feed contracts.MarketFeed, cfg *scanconfig.Config, opts Options, log *logger.Logger) *Orchestrator {
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}

	return &Orchestrator{
		feed:     feed,
		config:   cfg,
		resolver: s0_price.NewResolver(feed, cfg, log),
		chains:   s1_chain.NewBuilder(feed, cfg, log),
		acquirer: s2_quotes.NewAcquirer(feed, cfg, opts.Metrics, log),
		ranker:   selection.NewRanker(log),
		exporter: opts.Exporter,
		metrics:  opts.Metrics,
		progress: opts.Progress,
		clock:    clock,
		logger:   log,
	}
}

// Run connects the feed, scans every instrument in order and ranks the rows.
// Per-instrument failures are skips; only a failed session (or ctx) is an error.
// QUALIFY → S0 → S1 → S2 → S3 per instrument, then S4 → EXPORT once
func (o *Orchestrator) Run(ctx context.Context, rc RunConfig) (*RunResult, error) {
	start := o.clock()

	today, err := o.config.Today(start)
	if err != nil {
		return nil, fmt.Errorf("scan timezone: %w", err)
	}
	startedAt := start.In(today.Location())

	hash, err := scanconfig.Hash(o.config)
	if err != nil {
		return nil, fmt.Errorf("config hash: %w", err)
	}

	symbols := rc.Symbols
	if len(symbols) == 0 {
		symbols = o.config.NormalizedSymbols()
	}

	result := &RunResult{
		RunID:      rc.RunID,
		ScanID:     o.config.Meta.ScanID,
		ConfigHash: hash,
		StartedAt:  startedAt,
		Today:      today.Format("2006-01-02"),
		Symbols:    symbols,
		Stages:     make([]contracts.StageResult, 0),
		Skipped:    make([]Skip, 0),
	}
	if result.RunID == "" {
		result.RunID = GenerateRunID()
	}

	log := o.logger.WithField("run_id", result.RunID)
	log.WithFields(map[string]interface{}{
		"scan_id":     result.ScanID,
		"config_hash": result.ConfigHash,
		"today":       result.Today,
		"symbols":     symbols,
	}).Info("Starting scan")

	o.metrics.ScanStarted()
	defer func() {
		o.metrics.ScanFinished(len(result.Rows), o.clock())
	}()

	// SESSION: 실패 시 전체 스캔 중단
	timer := o.metrics.StartStage(contracts.StageSession.Label())
	if err := o.feed.Connect(ctx); err != nil {
		timer.Stop(metrics.ResultError)
		return result, contracts.NewStageError(contracts.StageSession, "", err)
	}
	timer.Stop(metrics.ResultSuccess)
	defer func() {
		if err := o.feed.Close(); err != nil {
			log.WithError(err).Warn("Failed to close data feed")
		}
	}()

	bar := o.newProgressBar(len(symbols))

	var rows []contracts.ScanRow
	for _, symbol := range symbols {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if bar != nil {
			bar.Describe(symbol)
		}

		symbolRows, err := o.scanInstrument(ctx, result, symbol, today)
		if err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}

			skip := Skip{Symbol: symbol, Reason: err.Error()}
			var stageErr *contracts.StageError
			if errors.As(err, &stageErr) {
				skip.Stage = stageErr.Stage
				skip.Reason = stageErr.Err.Error()
			}
			result.Skipped = append(result.Skipped, skip)

			log.WithFields(map[string]interface{}{
				"symbol": symbol,
				"stage":  skip.Stage.String(),
				"error":  skip.Reason,
			}).Warn("Instrument skipped")
		} else {
			rows = append(rows, symbolRows...)
		}

		if bar != nil {
			_ = bar.Add(1)
		}
	}
	if bar != nil {
		_ = bar.Finish()
	}

	// S4: 전체 결과 정렬
	timer = o.metrics.StartStage(contracts.StageRank.Label())
	result.Rows = o.ranker.Rank(rows)
	result.Summary = selection.Summarize(result.Rows)
	timer.Stop(metrics.ResultSuccess)

	if result.Empty() {
		log.Info("No opportunities found")
	} else if o.exporter != nil {
		timer = o.metrics.StartStage(contracts.StageExport.Label())
		path, err := o.exporter.Export(result.Rows, startedAt)
		if err != nil {
			timer.Stop(metrics.ResultError)
			result.Duration = o.clock().Sub(start)
			return result, contracts.NewStageError(contracts.StageExport, "", err)
		}
		timer.Stop(metrics.ResultSuccess)
		result.ExportPath = path
	}

	result.Duration = o.clock().Sub(start)
	log.WithFields(map[string]interface{}{
		"rows":     len(result.Rows),
		"skipped":  len(result.Skipped),
		"export":   result.ExportPath,
		"duration": result.Duration.Seconds(),
		"mean_ann": result.Summary.MeanAnn,
		"max_ann":  result.Summary.MaxAnn,
	}).Info("Scan completed")

	return result, nil
}

// scanInstrument runs QUALIFY → S0 → S1 → S2 → S3 for one symbol
func (o *Orchestrator) scanInstrument(ctx context.Context, result *RunResult, symbol string, today time.Time) ([]contracts.ScanRow, error) {
	var (
		inst      contracts.Instrument
		price     s0_price.Price
		plan      *s1_chain.Plan
		qualified []contracts.ContractCandidate
		priced    []contracts.PricedContract
		rows      []contracts.ScanRow
	)

	steps := []struct {
		stage contracts.Stage
		run   func() (int, error)
	}{
		{contracts.StageQualify, func() (int, error) {
			var err error
			inst, err = o.feed.QualifyInstrument(ctx, contracts.Instrument{
				Symbol:   symbol,
				Exchange: o.config.Universe.Exchange,
				Currency: o.config.Universe.Currency,
			})
			return 1, err
		}},
		{contracts.StagePrice, func() (int, error) {
			var err error
			price, err = o.resolver.Resolve(ctx, inst)
			return 1, err
		}},
		{contracts.StageChain, func() (int, error) {
			var err error
			plan, err = o.chains.Build(ctx, inst, price.Value, today)
			if err != nil {
				return 0, err
			}
			return len(plan.Candidates), nil
		}},
		{contracts.StageQuotes, func() (int, error) {
			var errs []error
			qualified, errs = o.feed.QualifyContracts(ctx, inst, plan.Candidates)
			for _, err := range errs {
				o.logger.WithError(err).WithField("symbol", symbol).Debug("Contract not qualified")
			}
			if len(qualified) == 0 {
				return 0, fmt.Errorf("%w: none of %d qualified", contracts.ErrNoCandidates, len(plan.Candidates))
			}

			var err error
			priced, _, err = o.acquirer.Acquire(ctx, qualified)
			return len(priced), err
		}},
		{contracts.StageYield, func() (int, error) {
			rows = s3_yield.NewCalculator(today, o.logger).Rows(price.Value, priced)
			return len(rows), nil
		}},
	}

	for _, step := range steps {
		if err := o.runStage(ctx, result, step.stage, symbol, step.run); err != nil {
			return nil, err
		}
	}

	o.logger.WithFields(map[string]interface{}{
		"symbol":       symbol,
		"price":        price.Value,
		"price_source": string(price.Source),
		"expirations":  plan.Expirations,
		"contracts":    len(qualified),
		"rows":         len(rows),
	}).Info("Instrument scanned")

	return rows, nil
}

// runStage times one stage, records it and tags failures with stage/symbol
func (o *Orchestrator) runStage(ctx context.Context, result *RunResult, stage contracts.Stage, symbol string, run func() (int, error)) error {
	started := time.Now()
	timer := o.metrics.StartStage(stage.Label())

	count, err := run()

	sr := contracts.StageResult{
		Stage:       stage,
		Symbol:      symbol,
		Success:     err == nil,
		OutputCount: count,
		Duration:    time.Since(started).Milliseconds(),
	}

	if err != nil {
		sr.OutputCount = 0
		sr.Error = err.Error()
		result.Stages = append(result.Stages, sr)

		if ctx.Err() != nil {
			timer.Stop(metrics.ResultSkipped)
			return ctx.Err()
		}
		timer.Stop(metrics.ResultError)
		return contracts.NewStageError(stage, symbol, err)
	}

	timer.Stop(metrics.ResultSuccess)
	result.Stages = append(result.Stages, sr)
	return nil
}

func (o *Orchestrator) newProgressBar(n int) *progressbar.ProgressBar {
	if o.progress == nil || n == 0 {
		return nil
	}
	return progressbar.NewOptions(
		n,
		progressbar.OptionSetWriter(o.progress),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(20),
		progressbar.OptionShowDescriptionAtLineEnd(),
	)
}

// GenerateRunID generates a unique run ID
func GenerateRunID() string {
	return "run_" + uuid.NewString()
}
