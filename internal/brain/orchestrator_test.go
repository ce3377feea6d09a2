package brain

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/putscan/internal/contracts"
	"github.com/wonny/putscan/internal/export"
	"github.com/wonny/putscan/internal/feedtest"
	"github.com/wonny/putscan/internal/scanconfig"
	"github.com/wonny/putscan/pkg/logger"
	"github.com/wonny/putscan/pkg/metrics"
)

// 2024-01-02 10:00 in New York
var fixedNow = time.Date(2024, 1, 2, 15, 0, 0, 0, time.UTC)

func testConfig(symbols ...string) *scanconfig.Config {
	cfg := scanconfig.Default()
	cfg.Universe.Symbols = symbols
	cfg.Timing.PricePollInterval = time.Millisecond
	cfg.Timing.PricePollAttempts = 5
	cfg.Timing.QuotePollInterval = 2 * time.Millisecond
	cfg.Timing.QuoteTimeout = 50 * time.Millisecond
	cfg.Timing.HistoryTimeout = 100 * time.Millisecond
	return cfg
}

func quote(last, bid float64) contracts.Quote {
	q := contracts.NewQuote(0)
	q.Last = last
	q.Bid = bid
	return q
}

// nvdaFeed: NVDA @ 100, one monthly 31 days out, strikes 85 and 90 inside the 5-20% band
func nvdaFeed() *feedtest.Feed {
	feed := feedtest.New()
	feed.AddInstrument("NVDA", 1)
	feed.SetQuote(1, quote(100, -1))
	feed.Chains[1] = []contracts.ChainDescriptor{{
		Exchange:     "SMART",
		TradingClass: "NVDA",
		Multiplier:   "100",
		Expirations:  []string{"20240202"},
		Strikes:      []float64{75, 85, 90, 100},
	}}
	// qualification hands out 1001, 1002 in candidate order (85, 90)
	feed.SetQuote(1001, quote(-1, 1.0))
	feed.SetQuote(1002, quote(-1, 2.0))
	return feed
}

func newOrchestrator(feed contracts.MarketFeed, cfg *scanconfig.Config, dir string) *Orchestrator {
	opts := Options{
		Metrics: metrics.New(),
		Clock:   func() time.Time { return fixedNow },
	}
	if dir != "" {
		opts.Exporter = export.NewExporter(dir)
	}
	return NewOrchestrator(feed, cfg, opts, logger.Nop())
}

func TestRun_RanksAndExports(t *testing.T) {
	dir := t.TempDir()
	feed := nvdaFeed()
	o := newOrchestrator(feed, testConfig("NVDA"), dir)

	result, err := o.Run(context.Background(), RunConfig{RunID: "run_test"})
	require.NoError(t, err)

	assert.Equal(t, "run_test", result.RunID)
	assert.Equal(t, "2024-01-02", result.Today)
	assert.Equal(t, 10, result.StartedAt.Hour(), "start time is reported in the scan timezone")
	assert.NotEmpty(t, result.ConfigHash)
	require.Len(t, result.Rows, 2)

	// higher annualized first
	assert.Equal(t, 90.0, result.Rows[0].Strike)
	assert.Equal(t, 85.0, result.Rows[1].Strike)
	assert.Equal(t, 31, result.Rows[0].DTE)
	assert.InDelta(t, 2.0/90*100, result.Rows[0].ROIPct, 1e-9)
	assert.GreaterOrEqual(t, result.Rows[0].AnnualizedROIPct, result.Rows[1].AnnualizedROIPct)

	assert.Equal(t, 2, result.Summary.Count)
	assert.Empty(t, result.Skipped)
	assert.Len(t, result.Stages, len(contracts.InstrumentStages()))

	require.NotEmpty(t, result.ExportPath)
	assert.Equal(t, dir, filepath.Dir(result.ExportPath))
	assert.True(t, strings.HasPrefix(filepath.Base(result.ExportPath), "scan_results_20240102_100000"))
	_, err = os.Stat(result.ExportPath)
	assert.NoError(t, err)

	assert.True(t, feed.Connected)
	assert.True(t, feed.Closed)
}

func TestRun_InstrumentIsolation(t *testing.T) {
	feed := nvdaFeed()
	// TSLA never qualifies, AMD has no chains, MSFT has no usable price
	feed.AddInstrument("AMD", 2)
	feed.SetQuote(2, quote(150, -1))
	feed.ChainErr[2] = errors.New("chain request failed")
	feed.AddInstrument("MSFT", 3)

	o := newOrchestrator(feed, testConfig("TSLA", "NVDA", "AMD", "MSFT"), "")

	result, err := o.Run(context.Background(), RunConfig{})
	require.NoError(t, err)

	require.Len(t, result.Rows, 2)
	for _, row := range result.Rows {
		assert.Equal(t, "NVDA", row.Symbol)
	}
	assert.True(t, strings.HasPrefix(result.RunID, "run_"))
	assert.Empty(t, result.ExportPath, "no exporter configured")

	require.Len(t, result.Skipped, 3)
	assert.Equal(t, Skip{Symbol: "TSLA", Stage: contracts.StageQualify, Reason: result.Skipped[0].Reason}, result.Skipped[0])
	assert.Equal(t, contracts.StageChain, result.Skipped[1].Stage)
	assert.Equal(t, "AMD", result.Skipped[1].Symbol)
	assert.Equal(t, contracts.StagePrice, result.Skipped[2].Stage)
	assert.Equal(t, "MSFT", result.Skipped[2].Symbol)
}

func TestRun_NothingFoundSkipsExport(t *testing.T) {
	dir := t.TempDir()
	feed := feedtest.New()
	o := newOrchestrator(feed, testConfig("TSLA", "AMD"), dir)

	result, err := o.Run(context.Background(), RunConfig{})
	require.NoError(t, err)

	assert.True(t, result.Empty())
	assert.Empty(t, result.ExportPath)
	assert.Len(t, result.Skipped, 2)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "no file written for an empty scan")
}

func TestRun_UnpricedContractsYieldNoRows(t *testing.T) {
	feed := nvdaFeed()
	delete(feed.Quotes, 1001)
	delete(feed.Quotes, 1002)

	o := newOrchestrator(feed, testConfig("NVDA"), "")

	result, err := o.Run(context.Background(), RunConfig{})
	require.NoError(t, err)
	assert.True(t, result.Empty())
	assert.Empty(t, result.Skipped, "instrument ran to completion")
	assert.Len(t, feed.HistoryRequests, 2)
}

func TestRun_SessionFailureIsFatal(t *testing.T) {
	feed := nvdaFeed()
	feed.ConnectErr = errors.New("connection refused")

	o := newOrchestrator(feed, testConfig("NVDA"), "")

	_, err := o.Run(context.Background(), RunConfig{})
	require.Error(t, err)
	assert.True(t, contracts.IsFatal(err))

	var stageErr *contracts.StageError
	require.True(t, errors.As(err, &stageErr))
	assert.Equal(t, contracts.StageSession, stageErr.Stage)
	assert.False(t, feed.Closed)
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	feed := nvdaFeed()
	o := newOrchestrator(feed, testConfig("NVDA"), "")

	_, err := o.Run(ctx, RunConfig{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, feed.Closed)
}

func TestRun_BadTimezone(t *testing.T) {
	cfg := testConfig("NVDA")
	cfg.Meta.Timezone = "Mars/Olympus"

	feed := nvdaFeed()
	_, err := newOrchestrator(feed, cfg, "").Run(context.Background(), RunConfig{})
	assert.ErrorContains(t, err, "scan timezone")
	assert.False(t, feed.Connected)
}

func TestRun_ExplicitSymbolsOverrideUniverse(t *testing.T) {
	feed := nvdaFeed()
	o := newOrchestrator(feed, testConfig("TSLA"), "")

	result, err := o.Run(context.Background(), RunConfig{Symbols: []string{"NVDA"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"NVDA"}, result.Symbols)
	assert.Len(t, result.Rows, 2)
}

func TestGenerateRunID(t *testing.T) {
	a, b := GenerateRunID(), GenerateRunID()
	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasPrefix(a, "run_"))
}
