package s2_quotes

import (
	"context"
	"errors"
	"math"

	"github.com/wonny/putscan/internal/contracts"
	"github.com/wonny/putscan/internal/realtime"
	"github.com/wonny/putscan/internal/scanconfig"
	"github.com/wonny/putscan/pkg/logger"
	"github.com/wonny/putscan/pkg/metrics"
)

// Feed is what quote acquisition needs from the data feed
type Feed interface {
	contracts.QuoteSource
	contracts.HistorySource
}

// Acquirer prices a batch of qualified contracts in two phases:
// a bounded live-quote wait, then a concurrent daily-bar fallback for the
// contracts the live phase left without data.
type Acquirer struct {
	feed    Feed
	timing  scanconfig.Timing
	metrics *metrics.Registry
	logger  *logger.Logger
}

// Stats summarises one acquisition
type Stats struct {
	Contracts      int              `json:"contracts"`
	LiveOutcome    realtime.Outcome `json:"live_outcome"`
	WithLiveData   int              `json:"with_live_data"`
	HistoryAsked   int              `json:"history_asked"`
	HistoryFilled  int              `json:"history_filled"`
	HistoryFailed  int              `json:"history_failed"`
	HistoryMissing int              `json:"history_missing"` // not back before the bound
}

// NewAcquirer creates a new Acquirer; m may be nil
func NewAcquirer(feed Feed, cfg *scanconfig.Config, m *metrics.Registry, log *logger.Logger) *Acquirer {
	return &Acquirer{
		feed:    feed,
		timing:  cfg.Timing,
		metrics: m,
		logger:  log,
	}
}

type historyResult struct {
	index int
	close float64
	err   error
}

// Acquire returns one PricedContract per candidate, in input order.
// Contracts without any price are kept; premium resolution drops them.
// ⭐ SSOT: S2 → S3 옵션 시세
func (a *Acquirer) Acquire(ctx context.Context, candidates []contracts.ContractCandidate) ([]contracts.PricedContract, Stats, error) {
	stats := Stats{Contracts: len(candidates)}
	priced := make([]contracts.PricedContract, len(candidates))
	for i, c := range candidates {
		priced[i] = contracts.PricedContract{
			Candidate:       c,
			Quote:           contracts.NewQuote(c.ConID),
			HistoricalClose: math.NaN(),
		}
	}
	if len(candidates) == 0 {
		return priced, stats, nil
	}

	outcome, err := a.live(ctx, priced)
	stats.LiveOutcome = outcome
	if err != nil {
		return nil, stats, err
	}

	var missing []int
	for i := range priced {
		if priced[i].Quote.HasData() {
			stats.WithLiveData++
		} else {
			missing = append(missing, i)
		}
	}

	stats.HistoryAsked = len(missing)
	if len(missing) > 0 {
		a.historical(ctx, priced, missing, &stats)
		if ctx.Err() != nil {
			return nil, stats, ctx.Err()
		}
	}

	a.logger.WithFields(map[string]interface{}{
		"stage":          contracts.StageQuotes.String(),
		"contracts":      stats.Contracts,
		"live_outcome":   stats.LiveOutcome.String(),
		"with_live_data": stats.WithLiveData,
		"history_asked":  stats.HistoryAsked,
		"history_filled": stats.HistoryFilled,
	}).Debug("Quotes acquired")

	return priced, stats, nil
}

// live subscribes every contract and waits until each shows some signal
// (bid or close) or the quote timeout elapses, then copies the records.
func (a *Acquirer) live(ctx context.Context, priced []contracts.PricedContract) (realtime.Outcome, error) {
	subs := make([]contracts.QuoteSubscription, len(priced))
	defer func() {
		for _, sub := range subs {
			if sub != nil {
				sub.Cancel()
			}
		}
	}()

	for i := range priced {
		sub, err := a.feed.Subscribe(ctx, priced[i].Candidate.ConID)
		if err != nil {
			a.logger.WithError(err).WithField("conid", priced[i].Candidate.ConID).Debug("Quote subscription failed")
			continue
		}
		subs[i] = sub
	}

	outcome := realtime.UntilTimeout(ctx, a.timing.QuotePollInterval, a.timing.QuoteTimeout, func() bool {
		for _, sub := range subs {
			if sub != nil && !sub.Snapshot().HasSignal() {
				return false
			}
		}
		return true
	})
	if outcome == realtime.Cancelled {
		return outcome, ctx.Err()
	}
	a.metrics.RecordQuoteWait(outcome == realtime.Ready)

	for i, sub := range subs {
		if sub != nil {
			priced[i].Quote = sub.Snapshot()
		}
	}
	return outcome, nil
}

// historical requests one MIDPOINT daily bar per missing contract, all at
// once. The history timeout is a hard bound: results arriving later are
// dropped, and one failure never affects the others.
func (a *Acquirer) historical(ctx context.Context, priced []contracts.PricedContract, missing []int, stats *Stats) {
	hctx, cancel := context.WithTimeout(ctx, a.timing.HistoryTimeout)
	defer cancel()

	// buffered so late senders never block
	results := make(chan historyResult, len(missing))
	for _, idx := range missing {
		go func(idx int, conID int64) {
			res := historyResult{index: idx, close: math.NaN()}
			bars, err := a.feed.History(hctx, conID, contracts.BarMidpoint, 1)
			if err != nil {
				res.err = err
			} else if len(bars) > 0 {
				res.close = bars[len(bars)-1].Close
			}
			results <- res
		}(idx, priced[idx].Candidate.ConID)
	}

	for received := 0; received < len(missing); received++ {
		select {
		case res := <-results:
			if res.err != nil {
				// cut off by the bound, not a failure of the request itself
				if errors.Is(res.err, context.DeadlineExceeded) && ctx.Err() == nil {
					stats.HistoryMissing++
					continue
				}
				stats.HistoryFailed++
				a.logger.WithError(res.err).WithField("conid", priced[res.index].Candidate.ConID).Debug("Historical fallback failed")
				continue
			}
			if contracts.Present(res.close) {
				priced[res.index].HistoricalClose = res.close
				stats.HistoryFilled++
			}
		case <-hctx.Done():
			if ctx.Err() != nil {
				return
			}
			stats.HistoryMissing += len(missing) - received
			return
		}
	}
}
