package s0_price

import (
	"context"
	"fmt"

	"github.com/wonny/putscan/internal/contracts"
	"github.com/wonny/putscan/internal/realtime"
	"github.com/wonny/putscan/internal/scanconfig"
	"github.com/wonny/putscan/pkg/logger"
)

// Source records which fallback step produced the price
type Source string

const (
	SourceLast  Source = "last"
	SourceClose Source = "close"
	SourceBar   Source = "daily_bar"
)

// Price is a resolved underlying price
type Price struct {
	Value  float64 `json:"value"`
	Source Source  `json:"source"`
}

// Feed is what price resolution needs from the data feed
type Feed interface {
	contracts.QuoteSource
	contracts.HistorySource
}

// Resolver determines one current price per underlying
type Resolver struct {
	feed   Feed
	timing scanconfig.Timing
	logger *logger.Logger
}

// NewResolver creates a new price resolver
func NewResolver(feed Feed, cfg *scanconfig.Config, log *logger.Logger) *Resolver {
	return &Resolver{
		feed:   feed,
		timing: cfg.Timing,
		logger: log,
	}
}

// Resolve returns the underlying's price: live last, then quote close, then
// the latest one-day TRADES bar. A failure is per-instrument, never fatal.
// ⭐ SSOT: S0 → S1 현재가 결정
func (r *Resolver) Resolve(ctx context.Context, inst contracts.Instrument) (Price, error) {
	log := r.logger.WithFields(map[string]interface{}{
		"symbol": inst.Symbol,
		"conid":  inst.ConID,
		"stage":  contracts.StagePrice.String(),
	})

	quote := contracts.NewQuote(inst.ConID)

	sub, err := r.feed.Subscribe(ctx, inst.ConID)
	if err != nil {
		// 구독 실패 시 일봉으로 바로 진행
		log.WithError(err).Warn("Live quote subscription failed")
	} else {
		defer sub.Cancel()

		outcome := realtime.Until(ctx, r.timing.PricePollInterval, r.timing.PricePollAttempts, func() bool {
			return contracts.Present(sub.Snapshot().Last)
		})
		if outcome == realtime.Cancelled {
			return Price{}, ctx.Err()
		}
		quote = sub.Snapshot()
		log.WithField("outcome", outcome.String()).Debug("Live price wait finished")
	}

	if contracts.Positive(quote.Last) {
		return Price{Value: quote.Last, Source: SourceLast}, nil
	}
	if contracts.Positive(quote.Close) {
		return Price{Value: quote.Close, Source: SourceClose}, nil
	}

	// 주말/휴일: 캐시된 종가도 없으면 최근 일봉
	bars, err := r.feed.History(ctx, inst.ConID, contracts.BarTrades, 1)
	if err != nil {
		if ctx.Err() != nil {
			return Price{}, ctx.Err()
		}
		return Price{}, fmt.Errorf("%w: daily bar: %v", contracts.ErrNoPrice, err)
	}
	if len(bars) > 0 {
		if c := bars[len(bars)-1].Close; contracts.Positive(c) {
			return Price{Value: c, Source: SourceBar}, nil
		}
	}

	return Price{}, contracts.ErrNoPrice
}
