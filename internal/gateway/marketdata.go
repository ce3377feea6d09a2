package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/wonny/putscan/internal/contracts"
	"github.com/wonny/putscan/internal/realtime"
	"github.com/wonny/putscan/internal/realtime/feed"
)

// Snapshot implements feed.SnapshotFetcher over the REST snapshot endpoint.
// The first request for a conid only primes the gateway; values arrive on
// later polls.
func (c *Client) Snapshot(ctx context.Context, conIDs []int64) ([]realtime.Tick, error) {
	ids := make([]string, len(conIDs))
	for i, id := range conIDs {
		ids[i] = strconv.FormatInt(id, 10)
	}
	query := url.Values{
		"conids": {strings.Join(ids, ",")},
		"fields": {strings.Join(feed.QuoteFieldCodes, ",")},
	}

	var raw []map[string]interface{}
	if err := c.get(ctx, "snapshot", pathSnapshot, query, &raw); err != nil {
		return nil, err
	}

	now := time.Now()
	ticks := make([]realtime.Tick, 0, len(raw))
	for _, item := range raw {
		conID, ok := feed.ParseConID(item["conid"])
		if !ok {
			continue
		}
		values := feed.ParseFields(item)
		if len(values) == 0 {
			continue
		}
		ticks = append(ticks, realtime.Tick{
			ConID:     conID,
			Values:    values,
			Timestamp: now,
			Source:    realtime.SourceSnapshot,
		})
	}
	return ticks, nil
}

// History returns daily bars over the last days. TRADES bars come from the
// market data history endpoint, MIDPOINT bars from the HMDS endpoint.
// Calls go through the history circuit breaker.
func (c *Client) History(ctx context.Context, conID int64, kind contracts.BarKind, days int) ([]contracts.Bar, error) {
	if days < 1 {
		days = 1
	}
	query := url.Values{
		"conid":      {strconv.FormatInt(conID, 10)},
		"period":     {strconv.Itoa(days) + "d"},
		"bar":        {"1d"},
		"outsideRth": {"false"},
	}

	path := pathHistory
	if kind == contracts.BarMidpoint {
		path = pathHMDS
		query.Set("source", "Midpoint")
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		var resp historyResponse
		if err := c.get(ctx, "history", path, query, &resp); err != nil {
			return nil, err
		}
		return resp, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			c.metrics.RecordGatewayRequest("history_breaker", err)
		}
		return nil, fmt.Errorf("history %d: %w", conID, err)
	}

	resp := result.(historyResponse)
	bars := make([]contracts.Bar, 0, len(resp.Data))
	for _, b := range resp.Data {
		bars = append(bars, contracts.Bar{
			Time:   time.UnixMilli(b.Time),
			Open:   b.Open,
			High:   b.High,
			Low:    b.Low,
			Close:  b.Close,
			Volume: b.Volume,
		})
	}
	return bars, nil
}

var _ feed.SnapshotFetcher = (*Client)(nil)
