package gateway

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/putscan/internal/contracts"
	"github.com/wonny/putscan/internal/gateway/gatewaytest"
	"github.com/wonny/putscan/internal/realtime/feed"
	"github.com/wonny/putscan/pkg/logger"
	"github.com/wonny/putscan/pkg/redis"
)

const spyConID = 756733

var spy = contracts.Instrument{Symbol: "SPY", Exchange: "SMART", Currency: "USD"}

func newFixture(t *testing.T) *gatewaytest.Server {
	t.Helper()

	srv := gatewaytest.New()
	t.Cleanup(srv.Close)

	srv.AddUnderlying(gatewaytest.Underlying{ConID: spyConID, Symbol: "SPY", Description: "ARCA", Months: []string{"JAN24", "FEB24"}})
	srv.AddOption(gatewaytest.Option{ConID: 1001, Underlying: spyConID, Expiration: "20240119", Strike: 440, TradingClass: "SPY"})
	srv.AddOption(gatewaytest.Option{ConID: 1002, Underlying: spyConID, Expiration: "20240119", Strike: 450, TradingClass: "SPY"})
	srv.AddOption(gatewaytest.Option{ConID: 1003, Underlying: spyConID, Expiration: "20240119", Strike: 460, TradingClass: "SPY"})
	srv.AddOption(gatewaytest.Option{ConID: 1004, Underlying: spyConID, Expiration: "20240131", Strike: 450, TradingClass: "SPYQ"})
	srv.AddOption(gatewaytest.Option{ConID: 1005, Underlying: spyConID, Expiration: "20240216", Strike: 440, TradingClass: "SPY"})
	srv.AddOption(gatewaytest.Option{ConID: 1006, Underlying: spyConID, Expiration: "20240216", Strike: 450, TradingClass: "SPY"})
	return srv
}

func newClient(t *testing.T, srv *gatewaytest.Server) *Client {
	t.Helper()
	c := New(srv.Config(), nil, nil, logger.Nop())
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestMonthCode(t *testing.T) {
	tests := []struct {
		exp     string
		want    string
		wantErr bool
	}{
		{"20240119", "JAN24", false},
		{"20251219", "DEC25", false},
		{"2024-01-19", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.exp, func(t *testing.T) {
			got, err := MonthCode(tt.exp)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClient_Connect(t *testing.T) {
	srv := newFixture(t)
	c := newClient(t, srv)

	require.NoError(t, c.Connect(context.Background()))
	assert.Equal(t, feed.ModeStream, c.FeedMode())
	assert.Eventually(t, func() bool {
		sessions := srv.Sessions()
		return len(sessions) == 1 && sessions[0] == "f00dcafe"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestClient_ConnectFailures(t *testing.T) {
	t.Run("not authenticated", func(t *testing.T) {
		srv := newFixture(t)
		srv.Authenticated = false

		err := newClient(t, srv).Connect(context.Background())
		assert.ErrorIs(t, err, contracts.ErrSessionFailed)
		assert.True(t, contracts.IsFatal(err))
	})

	t.Run("competing session", func(t *testing.T) {
		srv := newFixture(t)
		srv.Competing = true

		err := newClient(t, srv).Connect(context.Background())
		assert.ErrorIs(t, err, contracts.ErrSessionFailed)
	})

	t.Run("gateway down", func(t *testing.T) {
		srv := newFixture(t)
		cfg := srv.Config()
		srv.Close()

		c := New(cfg, nil, nil, logger.Nop())
		err := c.Connect(context.Background())
		assert.ErrorIs(t, err, contracts.ErrSessionFailed)
	})
}

func TestClient_Tickle(t *testing.T) {
	srv := newFixture(t)
	c := newClient(t, srv)

	session, err := c.Tickle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "f00dcafe", session)

	srv.Authenticated = false
	_, err = c.Tickle(context.Background())
	assert.Error(t, err)
}

func TestClient_QualifyInstrument(t *testing.T) {
	srv := newFixture(t)
	c := newClient(t, srv)

	got, err := c.QualifyInstrument(context.Background(), spy)
	require.NoError(t, err)
	assert.Equal(t, int64(spyConID), got.ConID)
	assert.True(t, got.Qualified())

	_, err = c.QualifyInstrument(context.Background(), contracts.Instrument{Symbol: "NOPE", Exchange: "SMART", Currency: "USD"})
	assert.ErrorIs(t, err, contracts.ErrNotQualified)

	// a routing hint other than SMART must match the primary listing
	_, err = c.QualifyInstrument(context.Background(), contracts.Instrument{Symbol: "SPY", Exchange: "NASDAQ", Currency: "USD"})
	assert.ErrorIs(t, err, contracts.ErrNotQualified)
}

func TestClient_ChainsRefetchedEveryRun(t *testing.T) {
	srv := newFixture(t)
	srv.AddUnderlying(gatewaytest.Underlying{ConID: spyConID, Symbol: "SPY", Description: "ARCA", Months: []string{"JAN24"}})

	mr := miniredis.RunT(t)
	rc := redis.NewFromRedis(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = rc.Close() })

	expirations := func() []string {
		c := New(srv.Config(), rc, nil, logger.Nop())
		defer c.Close()

		inst, err := c.QualifyInstrument(context.Background(), spy)
		require.NoError(t, err)
		chains, err := c.ChainParams(context.Background(), inst)
		require.NoError(t, err)

		var out []string
		for _, ch := range chains {
			if ch.TradingClass == "SPY" {
				out = append(out, ch.Expirations...)
			}
		}
		return out
	}

	assert.Equal(t, []string{"20240119"}, expirations())

	// FEB24 is listed between two scans sharing one Redis
	srv.AddUnderlying(gatewaytest.Underlying{ConID: spyConID, Symbol: "SPY", Description: "ARCA", Months: []string{"JAN24", "FEB24"}})

	assert.Equal(t, []string{"20240119", "20240216"}, expirations())
	assert.Equal(t, 2, srv.Requests("/iserver/secdef/search"))
}

func TestClient_ChainParams(t *testing.T) {
	srv := newFixture(t)
	c := newClient(t, srv)

	inst, err := c.QualifyInstrument(context.Background(), spy)
	require.NoError(t, err)

	chains, err := c.ChainParams(context.Background(), inst)
	require.NoError(t, err)

	assert.Equal(t, []contracts.ChainDescriptor{
		{
			Exchange:     "SMART",
			TradingClass: "SPY",
			Multiplier:   "100",
			Expirations:  []string{"20240119", "20240216"},
			Strikes:      []float64{440, 450, 460},
		},
		{
			Exchange:     "SMART",
			TradingClass: "SPYQ",
			Multiplier:   "100",
			Expirations:  []string{"20240131"},
			Strikes:      []float64{440, 450, 460},
		},
	}, chains)
	assert.Equal(t, 2, srv.Requests("/iserver/secdef/strikes"))
	assert.Equal(t, 2, srv.Requests("/iserver/secdef/info"))
}

func TestClient_QualifyContracts(t *testing.T) {
	srv := newFixture(t)
	c := newClient(t, srv)

	inst, err := c.QualifyInstrument(context.Background(), spy)
	require.NoError(t, err)

	cand := func(exp string, k float64, tc string) contracts.ContractCandidate {
		return contracts.ContractCandidate{
			Symbol: "SPY", Expiration: exp, Strike: k,
			Right: contracts.RightPut, Exchange: "SMART", TradingClass: tc,
		}
	}

	qualified, errs := c.QualifyContracts(context.Background(), inst, []contracts.ContractCandidate{
		cand("20240119", 440, "SPY"),
		cand("20240119", 450, "SPY"),
		cand("20240131", 450, "SPYQ"),
		cand("20240131", 440, "SPYQ"),
	})

	require.Len(t, qualified, 3)
	assert.Equal(t, int64(1001), qualified[0].ConID)
	assert.Equal(t, int64(1002), qualified[1].ConID)
	assert.Equal(t, int64(1004), qualified[2].ConID)

	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], contracts.ErrNotQualified)

	// (JAN24, 440) and (JAN24, 450), each fetched once
	assert.Equal(t, 2, srv.Requests("/iserver/secdef/info"))
}

func TestClient_StreamQuotes(t *testing.T) {
	srv := newFixture(t)
	srv.SetQuote(1002, map[string]interface{}{"84": "1.20", "86": "1.30", "31": "1.25"})
	c := newClient(t, srv)

	ctx := context.Background()
	require.NoError(t, c.Connect(ctx))

	sub, err := c.Subscribe(ctx, 1002)
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return sub.Snapshot().HasBid() }, 2*time.Second, 10*time.Millisecond)
	q := sub.Snapshot()
	assert.Equal(t, 1.20, q.Bid)
	assert.Equal(t, 1.25, q.Last)
	assert.True(t, srv.Streamed(1002))

	sub.Cancel()
	assert.Eventually(t, func() bool { return !srv.Streamed(1002) }, 2*time.Second, 10*time.Millisecond)
}

func TestClient_SnapshotFallback(t *testing.T) {
	srv := newFixture(t)
	srv.DisableStream = true
	srv.SetQuote(1005, map[string]interface{}{"31": "C2.15"})
	c := newClient(t, srv)

	ctx := context.Background()
	require.NoError(t, c.Connect(ctx))
	assert.Equal(t, feed.ModeSnapshot, c.FeedMode())

	sub, err := c.Subscribe(ctx, 1005)
	require.NoError(t, err)
	defer sub.Cancel()

	assert.Eventually(t, func() bool { return sub.Snapshot().HasSignal() }, 3*time.Second, 20*time.Millisecond)
	assert.Equal(t, 2.15, sub.Snapshot().Close, "C-prefixed last is a close")
}

func TestClient_Snapshot(t *testing.T) {
	srv := newFixture(t)
	srv.SetQuote(1001, map[string]interface{}{"84": 0.95, "7296": "1.10"})
	c := newClient(t, srv)

	ticks, err := c.Snapshot(context.Background(), []int64{1001, 1003})
	require.NoError(t, err)

	require.Len(t, ticks, 1, "conids without fields are skipped")
	assert.Equal(t, int64(1001), ticks[0].ConID)
}

func TestClient_History(t *testing.T) {
	srv := newFixture(t)
	srv.SetBars(spyConID, gatewaytest.Bar{Open: 470, High: 475, Low: 468, Close: 472.5, Time: time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)})
	srv.SetBars(1002, gatewaytest.Bar{Close: 1.05, Time: time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)})
	c := newClient(t, srv)

	bars, err := c.History(context.Background(), spyConID, contracts.BarTrades, 1)
	require.NoError(t, err)
	require.Len(t, bars, 1)
	assert.Equal(t, 472.5, bars[0].Close)
	assert.Equal(t, 1, srv.Requests("/iserver/marketdata/history"))

	bars, err = c.History(context.Background(), 1002, contracts.BarMidpoint, 1)
	require.NoError(t, err)
	require.Len(t, bars, 1)
	assert.Equal(t, 1.05, bars[0].Close)
	assert.Equal(t, 1, srv.Requests("/hmds/history"))
}

func TestClient_HistoryBreaker(t *testing.T) {
	srv := newFixture(t)
	srv.HistoryStatus = http.StatusInternalServerError
	c := newClient(t, srv)

	for i := 0; i < 5; i++ {
		_, err := c.History(context.Background(), 1002, contracts.BarMidpoint, 1)
		require.Error(t, err)
	}

	_, err := c.History(context.Background(), 1002, contracts.BarMidpoint, 1)
	assert.True(t, errors.Is(err, gobreaker.ErrOpenState))
	assert.Equal(t, 5, srv.Requests("/hmds/history"), "open breaker skips the gateway")
}

func TestClient_HistoryNoDataDoesNotTrip(t *testing.T) {
	srv := newFixture(t)
	srv.HistoryStatus = http.StatusNotFound
	c := newClient(t, srv)

	for i := 0; i < 8; i++ {
		_, err := c.History(context.Background(), 1002, contracts.BarTrades, 1)
		require.Error(t, err)
		assert.False(t, errors.Is(err, gobreaker.ErrOpenState))
	}
	assert.Equal(t, 8, srv.Requests("/iserver/marketdata/history"))
}
