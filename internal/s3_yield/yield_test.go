package s3_yield

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/putscan/internal/contracts"
	"github.com/wonny/putscan/pkg/logger"
)

func priced(bid, last, close, hist float64) contracts.PricedContract {
	return contracts.PricedContract{
		Candidate: contracts.ContractCandidate{
			Symbol: "NVDA", Expiration: "20240131", Strike: 50,
			Right: contracts.RightPut, TradingClass: "NVDA",
		},
		Quote:           contracts.Quote{Bid: bid, Last: last, Close: close, Ask: math.NaN()},
		HistoricalClose: hist,
	}
}

func TestResolvePremium(t *testing.T) {
	nan := math.NaN()

	tests := []struct {
		name       string
		p          contracts.PricedContract
		want       float64
		wantSource contracts.PremiumSource
		wantOK     bool
	}{
		{"bid sentinel, last preferred over close", priced(-1, 2.50, 2.00, nan), 2.50, contracts.SourceLast, true},
		{"positive bid wins", priced(1.20, 2.50, 2.00, nan), 1.20, contracts.SourceBid, true},
		{"missing bid and last", priced(nan, nan, 2.00, nan), 2.00, contracts.SourceClose, true},
		{"zero bid uses close", priced(0, nan, 1.10, nan), 1.10, contracts.SourceClose, true},
		{"historical only", priced(nan, nan, nan, 0.75), 0.75, contracts.SourceHistorical, true},
		{"zero last falls to historical", priced(-1, 0, 3.0, 0.60), 0.60, contracts.SourceHistorical, true},
		{"nothing", priced(nan, nan, nan, nan), 0, contracts.SourceNone, false},
		{"non-positive everywhere", priced(-1, 0, 0, 0), 0, contracts.SourceNone, false},
		{"infinite last", priced(nan, math.Inf(1), nan, nan), 0, contracts.SourceNone, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, source, ok := ResolvePremium(tt.p)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantSource, source)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDTE(t *testing.T) {
	today := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		exp  time.Time
		want int
	}{
		{"thirty days", time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC), 30},
		{"tomorrow", time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), 1},
		{"same day clamps", today, 1},
		{"expired clamps", time.Date(2023, 12, 15, 0, 0, 0, 0, time.UTC), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DTE(today, tt.exp))
		})
	}
}

func TestYieldMath(t *testing.T) {
	roi := ROIPct(1.00, 50)
	assert.InDelta(t, 2.00, roi, 1e-9)
	assert.InDelta(t, 24.33, AnnualizedROIPct(roi, 30), 0.01)
	assert.InDelta(t, 10.0, OTMPct(100, 90), 1e-9)
}

func TestCalculator_Rows(t *testing.T) {
	nan := math.NaN()
	today := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	in := []contracts.PricedContract{
		priced(1.00, nan, nan, nan),
		priced(nan, nan, nan, nan), // dropped
		priced(-1, nan, nan, 0.5),
	}
	in[2].Candidate.Expiration = "20231229" // expired, DTE clamps to 1

	rows := NewCalculator(today, logger.Nop()).Rows(55, in)
	require.Len(t, rows, 2)

	r := rows[0]
	assert.Equal(t, "NVDA", r.Symbol)
	assert.Equal(t, 55.0, r.Price)
	assert.Equal(t, 30, r.DTE)
	assert.InDelta(t, 2.00, r.ROIPct, 1e-9)
	assert.InDelta(t, 24.33, r.AnnualizedROIPct, 0.01)
	assert.InDelta(t, 9.09, r.OTMPct, 0.01)
	assert.Equal(t, contracts.SourceBid, r.Source)

	assert.Equal(t, 1.00, in[0].Premium)
	assert.Equal(t, contracts.SourceBid, in[0].Source)
	assert.True(t, in[0].Live)

	assert.Zero(t, in[1].Premium)
	assert.Equal(t, contracts.SourceNone, in[1].Source)
	assert.False(t, in[1].Live)

	assert.Equal(t, 0.5, in[2].Premium)
	assert.Equal(t, contracts.SourceHistorical, in[2].Source)
	assert.False(t, in[2].Live, "historical premium is not live")

	assert.Equal(t, 1, rows[1].DTE)
	assert.Equal(t, contracts.SourceHistorical, rows[1].Source)
	assert.InDelta(t, 365.0, rows[1].AnnualizedROIPct, 1e-9)
}
