package selection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/putscan/internal/contracts"
	"github.com/wonny/putscan/pkg/logger"
)

func row(symbol string, strike, ann float64) contracts.ScanRow {
	return contracts.ScanRow{Symbol: symbol, Expiration: "20240216", Strike: strike, AnnualizedROIPct: ann}
}

func TestRanker_Rank(t *testing.T) {
	rows := []contracts.ScanRow{
		row("NVDA", 100, 12.5),
		row("AAPL", 180, 30.1),
		row("TSLA", 200, 12.5),
		row("AMD", 150, 45.004),
		row("MSFT", 390, 45.001),
	}

	ranked := NewRanker(logger.Nop()).Rank(rows)
	require.Len(t, ranked, len(rows))

	var got []string
	for _, r := range ranked {
		got = append(got, r.Symbol)
	}
	// unrounded sort: 45.004 before 45.001; ties keep input order
	assert.Equal(t, []string{"AMD", "MSFT", "AAPL", "NVDA", "TSLA"}, got)

	assert.Equal(t, "NVDA", rows[0].Symbol, "input untouched")
}

func TestRanker_Empty(t *testing.T) {
	assert.Empty(t, NewRanker(logger.Nop()).Rank(nil))
}

func TestSummarize(t *testing.T) {
	ranked := []contracts.ScanRow{
		row("AMD", 150, 40),
		row("AMD", 145, 30),
		row("NVDA", 100, 20),
		row("AAPL", 170, 10),
	}

	s := Summarize(ranked)
	assert.Equal(t, 4, s.Count)
	assert.Equal(t, 3, s.Symbols)
	assert.InDelta(t, 25.0, s.MeanAnn, 1e-9)
	assert.InDelta(t, 20.0, s.MedianAnn, 1e-9)
	assert.InDelta(t, 40.0, s.MaxAnn, 1e-9)
	assert.Equal(t, "AMD 20240216 150", s.Top)

	assert.Equal(t, Summary{}, Summarize(nil))
}
