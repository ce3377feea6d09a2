package selection

import (
	"sort"
	"strconv"

	"gonum.org/v1/gonum/stat"

	"github.com/wonny/putscan/internal/contracts"
	"github.com/wonny/putscan/pkg/logger"
)

// Ranker implements S4: ordering of every row the scan produced
// ⭐ SSOT: S4 랭킹 로직은 여기서만
type Ranker struct {
	logger *logger.Logger
}

// Summary describes the annualized ROI distribution of one scan
type Summary struct {
	Count     int     `json:"count"`
	Symbols   int     `json:"symbols"`
	MeanAnn   float64 `json:"mean_annualized_roi_pct"`
	MedianAnn float64 `json:"median_annualized_roi_pct"`
	MaxAnn    float64 `json:"max_annualized_roi_pct"`
	Top       string  `json:"top,omitempty"` // SYMBOL EXP STRIKE
}

// NewRanker creates a new ranker
func NewRanker(logger *logger.Logger) *Ranker {
	return &Ranker{logger: logger}
}

// Rank sorts rows by annualized ROI%, highest first. The sort is stable, so
// equal yields keep scan order (configuration order, then S1 order).
// Sorting uses unrounded values; rounding is a rendering concern.
func (r *Ranker) Rank(rows []contracts.ScanRow) []contracts.ScanRow {
	ranked := make([]contracts.ScanRow, len(rows))
	copy(ranked, rows)

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].AnnualizedROIPct > ranked[j].AnnualizedROIPct
	})

	if len(ranked) > 0 {
		r.logger.WithFields(map[string]interface{}{
			"stage":      contracts.StageRank.String(),
			"total_rows": len(ranked),
			"top_symbol": ranked[0].Symbol,
			"top_ann":    ranked[0].AnnualizedROIPct,
		}).Info("Ranking completed")
	}

	return ranked
}

// Summarize computes distribution stats over ranked rows
func Summarize(ranked []contracts.ScanRow) Summary {
	if len(ranked) == 0 {
		return Summary{}
	}

	values := make([]float64, len(ranked))
	symbols := make(map[string]bool)
	for i, row := range ranked {
		values[i] = row.AnnualizedROIPct
		symbols[row.Symbol] = true
	}
	sort.Float64s(values)

	top := ranked[0]
	return Summary{
		Count:     len(ranked),
		Symbols:   len(symbols),
		MeanAnn:   stat.Mean(values, nil),
		MedianAnn: stat.Quantile(0.5, stat.Empirical, values, nil),
		MaxAnn:    values[len(values)-1],
		Top:       top.Symbol + " " + top.Expiration + " " + strconv.FormatFloat(top.Strike, 'f', -1, 64),
	}
}
