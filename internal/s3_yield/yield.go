package s3_yield

import (
	"time"

	"github.com/wonny/putscan/internal/contracts"
	"github.com/wonny/putscan/pkg/logger"
)

const (
	// ContractMultiplier is shares per contract (collateral = strike × 100)
	ContractMultiplier = 100

	daysPerYear = 365

	// minDTE clamps same-day and expired contracts
	minDTE = 1
)

// ResolvePremium picks one premium per contract: a positive bid, else last
// when present, else close when present; when that is not a positive number
// the historical close is tried. ok is false when nothing usable exists.
// ⭐ SSOT: 프리미엄 우선순위 (bid → last → close → 일봉)
func ResolvePremium(p contracts.PricedContract) (premium float64, source contracts.PremiumSource, ok bool) {
	q := p.Quote

	switch {
	case q.Bid > 0:
		premium, source = q.Bid, contracts.SourceBid
	case contracts.Present(q.Last):
		premium, source = q.Last, contracts.SourceLast
	case contracts.Present(q.Close):
		premium, source = q.Close, contracts.SourceClose
	}

	if contracts.Positive(premium) {
		return premium, source, true
	}

	if contracts.Positive(p.HistoricalClose) {
		return p.HistoricalClose, contracts.SourceHistorical, true
	}
	return 0, contracts.SourceNone, false
}

// DTE returns calendar days from today to the expiration, at least 1.
// Expired and same-day contracts get 1, which overstates their annualized yield.
func DTE(today, expiration time.Time) int {
	d := contracts.DaysBetween(today, expiration)
	if d < minDTE {
		return minDTE
	}
	return d
}

// ROIPct is premium over collateral, in percent
func ROIPct(premium, strike float64) float64 {
	return premium * ContractMultiplier * 100 / (strike * ContractMultiplier)
}

// AnnualizedROIPct scales ROI% to a 365-day basis
func AnnualizedROIPct(roiPct float64, dte int) float64 {
	return roiPct * daysPerYear / float64(dte)
}

// OTMPct is how far below spot the strike sits, in percent
func OTMPct(price, strike float64) float64 {
	return (1 - strike/price) * 100
}

// Calculator turns priced contracts into scan rows
type Calculator struct {
	today  time.Time
	logger *logger.Logger
}

// NewCalculator creates a Calculator anchored at today (scan timezone)
func NewCalculator(today time.Time, log *logger.Logger) *Calculator {
	return &Calculator{today: today, logger: log}
}

// Rows emits one ScanRow per contract with a usable premium and records the
// resolved premium, source and freshness on each element of priced.
// Unpriced contracts are dropped silently; that is the common case for
// illiquid strikes.
// ⭐ SSOT: S3 → S4 수익률 계산
func (c *Calculator) Rows(price float64, priced []contracts.PricedContract) []contracts.ScanRow {
	rows := make([]contracts.ScanRow, 0, len(priced))
	dropped := 0

	for i := range priced {
		p := &priced[i]
		cand := p.Candidate
		if !contracts.Positive(cand.Strike) {
			dropped++
			continue
		}

		premium, source, ok := ResolvePremium(*p)
		if !ok {
			dropped++
			continue
		}
		p.Premium = premium
		p.Source = source
		p.Live = source != contracts.SourceHistorical

		exp, err := contracts.ParseExpiration(cand.Expiration, c.today.Location())
		if err != nil {
			c.logger.WithError(err).WithField("expiration", cand.Expiration).Debug("Bad expiration, contract dropped")
			dropped++
			continue
		}

		dte := DTE(c.today, exp)
		roi := ROIPct(premium, cand.Strike)

		rows = append(rows, contracts.ScanRow{
			Symbol:           cand.Symbol,
			Price:            price,
			Expiration:       cand.Expiration,
			DTE:              dte,
			Strike:           cand.Strike,
			OTMPct:           OTMPct(price, cand.Strike),
			Premium:          premium,
			ROIPct:           roi,
			AnnualizedROIPct: AnnualizedROIPct(roi, dte),
			TradingClass:     cand.TradingClass,
			Source:           source,
		})
	}

	if dropped > 0 {
		c.logger.WithFields(map[string]interface{}{
			"stage":   contracts.StageYield.String(),
			"dropped": dropped,
			"rows":    len(rows),
		}).Debug("Unpriced contracts dropped")
	}

	return rows
}
