package contracts

import (
	"math"
	"time"
)

// ExpirationLayout is the YYYYMMDD encoding used for expirations
const ExpirationLayout = "20060102"

// SmartRouting is the routing hint for every candidate contract
const SmartRouting = "SMART"

// Instrument is an underlying identified by symbol, routing hint and currency.
// ConID is set once the feed has qualified it.
// ⭐ SSOT: 종목 식별 정보
type Instrument struct {
	Symbol   string `json:"symbol"`
	Exchange string `json:"exchange"`
	Currency string `json:"currency"`
	ConID    int64  `json:"conid,omitempty"`
}

// Qualified reports whether the feed has assigned a canonical id
func (i Instrument) Qualified() bool {
	return i.ConID > 0
}

// ChainDescriptor is one exchange/trading-class view of listed options
type ChainDescriptor struct {
	Exchange     string    `json:"exchange"`
	TradingClass string    `json:"trading_class"`
	Multiplier   string    `json:"multiplier"`
	Expirations  []string  `json:"expirations"` // YYYYMMDD
	Strikes      []float64 `json:"strikes"`
}

// HasExpiration reports whether exp is listed on this chain
func (c ChainDescriptor) HasExpiration(exp string) bool {
	for _, e := range c.Expirations {
		if e == exp {
			return true
		}
	}
	return false
}

// Right is the option right
type Right string

const (
	RightPut  Right = "P"
	RightCall Right = "C"
)

// ContractCandidate is a put identified by (symbol, expiration, strike, right, trading class).
// ConID is filled by qualification.
type ContractCandidate struct {
	Symbol       string  `json:"symbol"`
	Expiration   string  `json:"expiration"` // YYYYMMDD
	Strike       float64 `json:"strike"`
	Right        Right   `json:"right"`
	Exchange     string  `json:"exchange"`
	TradingClass string  `json:"trading_class"`
	ConID        int64   `json:"conid,omitempty"`
}

// CandidateKey is the identity used for deduplication
type CandidateKey struct {
	Symbol       string
	Expiration   string
	Strike       float64
	Right        Right
	TradingClass string
}

// Key returns the candidate's identity
func (c ContractCandidate) Key() CandidateKey {
	return CandidateKey{
		Symbol:       c.Symbol,
		Expiration:   c.Expiration,
		Strike:       c.Strike,
		Right:        c.Right,
		TradingClass: c.TradingClass,
	}
}

// Quote is a point-in-time copy of a live ticker record.
// Missing fields are NaN; a Bid of -1 means "no bid".
type Quote struct {
	ConID     int64     `json:"conid"`
	Bid       float64   `json:"bid"`
	Ask       float64   `json:"ask"`
	Last      float64   `json:"last"`
	Close     float64   `json:"close"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewQuote returns a quote with every price field missing
func NewQuote(conID int64) Quote {
	nan := math.NaN()
	return Quote{ConID: conID, Bid: nan, Ask: nan, Last: nan, Close: nan}
}

// Present reports whether v carries a value (not the NaN sentinel)
func Present(v float64) bool {
	return !math.IsNaN(v)
}

// Positive reports whether v is a positive finite number
func Positive(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v > 0
}

// HasBid reports a bid that is neither missing nor the -1 sentinel
func (q Quote) HasBid() bool {
	return Present(q.Bid) && q.Bid != -1
}

// HasSignal is the live readiness test: some bid or some close
func (q Quote) HasSignal() bool {
	return q.HasBid() || Present(q.Close)
}

// HasData is the post-live classification: a usable positive price exists
func (q Quote) HasData() bool {
	return q.Bid > 0 || Positive(q.Last) || Positive(q.Close)
}

// PremiumSource records which field produced a premium
type PremiumSource string

const (
	SourceNone       PremiumSource = ""
	SourceBid        PremiumSource = "bid"
	SourceLast       PremiumSource = "last"
	SourceClose      PremiumSource = "close"
	SourceHistorical PremiumSource = "historical"
)

// PricedContract is a candidate plus everything observed about its price.
// HistoricalClose is NaN unless the fallback request produced a bar.
// Premium, Source and Live are set by the yield calculator; they stay zero
// for contracts it drops.
type PricedContract struct {
	Candidate       ContractCandidate `json:"candidate"`
	Quote           Quote             `json:"quote"`
	HistoricalClose float64           `json:"historical_close"`
	Premium         float64           `json:"premium"`
	Source          PremiumSource     `json:"source"`
	Live            bool              `json:"live"` // false when the premium came from history
}

// HasHistorical reports whether the fallback produced a close
func (p PricedContract) HasHistorical() bool {
	return Present(p.HistoricalClose)
}

// BarKind selects what a historical bar measures
type BarKind string

const (
	BarTrades   BarKind = "TRADES"
	BarMidpoint BarKind = "MIDPOINT"
)

// Bar is one OHLC bar
type Bar struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// ScanRow is one ranked output record.
// Values are unrounded; rendering rounds.
// ⭐ SSOT: 스캔 결과 한 행
type ScanRow struct {
	Symbol           string        `json:"symbol"`
	Price            float64       `json:"price"`
	Expiration       string        `json:"expiration"`
	DTE              int           `json:"dte"`
	Strike           float64       `json:"strike"`
	OTMPct           float64       `json:"otm_pct"`
	Premium          float64       `json:"premium"`
	ROIPct           float64       `json:"roi_pct"`
	AnnualizedROIPct float64       `json:"annualized_roi_pct"`
	TradingClass     string        `json:"trading_class"`
	Source           PremiumSource `json:"source"`
}

// ParseExpiration parses a YYYYMMDD expiration as midnight in loc
func ParseExpiration(exp string, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(ExpirationLayout, exp, loc)
}

// DaysBetween counts calendar days from one date to another, ignoring
// clock time and DST shifts
func DaysBetween(from, to time.Time) int {
	f := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	t := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
	return int(t.Sub(f).Hours() / 24)
}
