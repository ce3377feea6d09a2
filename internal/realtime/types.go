package realtime

import "time"

// Field is one live quote field carried by a tick
type Field int

const (
	FieldBid Field = iota
	FieldAsk
	FieldLast
	FieldClose
)

func (f Field) String() string {
	switch f {
	case FieldBid:
		return "bid"
	case FieldAsk:
		return "ask"
	case FieldLast:
		return "last"
	case FieldClose:
		return "close"
	default:
		return "unknown"
	}
}

// Tick is a partial quote update for one contract
// ⭐ SSOT: 실시간 시세 업데이트 구조
type Tick struct {
	ConID     int64             `json:"conid"`
	Values    map[Field]float64 `json:"values"`
	Timestamp time.Time         `json:"timestamp"`
	Source    QuoteSource       `json:"source"`
}

// QuoteSource represents where a tick came from
type QuoteSource string

const (
	SourceStream   QuoteSource = "IBKR_WS"
	SourceSnapshot QuoteSource = "IBKR_REST"
)

// Priority returns priority for source (higher = better)
func (s QuoteSource) Priority() int {
	switch s {
	case SourceStream:
		return 2
	case SourceSnapshot:
		return 1
	default:
		return 0
	}
}
