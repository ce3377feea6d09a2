package contracts

import (
	"context"
)

// Session is the data-feed connection lifecycle
// ⭐ SSOT: 세션 연결 인터페이스 (실패 = 치명적)
type Session interface {
	Connect(ctx context.Context) error
	Close() error
}

// Qualifier resolves descriptors to canonical identities
// ⭐ SSOT: 종목/계약 식별 인터페이스
type Qualifier interface {
	QualifyInstrument(ctx context.Context, inst Instrument) (Instrument, error)
	// QualifyContracts returns the contracts that resolved plus one error per failed item
	QualifyContracts(ctx context.Context, underlying Instrument, candidates []ContractCandidate) ([]ContractCandidate, []error)
}

// ChainSource lists option chains for a qualified underlying
type ChainSource interface {
	ChainParams(ctx context.Context, underlying Instrument) ([]ChainDescriptor, error)
}

// QuoteSubscription is a handle on one live ticker record.
// Snapshot copies the current state; Cancel releases the subscription.
type QuoteSubscription interface {
	Snapshot() Quote
	Cancel()
}

// QuoteSource opens live quote subscriptions
type QuoteSource interface {
	Subscribe(ctx context.Context, conID int64) (QuoteSubscription, error)
}

// HistorySource returns daily bars for the lookback window
type HistorySource interface {
	History(ctx context.Context, conID int64, kind BarKind, days int) ([]Bar, error)
}

// MarketFeed is everything the scan needs from the data feed
// ⭐ SSOT: 데이터 피드 협력자 (IBKR gateway 또는 테스트 fake)
type MarketFeed interface {
	Session
	Qualifier
	ChainSource
	QuoteSource
	HistorySource
}
