// Package feedtest provides an in-memory contracts.MarketFeed for tests.
package feedtest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/wonny/putscan/internal/contracts"
)

// Feed is a scriptable in-memory market feed.
// Zero-value maps are fine; configure only what a test needs.
type Feed struct {
	mu sync.Mutex

	ConnectErr error

	// Instruments maps symbol -> qualified instrument; missing = not qualified
	Instruments map[string]contracts.Instrument

	Chains   map[int64][]contracts.ChainDescriptor
	ChainErr map[int64]error

	// RejectContracts fails qualification for these candidate keys
	RejectContracts map[contracts.CandidateKey]bool

	// Quotes become visible QuoteDelay after Subscribe
	Quotes     map[int64]contracts.Quote
	QuoteDelay time.Duration
	// SubscribeErr fails Subscribe for these conids
	SubscribeErr map[int64]error

	Bars         map[int64][]contracts.Bar
	HistoryErr   map[int64]error
	HistoryDelay time.Duration

	nextConID int64
	conIDs    map[contracts.CandidateKey]int64

	// Recorded calls
	Connected       bool
	Closed          bool
	QualifiedBatch  [][]contracts.ContractCandidate
	Subscribed      []int64
	Cancelled       int
	HistoryRequests []HistoryRequest
}

// HistoryRequest records one History call
type HistoryRequest struct {
	ConID int64
	Kind  contracts.BarKind
	Days  int
}

// New returns an empty feed
func New() *Feed {
	return &Feed{
		Instruments:     make(map[string]contracts.Instrument),
		Chains:          make(map[int64][]contracts.ChainDescriptor),
		ChainErr:        make(map[int64]error),
		RejectContracts: make(map[contracts.CandidateKey]bool),
		Quotes:          make(map[int64]contracts.Quote),
		SubscribeErr:    make(map[int64]error),
		Bars:            make(map[int64][]contracts.Bar),
		HistoryErr:      make(map[int64]error),
		nextConID:       1000,
		conIDs:          make(map[contracts.CandidateKey]int64),
	}
}

// AddInstrument registers a qualifiable underlying
func (f *Feed) AddInstrument(symbol string, conID int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Instruments[symbol] = contracts.Instrument{Symbol: symbol, Exchange: "SMART", Currency: "USD", ConID: conID}
}

// SetQuote sets the live record for conID
func (f *Feed) SetQuote(conID int64, q contracts.Quote) {
	f.mu.Lock()
	defer f.mu.Unlock()
	q.ConID = conID
	f.Quotes[conID] = q
}

// SetClose sets a one-bar history for conID
func (f *Feed) SetClose(conID int64, close float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Bars[conID] = []contracts.Bar{{Time: time.Now(), Open: close, High: close, Low: close, Close: close}}
}

// ConIDFor returns the id assigned to a qualified candidate
func (f *Feed) ConIDFor(key contracts.CandidateKey) (int64, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.conIDs[key]
	return id, ok
}

// Connect implements contracts.Session
func (f *Feed) Connect(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ConnectErr != nil {
		return fmt.Errorf("%w: %v", contracts.ErrSessionFailed, f.ConnectErr)
	}
	f.Connected = true
	return nil
}

// Close implements contracts.Session
func (f *Feed) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}

// QualifyInstrument implements contracts.Qualifier
func (f *Feed) QualifyInstrument(ctx context.Context, inst contracts.Instrument) (contracts.Instrument, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	q, ok := f.Instruments[inst.Symbol]
	if !ok {
		return inst, fmt.Errorf("%s: %w", inst.Symbol, contracts.ErrNotQualified)
	}
	return q, nil
}

// QualifyContracts implements contracts.Qualifier
func (f *Feed) QualifyContracts(ctx context.Context, underlying contracts.Instrument, candidates []contracts.ContractCandidate) ([]contracts.ContractCandidate, []error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.QualifiedBatch = append(f.QualifiedBatch, append([]contracts.ContractCandidate(nil), candidates...))

	var out []contracts.ContractCandidate
	var errs []error
	for _, c := range candidates {
		key := c.Key()
		if f.RejectContracts[key] {
			errs = append(errs, fmt.Errorf("%s %s %.2f: %w", c.Symbol, c.Expiration, c.Strike, contracts.ErrNotQualified))
			continue
		}
		id, ok := f.conIDs[key]
		if !ok {
			f.nextConID++
			id = f.nextConID
			f.conIDs[key] = id
		}
		c.ConID = id
		out = append(out, c)
	}
	return out, errs
}

// ChainParams implements contracts.ChainSource
func (f *Feed) ChainParams(ctx context.Context, underlying contracts.Instrument) ([]contracts.ChainDescriptor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.ChainErr[underlying.ConID]; err != nil {
		return nil, err
	}
	return f.Chains[underlying.ConID], nil
}

// Subscribe implements contracts.QuoteSource
func (f *Feed) Subscribe(ctx context.Context, conID int64) (contracts.QuoteSubscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.SubscribeErr[conID]; err != nil {
		return nil, err
	}
	f.Subscribed = append(f.Subscribed, conID)
	return &subscription{feed: f, conID: conID, at: time.Now()}, nil
}

// History implements contracts.HistorySource
func (f *Feed) History(ctx context.Context, conID int64, kind contracts.BarKind, days int) ([]contracts.Bar, error) {
	f.mu.Lock()
	f.HistoryRequests = append(f.HistoryRequests, HistoryRequest{ConID: conID, Kind: kind, Days: days})
	delay := f.HistoryDelay
	err := f.HistoryErr[conID]
	bars := f.Bars[conID]
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	if err != nil {
		return nil, err
	}
	return bars, nil
}

type subscription struct {
	feed  *Feed
	conID int64
	at    time.Time
}

func (s *subscription) Snapshot() contracts.Quote {
	s.feed.mu.Lock()
	defer s.feed.mu.Unlock()

	q, ok := s.feed.Quotes[s.conID]
	if !ok || time.Since(s.at) < s.feed.QuoteDelay {
		return contracts.NewQuote(s.conID)
	}
	return q
}

func (s *subscription) Cancel() {
	s.feed.mu.Lock()
	defer s.feed.mu.Unlock()
	s.feed.Cancelled++
}

var _ contracts.MarketFeed = (*Feed)(nil)
