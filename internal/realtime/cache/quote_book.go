package cache

import (
	"sort"
	"sync"

	"github.com/wonny/putscan/internal/contracts"
	"github.com/wonny/putscan/internal/realtime"
	"github.com/wonny/putscan/pkg/logger"
)

// QuoteBook holds the live ticker records for subscribed contracts.
// Feeds write ticks; stages read copies through Get.
// ⭐ SSOT: 실시간 시세 보관은 이 구조체에서만
type QuoteBook struct {
	mu      sync.RWMutex
	entries map[int64]*entry
	logger  *logger.Logger
}

type entry struct {
	quote  contracts.Quote
	source realtime.QuoteSource
	refs   int
}

// NewQuoteBook creates an empty quote book
func NewQuoteBook(log *logger.Logger) *QuoteBook {
	return &QuoteBook{
		entries: make(map[int64]*entry),
		logger:  log,
	}
}

// Track starts (or shares) a record for conID.
// Returns true when this is the first reference.
func (b *QuoteBook) Track(conID int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if e, ok := b.entries[conID]; ok {
		e.refs++
		return false
	}

	b.entries[conID] = &entry{quote: contracts.NewQuote(conID), refs: 1}
	return true
}

// Release drops one reference. Returns true when the record was removed.
func (b *QuoteBook) Release(conID int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	e, ok := b.entries[conID]
	if !ok {
		return false
	}

	e.refs--
	if e.refs > 0 {
		return false
	}

	delete(b.entries, conID)
	return true
}

// Apply merges a tick into its record.
// Ticks for untracked contracts, older ticks, and same-time ticks from a
// lower priority source are rejected.
func (b *QuoteBook) Apply(tick realtime.Tick) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	e, ok := b.entries[tick.ConID]
	if !ok {
		return false
	}

	if !e.quote.UpdatedAt.IsZero() {
		if tick.Timestamp.Before(e.quote.UpdatedAt) {
			b.logger.WithFields(map[string]interface{}{
				"conid":      tick.ConID,
				"new_time":   tick.Timestamp,
				"old_time":   e.quote.UpdatedAt,
				"new_source": tick.Source,
				"old_source": e.source,
			}).Debug("Rejected older quote data")
			return false
		}
		if tick.Timestamp.Equal(e.quote.UpdatedAt) && tick.Source.Priority() < e.source.Priority() {
			return false
		}
	}

	for field, value := range tick.Values {
		switch field {
		case realtime.FieldBid:
			e.quote.Bid = value
		case realtime.FieldAsk:
			e.quote.Ask = value
		case realtime.FieldLast:
			e.quote.Last = value
		case realtime.FieldClose:
			e.quote.Close = value
		}
	}
	e.quote.UpdatedAt = tick.Timestamp
	e.source = tick.Source

	return true
}

// Get returns a copy of the record for conID
func (b *QuoteBook) Get(conID int64) (contracts.Quote, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	e, ok := b.entries[conID]
	if !ok {
		return contracts.NewQuote(conID), false
	}
	return e.quote, true
}

// Tracked returns the tracked contract ids in ascending order
func (b *QuoteBook) Tracked() []int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()

	ids := make([]int64, 0, len(b.entries))
	for id := range b.entries {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Len returns the number of tracked records
func (b *QuoteBook) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return len(b.entries)
}

// Clear drops every record
func (b *QuoteBook) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.entries = make(map[int64]*entry)
	b.logger.Debug("Cleared quote book")
}

// Stats returns book statistics
func (b *QuoteBook) Stats() BookStats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	stats := BookStats{TotalCount: len(b.entries)}
	for _, e := range b.entries {
		if e.quote.HasSignal() {
			stats.WithSignal++
		}
		switch e.source {
		case realtime.SourceStream:
			stats.StreamCount++
		case realtime.SourceSnapshot:
			stats.SnapshotCount++
		}
	}
	return stats
}

// BookStats represents quote book statistics
type BookStats struct {
	TotalCount    int `json:"total_count"`
	WithSignal    int `json:"with_signal"`
	StreamCount   int `json:"stream_count"`
	SnapshotCount int `json:"snapshot_count"`
}
