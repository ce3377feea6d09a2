package feed

import (
	"context"
	"sync"

	"github.com/wonny/putscan/internal/contracts"
	"github.com/wonny/putscan/internal/realtime/cache"
	"github.com/wonny/putscan/pkg/logger"
)

// Mode is the live quote transport in use
type Mode string

const (
	ModeStream   Mode = "stream"
	ModeSnapshot Mode = "snapshot"
)

// FeedManager owns the quote book and whichever transport fills it.
// It implements contracts.QuoteSource.
// ⭐ SSOT: 실시간 시세 피드 조율은 이 매니저에서만
type FeedManager struct {
	logger *logger.Logger
	book   *cache.QuoteBook

	stream *StreamClient
	poller *SnapshotPoller

	mu   sync.RWMutex
	mode Mode
}

// NewFeedManager creates a manager; stream may be nil (snapshot only)
func NewFeedManager(log *logger.Logger, book *cache.QuoteBook, stream *StreamClient, poller *SnapshotPoller) *FeedManager {
	return &FeedManager{
		logger: log,
		book:   book,
		stream: stream,
		poller: poller,
		mode:   ModeSnapshot,
	}
}

// Start prefers the stream and falls back to snapshot polling when the
// stream is disabled or cannot be dialed
func (m *FeedManager) Start(ctx context.Context, session string) {
	if m.stream != nil {
		err := m.stream.Start(ctx, session)
		if err == nil {
			m.setMode(ModeStream)
			m.logger.Info("Live quotes via stream")
			return
		}
		m.logger.WithError(err).Warn("Quote stream unavailable, falling back to snapshot polling")
	}

	m.setMode(ModeSnapshot)
	m.poller.Start(ctx)
}

// Stop stops the active transport
func (m *FeedManager) Stop() {
	if m.Mode() == ModeStream {
		m.stream.Stop()
		return
	}
	m.poller.Stop()
}

// Mode returns the active transport
func (m *FeedManager) Mode() Mode {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.mode
}

func (m *FeedManager) setMode(mode Mode) {
	m.mu.Lock()
	m.mode = mode
	m.mu.Unlock()
}

// Book exposes the quote book (stats)
func (m *FeedManager) Book() *cache.QuoteBook {
	return m.book
}

// Subscribe opens a live quote subscription for conID
func (m *FeedManager) Subscribe(ctx context.Context, conID int64) (contracts.QuoteSubscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	first := m.book.Track(conID)
	if first && m.Mode() == ModeStream {
		if err := m.stream.Subscribe(conID); err != nil {
			m.book.Release(conID)
			return nil, err
		}
	}

	return &subscription{manager: m, conID: conID}, nil
}

func (m *FeedManager) release(conID int64) {
	if !m.book.Release(conID) || m.Mode() != ModeStream {
		return
	}
	if err := m.stream.Unsubscribe(conID); err != nil {
		m.logger.WithError(err).WithField("conid", conID).Debug("Failed to unsubscribe")
	}
}

// subscription is a handle on one quote book record
type subscription struct {
	manager *FeedManager
	conID   int64
	once    sync.Once
}

func (s *subscription) Snapshot() contracts.Quote {
	q, _ := s.manager.book.Get(s.conID)
	return q
}

func (s *subscription) Cancel() {
	s.once.Do(func() {
		s.manager.release(s.conID)
	})
}
