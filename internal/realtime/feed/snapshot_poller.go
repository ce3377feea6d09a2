package feed

import (
	"context"
	"sync"
	"time"

	"github.com/wonny/putscan/internal/realtime"
	"github.com/wonny/putscan/internal/realtime/cache"
	"github.com/wonny/putscan/pkg/logger"
)

const (
	// snapshot requests accept a bounded conid list
	maxSnapshotBatch = 50

	defaultSnapshotInterval = 1 * time.Second
)

// SnapshotFetcher returns one tick per conid that had data
type SnapshotFetcher interface {
	Snapshot(ctx context.Context, conIDs []int64) ([]realtime.Tick, error)
}

// SnapshotPoller feeds the quote book from REST snapshots when streaming is off
// ⭐ SSOT: REST 스냅샷 폴링은 이 폴러에서만
type SnapshotPoller struct {
	fetcher  SnapshotFetcher
	book     *cache.QuoteBook
	logger   *logger.Logger
	interval time.Duration

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewSnapshotPoller creates a poller; interval <= 0 uses the default
func NewSnapshotPoller(fetcher SnapshotFetcher, book *cache.QuoteBook, log *logger.Logger, interval time.Duration) *SnapshotPoller {
	if interval <= 0 {
		interval = defaultSnapshotInterval
	}
	return &SnapshotPoller{
		fetcher:  fetcher,
		book:     book,
		logger:   log,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start starts the polling loop
func (p *SnapshotPoller) Start(ctx context.Context) {
	p.logger.WithField("interval", p.interval).Info("Starting snapshot poller")

	p.wg.Add(1)
	go p.loop(ctx)
}

// Stop stops the polling loop
func (p *SnapshotPoller) Stop() {
	p.stopOnce.Do(func() {
		close(p.stopCh)
		p.wg.Wait()
	})
}

func (p *SnapshotPoller) loop(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.PollOnce(ctx)
		}
	}
}

// PollOnce fetches every tracked contract once
func (p *SnapshotPoller) PollOnce(ctx context.Context) {
	ids := p.book.Tracked()
	if len(ids) == 0 {
		return
	}

	applied, failed := 0, 0
	for start := 0; start < len(ids); start += maxSnapshotBatch {
		end := start + maxSnapshotBatch
		if end > len(ids) {
			end = len(ids)
		}

		ticks, err := p.fetcher.Snapshot(ctx, ids[start:end])
		if err != nil {
			p.logger.WithError(err).Debug("Snapshot request failed")
			failed++
			continue
		}

		for _, tick := range ticks {
			if p.book.Apply(tick) {
				applied++
			}
		}
	}

	p.logger.WithFields(map[string]interface{}{
		"tracked": len(ids),
		"applied": applied,
		"failed":  failed,
	}).Debug("Completed snapshot poll")
}
