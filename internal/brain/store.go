package brain

import (
	"context"
	"sync"

	"github.com/wonny/putscan/pkg/logger"
	"github.com/wonny/putscan/pkg/redis"
)

// ResultStore keeps the most recent scan result in memory and, when Redis is
// enabled, under redis.LatestScanKey so other processes can read it.
type ResultStore struct {
	cache  *redis.Cache
	scanID string
	logger *logger.Logger

	mu     sync.RWMutex
	latest *RunResult
}

// NewResultStore creates a store; cache may be backed by a disabled client
func NewResultStore(cache *redis.Cache, scanID string, log *logger.Logger) *ResultStore {
	return &ResultStore{
		cache:  cache,
		scanID: scanID,
		logger: log,
	}
}

// Save records result as the latest. A Redis failure is logged, not returned.
func (s *ResultStore) Save(ctx context.Context, result *RunResult) {
	if result == nil {
		return
	}

	s.mu.Lock()
	s.latest = result
	s.mu.Unlock()

	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, redis.LatestScanKey(s.scanID), result, redis.TTLDay); err != nil {
		s.logger.WithError(err).WithField("run_id", result.RunID).Warn("Failed to publish latest scan")
	}
}

// Latest returns the newest result: in-memory first, then Redis
func (s *ResultStore) Latest(ctx context.Context) (*RunResult, bool) {
	s.mu.RLock()
	latest := s.latest
	s.mu.RUnlock()

	if latest != nil {
		return latest, true
	}
	if s.cache == nil {
		return nil, false
	}

	var shared RunResult
	found, err := s.cache.Get(ctx, redis.LatestScanKey(s.scanID), &shared)
	if err != nil {
		s.logger.WithError(err).Debug("Failed to read latest scan from cache")
		return nil, false
	}
	if !found {
		return nil, false
	}
	return &shared, true
}
