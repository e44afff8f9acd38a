package status

import (
	"context"
	"errors"
	"time"

	"github.com/cyberinferno/chatrelay/logger"
)

// Service serves snapshots through a Cache so repeated reads within ttl
// share one build.
type Service struct {
	provider *Provider
	cache    Cache[Snapshot]
	key      string
	ttl      time.Duration
	logger   logger.Logger
}

// NewService wires a provider to a cache.
//
// Parameters:
//   - provider: Source of fresh snapshots
//   - cache: Where snapshots are kept between builds
//   - key: Cache key, usually Key(prefix, instance)
//   - ttl: Lifetime of a cached snapshot
//   - log: Logger for publish failures; nil discards
func NewService(provider *Provider, cache Cache[Snapshot], key string, ttl time.Duration, log logger.Logger) *Service {
	return &Service{
		provider: provider,
		cache:    cache,
		key:      key,
		ttl:      ttl,
		logger:   logger.OrNop(log),
	}
}

// Key returns the cache key snapshots are stored under.
func (s *Service) Key() string { return s.key }

// Current returns the cached snapshot, building it on a miss.
func (s *Service) Current(ctx context.Context) (Snapshot, error) {
	return s.cache.GetOrBuild(ctx, s.key, s.ttl, s.provider.Build)
}

// Refresh drops the cached snapshot and builds a new one.
func (s *Service) Refresh(ctx context.Context) (Snapshot, error) {
	if err := s.cache.Invalidate(ctx, s.key); err != nil {
		return Snapshot{}, err
	}
	return s.Current(ctx)
}

// Publish refreshes the snapshot every interval until ctx is done. Refresh
// failures are logged and retried on the next tick.
func (s *Service) Publish(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			snap, err := s.Refresh(ctx)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return nil
				}
				s.logger.Warn("status publish failed", logger.Field{Key: "key", Value: s.key}, logger.Field{Key: "error", Value: err.Error()})
				continue
			}
			s.logger.Debug("status published", logger.Field{Key: "key", Value: s.key}, logger.Field{Key: "connected", Value: snap.Connected})
		}
	}
}
