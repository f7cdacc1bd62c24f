package status

import (
	"context"
	"time"

	"github.com/mikey/exodetect/internal/core"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

// CachedSource wraps a core.StatusSource and reuses a successful answer for ttl.
// Failures are never cached so the indicator recovers on the next poll.
type CachedSource struct {
	source  core.StatusSource
	ttl     time.Duration
	entries *cache.Cache
	logger  *zap.Logger
}

// NewCachedSource creates a caching status source; a non-positive ttl disables caching
func NewCachedSource(source core.StatusSource, ttl time.Duration, logger *zap.Logger) *CachedSource {
	cleanup := ttl * 2
	if ttl <= 0 {
		cleanup = 0
	}
	return &CachedSource{
		source:  source,
		ttl:     ttl,
		entries: cache.New(ttl, cleanup),
		logger:  logger,
	}
}

// Status returns the cached status for token or fetches a fresh one
func (s *CachedSource) Status(ctx context.Context, token string) (*core.BackendStatus, error) {
	if s.ttl <= 0 {
		return s.source.Status(ctx, token)
	}
	if v, ok := s.entries.Get(token); ok {
		st := v.(core.BackendStatus)
		return &st, nil
	}

	st, err := s.source.Status(ctx, token)
	if err != nil {
		return nil, err
	}
	s.entries.SetDefault(token, *st)
	s.logger.Debug("Refreshed backend status",
		zap.Bool("ai_loaded", st.AILoaded),
		zap.Bool("features_sync", st.FeaturesSync))
	return st, nil
}

// Invalidate drops every cached answer
func (s *CachedSource) Invalidate() {
	s.entries.Flush()
}
