package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nulzo/llm-relay/internal/store"
	"github.com/nulzo/llm-relay/internal/store/cache"
	"github.com/nulzo/llm-relay/internal/store/model"
	"github.com/nulzo/llm-relay/pkg/api"
	"go.uber.org/zap"
)

const overviewTTL = 30 * time.Second

// Service answers usage queries over the ledger. Aggregations are served
// cache-aside: a short TTL keeps repeated dashboard polls off sqlite while
// staying close to real time.
type Service interface {
	GetUsageOverview(ctx context.Context, days int) (*api.UsageOverview, error)
	GetRecentActivity(ctx context.Context, limit int) ([]model.UsageRecord, error)
}

type service struct {
	repo   store.Repository
	cache  cache.CacheService
	logger *zap.Logger
}

func NewService(repo store.Repository, cacheSvc cache.CacheService, logger *zap.Logger) Service {
	return &service{
		repo:   repo,
		cache:  cacheSvc,
		logger: logger,
	}
}

func (s *service) GetUsageOverview(ctx context.Context, days int) (*api.UsageOverview, error) {
	if days <= 0 {
		days = 7
	}

	key := fmt.Sprintf("usage:overview:%dd", days)

	var cached api.UsageOverview
	err := s.cache.Get(ctx, key, &cached)
	if err == nil {
		return &cached, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn("Usage cache read failed", zap.String("key", key), zap.Error(err))
	}

	since := time.Now().AddDate(0, 0, -days)
	stats, err := s.repo.Usage().AggregateByProvider(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("aggregate usage: %w", err)
	}

	overview := &api.UsageOverview{
		PeriodDays:  days,
		Providers:   stats,
		GeneratedAt: time.Now().UTC(),
	}

	if err := s.cache.Set(ctx, key, overview, overviewTTL); err != nil {
		s.logger.Warn("Usage cache write failed", zap.String("key", key), zap.Error(err))
	}
	return overview, nil
}

// GetRecentActivity returns the newest usage records, most recent first.
// Reads go straight to the store; the feed is meant to reflect dispatches
// as soon as the ingestor flushes them.
func (s *service) GetRecentActivity(ctx context.Context, limit int) ([]model.UsageRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	records, err := s.repo.Usage().Recent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("recent usage: %w", err)
	}
	return records, nil
}
