package ledger

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/nulzo/llm-relay/internal/store"
	"github.com/nulzo/llm-relay/internal/store/cache/memory"
	"github.com/nulzo/llm-relay/internal/store/model"
	"github.com/nulzo/llm-relay/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type statsRepo struct {
	mu     sync.Mutex
	stats  []api.ProviderStats
	recent []model.UsageRecord
	calls  int
}

func (r *statsRepo) Usage() store.UsageRepository { return &statsUsage{repo: r} }
func (r *statsRepo) Close() error                 { return nil }

type statsUsage struct {
	repo *statsRepo
}

func (u *statsUsage) InsertBatch(ctx context.Context, records []model.UsageRecord) error {
	return nil
}

func (u *statsUsage) AggregateByProvider(ctx context.Context, since time.Time) ([]api.ProviderStats, error) {
	u.repo.mu.Lock()
	defer u.repo.mu.Unlock()
	u.repo.calls++
	return u.repo.stats, nil
}

func (u *statsUsage) Recent(ctx context.Context, limit int) ([]model.UsageRecord, error) {
	u.repo.mu.Lock()
	defer u.repo.mu.Unlock()
	if limit > len(u.repo.recent) {
		limit = len(u.repo.recent)
	}
	return u.repo.recent[:limit], nil
}

func TestGetUsageOverview(t *testing.T) {
	repo := &statsRepo{stats: []api.ProviderStats{
		{ProviderName: "groq", TotalRequests: 10, TotalTokens: 5000, TotalCostUSD: 0.25},
		{ProviderName: "ollama", TotalRequests: 40, TotalTokens: 20000},
	}}
	svc := NewService(repo, memory.New(), zap.NewNop())

	overview, err := svc.GetUsageOverview(context.Background(), 7)
	require.NoError(t, err)

	assert.Equal(t, 7, overview.PeriodDays)
	require.Len(t, overview.Providers, 2)
	assert.Equal(t, "groq", overview.Providers[0].ProviderName)
	assert.False(t, overview.GeneratedAt.IsZero())
}

func TestGetUsageOverviewCaches(t *testing.T) {
	repo := &statsRepo{stats: []api.ProviderStats{{ProviderName: "ollama"}}}
	svc := NewService(repo, memory.New(), zap.NewNop())

	_, err := svc.GetUsageOverview(context.Background(), 7)
	require.NoError(t, err)
	_, err = svc.GetUsageOverview(context.Background(), 7)
	require.NoError(t, err)

	assert.Equal(t, 1, repo.calls, "second call within TTL must hit the cache")

	// A different window is a different cache entry.
	_, err = svc.GetUsageOverview(context.Background(), 30)
	require.NoError(t, err)
	assert.Equal(t, 2, repo.calls)
}

func TestGetUsageOverviewDefaultsWindow(t *testing.T) {
	repo := &statsRepo{}
	svc := NewService(repo, memory.New(), zap.NewNop())

	overview, err := svc.GetUsageOverview(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 7, overview.PeriodDays)
}

func TestGetRecentActivity(t *testing.T) {
	repo := &statsRepo{recent: []model.UsageRecord{
		{ID: "newest", ProviderName: "ollama", Success: true},
		{ID: "older", ProviderName: "groq", Success: false},
	}}
	svc := NewService(repo, memory.New(), zap.NewNop())

	records, err := svc.GetRecentActivity(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "newest", records[0].ID)

	// A non-positive limit falls back to the default page size.
	records, err = svc.GetRecentActivity(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}
