package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nulzo/llm-relay/internal/store"
	"github.com/nulzo/llm-relay/internal/store/model"
	"github.com/nulzo/llm-relay/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) store.Repository {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "test.db") + "?cache=shared&mode=rwc"
	repo, err := NewSQLiteStorage(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func rec(provider string, tokens int, cost float64, fallback bool, age time.Duration) model.UsageRecord {
	return model.UsageRecord{
		ID:                  uuid.NewString(),
		ProviderName:        provider,
		ModelName:           "m",
		TaskType:            api.TaskGeneral,
		TokensUsed:          tokens,
		CostUSD:             cost,
		ResponseTimeSeconds: 1.0,
		WasFallback:         fallback,
		Success:             true,
		CreatedAt:           time.Now().UTC().Add(-age),
	}
}

func TestInsertAndAggregate(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	records := []model.UsageRecord{
		rec("groq", 1000, 0.05, false, time.Hour),
		rec("groq", 3000, 0.15, true, 2*time.Hour),
		rec("ollama", 500, 0, false, time.Hour),
	}
	require.NoError(t, repo.Usage().InsertBatch(ctx, records))

	stats, err := repo.Usage().AggregateByProvider(ctx, time.Now().UTC().Add(-24*time.Hour))
	require.NoError(t, err)
	require.Len(t, stats, 2)

	// Ordered by provider name.
	groq := stats[0]
	assert.Equal(t, "groq", groq.ProviderName)
	assert.Equal(t, int64(2), groq.TotalRequests)
	assert.Equal(t, int64(4000), groq.TotalTokens)
	assert.InDelta(t, 0.20, groq.TotalCostUSD, 1e-9)
	assert.InDelta(t, 1.0, groq.AvgResponseTimeSeconds, 1e-9)
	assert.Equal(t, int64(1), groq.FallbackCount)

	ollama := stats[1]
	assert.Equal(t, "ollama", ollama.ProviderName)
	assert.Equal(t, int64(1), ollama.TotalRequests)
	assert.Zero(t, ollama.TotalCostUSD)
}

func TestAggregateRespectsWindow(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Usage().InsertBatch(ctx, []model.UsageRecord{
		rec("groq", 100, 0.01, false, time.Hour),
		rec("groq", 100, 0.01, false, 10*24*time.Hour),
	}))

	stats, err := repo.Usage().AggregateByProvider(ctx, time.Now().UTC().Add(-7*24*time.Hour))
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, int64(1), stats[0].TotalRequests)
}

func TestAggregateEmptyWindow(t *testing.T) {
	repo := newTestRepo(t)

	stats, err := repo.Usage().AggregateByProvider(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Empty(t, stats)
}

func TestRecentOrdersNewestFirst(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	oldRec := rec("groq", 1, 0, false, 3*time.Hour)
	newRec := rec("ollama", 2, 0, false, time.Minute)
	require.NoError(t, repo.Usage().InsertBatch(ctx, []model.UsageRecord{oldRec, newRec}))

	got, err := repo.Usage().Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, newRec.ID, got[0].ID)
	assert.Equal(t, oldRec.ID, got[1].ID)
}

func TestInsertEmptyBatchIsNoop(t *testing.T) {
	repo := newTestRepo(t)
	assert.NoError(t, repo.Usage().InsertBatch(context.Background(), nil))
}
