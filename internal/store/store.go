package store

import (
	"context"
	"time"

	"github.com/nulzo/llm-relay/internal/store/model"
	"github.com/nulzo/llm-relay/pkg/api"
)

// Repository is the main contract for the data layer.
type Repository interface {
	Usage() UsageRepository

	Close() error
}

type UsageRepository interface {
	// InsertBatch stores a batch of usage records in one statement.
	InsertBatch(ctx context.Context, records []model.UsageRecord) error
	// AggregateByProvider returns per-provider totals for records created
	// at or after since.
	AggregateByProvider(ctx context.Context, since time.Time) ([]api.ProviderStats, error)
	// Recent returns the latest records, newest first.
	Recent(ctx context.Context, limit int) ([]model.UsageRecord, error)
}
