package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/nulzo/llm-relay/internal/store"
	"github.com/nulzo/llm-relay/internal/store/model"
	"github.com/nulzo/llm-relay/pkg/api"
)

// DB is the executor contract satisfied by both *sqlx.DB and *sqlx.Tx.
type DB interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	NamedExecContext(ctx context.Context, query string, arg interface{}) (sql.Result, error)
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// SqliteRepository implements store.Repository.
type SqliteRepository struct {
	db       *sqlx.DB
	executor DB
}

func NewSqliteRepository(db *sqlx.DB) *SqliteRepository {
	return &SqliteRepository{
		db:       db,
		executor: db,
	}
}

func (r *SqliteRepository) Close() error {
	return r.db.Close()
}

func (r *SqliteRepository) Usage() store.UsageRepository {
	return &usageRepo{db: r.executor}
}

type usageRepo struct {
	db DB
}

func (r *usageRepo) InsertBatch(ctx context.Context, records []model.UsageRecord) error {
	if len(records) == 0 {
		return nil
	}
	query := `
	INSERT INTO usage_records (
		id, provider_name, model_name, task_type, tokens_used, cost_usd,
		response_time_seconds, was_fallback, success, failure_class, created_at
	) VALUES (
		:id, :provider_name, :model_name, :task_type, :tokens_used, :cost_usd,
		:response_time_seconds, :was_fallback, :success, :failure_class, :created_at
	)`
	_, err := r.db.NamedExecContext(ctx, query, records)
	return err
}

func (r *usageRepo) AggregateByProvider(ctx context.Context, since time.Time) ([]api.ProviderStats, error) {
	var stats []api.ProviderStats
	query := `
	SELECT
		provider_name,
		COUNT(*) AS total_requests,
		COALESCE(SUM(tokens_used), 0) AS total_tokens,
		COALESCE(SUM(cost_usd), 0) AS total_cost_usd,
		COALESCE(AVG(response_time_seconds), 0) AS avg_response_time_seconds,
		COALESCE(SUM(CASE WHEN was_fallback THEN 1 ELSE 0 END), 0) AS fallback_count
	FROM usage_records
	WHERE created_at >= ?
	GROUP BY provider_name
	ORDER BY provider_name`
	err := r.db.SelectContext(ctx, &stats, query, since)
	return stats, err
}

func (r *usageRepo) Recent(ctx context.Context, limit int) ([]model.UsageRecord, error) {
	var records []model.UsageRecord
	query := `SELECT * FROM usage_records ORDER BY created_at DESC LIMIT ?`
	err := r.db.SelectContext(ctx, &records, query, limit)
	return records, err
}
