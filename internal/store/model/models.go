package model

import "time"

// UsageRecord captures one dispatch attempt against a provider, successful
// or not. Aggregations over this table drive the usage reports.
type UsageRecord struct {
	ID                  string    `db:"id" json:"id"`
	ProviderName        string    `db:"provider_name" json:"provider_name"`
	ModelName           string    `db:"model_name" json:"model_name"`
	TaskType            string    `db:"task_type" json:"task_type"`
	TokensUsed          int       `db:"tokens_used" json:"tokens_used"`
	CostUSD             float64   `db:"cost_usd" json:"cost_usd"`
	ResponseTimeSeconds float64   `db:"response_time_seconds" json:"response_time_seconds"`
	WasFallback         bool      `db:"was_fallback" json:"was_fallback"`
	Success             bool      `db:"success" json:"success"`
	FailureClass        string    `db:"failure_class" json:"failure_class,omitempty"`
	CreatedAt           time.Time `db:"created_at" json:"created_at"`
}
