package api

import "time"

// GenerationResult is the terminal outcome of a successful dispatch.
// Immutable once produced.
type GenerationResult struct {
	Content             string  `json:"content"`
	ProviderUsed        string  `json:"provider_used"`
	ModelUsed           string  `json:"model_used"`
	TokensUsed          int     `json:"tokens_used"`
	CostUSD             float64 `json:"cost_usd"`
	ResponseTimeSeconds float64 `json:"response_time_seconds"`

	// FallbackCount is the number of candidates tried before the winner,
	// i.e. the winning candidate's index in the ranked list.
	FallbackCount int `json:"fallback_count"`
}

// BatchItemResult wraps one entry of a batch response. Exactly one of
// Result or Error is set.
type BatchItemResult struct {
	Index  int               `json:"index"`
	Result *GenerationResult `json:"result,omitempty"`
	Error  *Problem          `json:"error,omitempty"`
}

// ProviderStatus is the dashboard view of one provider's live health.
type ProviderStatus struct {
	Provider           string    `json:"provider"`
	DisplayName        string    `json:"display_name"`
	Description        string    `json:"description,omitempty"`
	Kind               string    `json:"kind"`
	State              string    `json:"state"`
	Reason             string    `json:"reason,omitempty"`
	ModelsAvailable    int       `json:"models_available"`
	CostModel          string    `json:"cost_model"`
	RequiresCredential bool      `json:"requires_credential"`
	Configured         bool      `json:"configured"`
	SetupURL           string    `json:"setup_url,omitempty"`
	LastCheckedAt      time.Time `json:"last_checked_at,omitzero"`
}

// ModelInfo describes one model in the cross-provider catalog.
type ModelInfo struct {
	Provider      string   `json:"provider"`
	Name          string   `json:"name"`
	Capabilities  []string `json:"capabilities"`
	ContextLength int      `json:"context_length,omitempty"`
	Available     bool     `json:"available"`
	SizeGB        *float64 `json:"size_gb,omitempty"`
}

// ProviderStats is the per-provider aggregate over a time window.
type ProviderStats struct {
	ProviderName           string  `json:"provider_name" db:"provider_name"`
	TotalRequests          int64   `json:"total_requests" db:"total_requests"`
	TotalTokens            int64   `json:"total_tokens" db:"total_tokens"`
	TotalCostUSD           float64 `json:"total_cost_usd" db:"total_cost_usd"`
	AvgResponseTimeSeconds float64 `json:"avg_response_time_seconds" db:"avg_response_time_seconds"`
	FallbackCount          int64   `json:"fallback_count" db:"fallback_count"`
}

// UsageOverview is the usage-statistics response envelope.
type UsageOverview struct {
	PeriodDays  int             `json:"period_days"`
	Providers   []ProviderStats `json:"providers"`
	GeneratedAt time.Time       `json:"generated_at"`
}

// TestConnectionResult reports the outcome of a provider connection test.
type TestConnectionResult struct {
	Provider       string  `json:"provider"`
	Success        bool    `json:"success"`
	LatencySeconds float64 `json:"latency_seconds"`
	ModelUsed      string  `json:"model_used,omitempty"`
	TokensUsed     int     `json:"tokens_used,omitempty"`
	Response       string  `json:"response,omitempty"`
	Error          string  `json:"error,omitempty"`
}
