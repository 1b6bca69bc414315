package api

import (
	"fmt"
	"strings"
)

// Task types a caller can ask for. Models advertise these as capability tags.
const (
	TaskGeneral           = "general"
	TaskContentGeneration = "content_generation"
	TaskCoaching          = "coaching"
	TaskReasoning         = "reasoning"
	TaskWebSearch         = "web_search"
)

const (
	DefaultMaxTokens   = 1000
	DefaultTemperature = 0.7

	MaxPromptLength = 10000
	MaxTokensLimit  = 8000
)

var validTaskTypes = map[string]bool{
	TaskGeneral:           true,
	TaskContentGeneration: true,
	TaskCoaching:          true,
	TaskReasoning:         true,
	TaskWebSearch:         true,
}

// GenerationRequest is a single generation call. It is ephemeral: it exists
// only for the duration of the request.
type GenerationRequest struct {
	Prompt   string `json:"prompt" binding:"required"`
	TaskType string `json:"task_type,omitempty" binding:"omitempty,oneof=general content_generation coaching reasoning web_search"`

	// PreferredProvider is a soft hint. If the hinted provider is unhealthy
	// or lacks the capability, selection proceeds without it.
	PreferredProvider string `json:"preferred_provider,omitempty"`

	MaxTokens   int      `json:"max_tokens,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`

	// TimeoutSeconds caps the whole request including fallback attempts.
	// Zero means no request-level cap; attempts are still individually bounded.
	TimeoutSeconds float64 `json:"timeout_seconds,omitempty"`
}

// Normalize fills defaults for optional fields. Call after Validate.
func (r *GenerationRequest) Normalize() {
	r.Prompt = strings.TrimSpace(r.Prompt)
	if r.TaskType == "" {
		r.TaskType = TaskGeneral
	}
	if r.MaxTokens == 0 {
		r.MaxTokens = DefaultMaxTokens
	}
	if r.Temperature == nil {
		t := DefaultTemperature
		r.Temperature = &t
	}
}

// Validate checks request shape independently of the HTTP binding layer, so
// malformed requests are rejected before any provider is contacted.
func (r *GenerationRequest) Validate() error {
	if strings.TrimSpace(r.Prompt) == "" {
		return fmt.Errorf("prompt must not be empty")
	}
	if len(r.Prompt) > MaxPromptLength {
		return fmt.Errorf("prompt exceeds %d characters", MaxPromptLength)
	}
	if r.TaskType != "" && !validTaskTypes[r.TaskType] {
		return fmt.Errorf("unknown task_type %q", r.TaskType)
	}
	if r.MaxTokens < 0 || r.MaxTokens > MaxTokensLimit {
		return fmt.Errorf("max_tokens must be between 1 and %d", MaxTokensLimit)
	}
	if r.Temperature != nil && (*r.Temperature < 0.0 || *r.Temperature > 2.0) {
		return fmt.Errorf("temperature must be between 0.0 and 2.0")
	}
	if r.TimeoutSeconds < 0 {
		return fmt.Errorf("timeout_seconds must not be negative")
	}
	return nil
}

// BatchGenerateRequest executes up to 10 independent generations in parallel.
type BatchGenerateRequest struct {
	Requests []GenerationRequest `json:"requests" binding:"required,min=1,max=10,dive"`
}

// ConfigureProviderRequest updates a provider's credential and settings.
// Changes take effect for subsequent selections; in-flight dispatches are
// not interrupted.
type ConfigureProviderRequest struct {
	Credential string `json:"credential,omitempty"`
	Enabled    *bool  `json:"enabled,omitempty"`
	Priority   *int   `json:"priority,omitempty" binding:"omitempty,min=1,max=10"`
}

// TestConnectionRequest runs a single generation against one provider,
// bypassing selection.
type TestConnectionRequest struct {
	TestPrompt string `json:"test_prompt,omitempty" binding:"omitempty,max=100"`
}
