package llm

import "context"

// GenerateParams is the provider-neutral shape of one generation attempt.
// The dispatcher resolves model selection before this layer; adapters only
// translate to their wire format.
type GenerateParams struct {
	Model       string
	Prompt      string
	MaxTokens   int
	Temperature float64
}

type GenerateResult struct {
	Content    string
	TokensUsed int
}

// Model is a provider-reported model. SizeBytes is only populated by local
// providers that expose it.
type Model struct {
	Name      string
	SizeBytes int64
}

// Client is the contract every provider adapter implements. Clients must be
// safe for concurrent use; ListModels doubles as the health probe.
type Client interface {
	Name() string
	Type() string
	Generate(ctx context.Context, params GenerateParams) (*GenerateResult, error)
	ListModels(ctx context.Context) ([]Model, error)
}
