package groq

import (
	"github.com/nulzo/llm-relay/internal/config"
	"github.com/nulzo/llm-relay/internal/llm"
	"github.com/nulzo/llm-relay/internal/llm/openai"
)

func init() {
	llm.Register("groq", NewAdapter)
}

// NewAdapter returns an OpenAI-compatible client pointed at Groq's API.
func NewAdapter(cfg config.ProviderConfig) (llm.Client, error) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "https://api.groq.com/openai/v1"
	}
	return openai.NewAdapter(cfg)
}
