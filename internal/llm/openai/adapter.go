package openai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/nulzo/llm-relay/internal/config"
	"github.com/nulzo/llm-relay/internal/httpclient"
	"github.com/nulzo/llm-relay/internal/llm"
)

func init() {
	llm.Register("openai", NewAdapter)
}

// Adapter speaks the OpenAI chat-completions wire format. Providers exposing
// a compatible API (Groq, DeepSeek) reuse it with their own endpoint.
type Adapter struct {
	config config.ProviderConfig
	client *http.Client
}

func NewAdapter(cfg config.ProviderConfig) (llm.Client, error) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "https://api.openai.com/v1"
	}
	return &Adapter{
		config: cfg,
		client: &http.Client{Timeout: 60 * time.Second},
	}, nil
}

func (a *Adapter) Name() string { return a.config.Name }
func (a *Adapter) Type() string { return a.config.Type }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
	TopP        float64       `json:"top_p,omitempty"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

func (a *Adapter) headers() map[string]string {
	return map[string]string{
		"Authorization": "Bearer " + a.config.Credential,
	}
}

func (a *Adapter) Generate(ctx context.Context, params llm.GenerateParams) (*llm.GenerateResult, error) {
	req := chatRequest{
		Model: params.Model,
		Messages: []chatMessage{
			{Role: "user", Content: params.Prompt},
		},
		MaxTokens:   params.MaxTokens,
		Temperature: params.Temperature,
		TopP:        0.9,
	}

	var resp chatResponse
	url := fmt.Sprintf("%s/chat/completions", strings.TrimRight(a.config.Endpoint, "/"))
	if err := httpclient.SendRequest(ctx, a.client, http.MethodPost, url, a.headers(), req, &resp); err != nil {
		return nil, err
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%s returned no choices", a.config.Name)
	}

	return &llm.GenerateResult{
		Content:    resp.Choices[0].Message.Content,
		TokensUsed: resp.Usage.TotalTokens,
	}, nil
}

type modelList struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
}

func (a *Adapter) ListModels(ctx context.Context) ([]llm.Model, error) {
	var list modelList
	url := fmt.Sprintf("%s/models", strings.TrimRight(a.config.Endpoint, "/"))
	if err := httpclient.SendRequest(ctx, a.client, http.MethodGet, url, a.headers(), nil, &list); err != nil {
		return nil, err
	}

	models := make([]llm.Model, 0, len(list.Data))
	for _, m := range list.Data {
		models = append(models, llm.Model{Name: m.ID})
	}
	return models, nil
}
