package anthropic

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

const defaultVersion = "2023-06-01"

func init() {
	llm.Register("anthropic", NewAdapter)
}

type Adapter struct {
	config config.ProviderConfig
	client *http.Client
}

func NewAdapter(cfg config.ProviderConfig) (llm.Client, error) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "https://api.anthropic.com/v1"
	}
	return &Adapter{
		config: cfg,
		client: &http.Client{Timeout: 60 * time.Second},
	}, nil
}

func (a *Adapter) Name() string { return a.config.Name }
func (a *Adapter) Type() string { return "anthropic" }

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature,omitempty"`
}

type messagesResponse struct {
	ID      string `json:"id"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func (a *Adapter) headers() map[string]string {
	return map[string]string{
		"x-api-key":         a.config.Credential,
		"anthropic-version": defaultVersion,
	}
}

func (a *Adapter) Generate(ctx context.Context, params llm.GenerateParams) (*llm.GenerateResult, error) {
	maxTokens := params.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}

	req := messagesRequest{
		Model: params.Model,
		Messages: []message{
			{Role: "user", Content: params.Prompt},
		},
		MaxTokens:   maxTokens,
		Temperature: params.Temperature,
	}

	var resp messagesResponse
	url := fmt.Sprintf("%s/messages", strings.TrimRight(a.config.Endpoint, "/"))
	if err := httpclient.SendRequest(ctx, a.client, http.MethodPost, url, a.headers(), req, &resp); err != nil {
		return nil, err
	}

	var content strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			content.WriteString(block.Text)
		}
	}

	return &llm.GenerateResult{
		Content:    content.String(),
		TokensUsed: resp.Usage.InputTokens + resp.Usage.OutputTokens,
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
