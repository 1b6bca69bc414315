package ollama

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
	llm.Register("ollama", NewAdapter)
}

type Adapter struct {
	config config.ProviderConfig
	client *http.Client
}

func NewAdapter(cfg config.ProviderConfig) (llm.Client, error) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "http://localhost:11434"
	}
	return &Adapter{
		config: cfg,
		client: &http.Client{Timeout: 60 * time.Second},
	}, nil
}

func (a *Adapter) Name() string { return a.config.Name }
func (a *Adapter) Type() string { return "ollama" }

type generateOptions struct {
	NumPredict  int     `json:"num_predict,omitempty"`
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p,omitempty"`
}

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
}

type generateResponse struct {
	Model           string `json:"model"`
	Response        string `json:"response"`
	Done            bool   `json:"done"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
}

func (a *Adapter) Generate(ctx context.Context, params llm.GenerateParams) (*llm.GenerateResult, error) {
	req := generateRequest{
		Model:  params.Model,
		Prompt: params.Prompt,
		Stream: false,
		Options: generateOptions{
			NumPredict:  params.MaxTokens,
			Temperature: params.Temperature,
			TopP:        0.9,
		},
	}

	var resp generateResponse
	url := fmt.Sprintf("%s/api/generate", strings.TrimRight(a.config.Endpoint, "/"))
	if err := httpclient.SendRequest(ctx, a.client, http.MethodPost, url, nil, req, &resp); err != nil {
		return nil, err
	}

	tokens := resp.PromptEvalCount + resp.EvalCount
	if tokens == 0 {
		// Older daemons omit eval counts; estimate from whitespace tokens.
		tokens = int(float64(len(strings.Fields(resp.Response))) * 1.3)
	}

	return &llm.GenerateResult{
		Content:    resp.Response,
		TokensUsed: tokens,
	}, nil
}

type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
		Size int64  `json:"size"`
	} `json:"models"`
}

func (a *Adapter) ListModels(ctx context.Context) ([]llm.Model, error) {
	var list tagsResponse
	url := fmt.Sprintf("%s/api/tags", strings.TrimRight(a.config.Endpoint, "/"))
	if err := httpclient.SendRequest(ctx, a.client, http.MethodGet, url, nil, nil, &list); err != nil {
		return nil, err
	}

	models := make([]llm.Model, 0, len(list.Models))
	for _, m := range list.Models {
		models = append(models, llm.Model{
			Name:      m.Name,
			SizeBytes: m.Size,
		})
	}
	return models, nil
}
