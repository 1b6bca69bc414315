package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/nulzo/llm-relay/internal/config"
	"github.com/nulzo/llm-relay/internal/health"
	"github.com/nulzo/llm-relay/internal/httpclient"
	"github.com/nulzo/llm-relay/internal/llm"
	"github.com/nulzo/llm-relay/internal/registry"
	"github.com/nulzo/llm-relay/internal/selector"
	"github.com/nulzo/llm-relay/internal/store/model"
	"github.com/nulzo/llm-relay/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeCandidates struct {
	list []selector.Candidate
}

func (f *fakeCandidates) Candidates(taskType, preferred string) []selector.Candidate {
	return f.list
}

type scriptedClient struct {
	name   string
	result *llm.GenerateResult
	err    error
	calls  int
}

func (c *scriptedClient) Name() string { return c.name }
func (c *scriptedClient) Type() string { return "scripted" }
func (c *scriptedClient) Generate(ctx context.Context, p llm.GenerateParams) (*llm.GenerateResult, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return c.result, nil
}
func (c *scriptedClient) ListModels(ctx context.Context) ([]llm.Model, error) { return nil, nil }

type fakeClients struct {
	providers map[string]registry.Provider
	clients   map[string]*scriptedClient
}

func (f *fakeClients) Get(name string) (registry.Provider, error) {
	p, ok := f.providers[name]
	if !ok {
		return registry.Provider{}, fmt.Errorf("%w: %s", registry.ErrNotFound, name)
	}
	return p, nil
}

func (f *fakeClients) Client(name string) (llm.Client, error) {
	c, ok := f.clients[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", registry.ErrNotFound, name)
	}
	return c, nil
}

type fakeFeedback struct {
	mu        sync.Mutex
	refreshed []string
	failures  []string
}

func (f *fakeFeedback) ForceRefresh(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshed = append(f.refreshed, name)
}

func (f *fakeFeedback) RecordDispatchFailure(name, reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures = append(f.failures, name)
}

type fakeIngestor struct {
	mu      sync.Mutex
	records []model.UsageRecord
}

func (f *fakeIngestor) Record(rec *model.UsageRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, *rec)
}
func (f *fakeIngestor) Start(ctx context.Context) {}
func (f *fakeIngestor) Stop()                     {}

func (f *fakeIngestor) all() []model.UsageRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.UsageRecord(nil), f.records...)
}

type rig struct {
	engine   *Engine
	clients  *fakeClients
	feedback *fakeFeedback
	ingestor *fakeIngestor
}

func candidate(name, costModel string, costPer1K float64) selector.Candidate {
	return selector.Candidate{
		Provider: registry.Provider{
			Name:      name,
			CostModel: costModel,
			Models: []registry.Model{
				{Name: "model-a", Capabilities: []string{"general"}, Available: true, CostPer1KTokensUSD: costPer1K},
			},
		},
		Model:  registry.Model{Name: "model-a", Available: true, CostPer1KTokensUSD: costPer1K},
		Health: health.StateHealthy,
	}
}

func newRig(cands []selector.Candidate, clients map[string]*scriptedClient) *rig {
	fc := &fakeClients{
		providers: make(map[string]registry.Provider),
		clients:   clients,
	}
	for _, c := range cands {
		fc.providers[c.Provider.Name] = c.Provider
	}
	feedback := &fakeFeedback{}
	ingestor := &fakeIngestor{}
	engine := NewEngine(
		&fakeCandidates{list: cands},
		fc,
		feedback,
		ingestor,
		config.DispatchConfig{AttemptTimeoutSeconds: 5},
		zap.NewNop(),
	)
	return &rig{engine: engine, clients: fc, feedback: feedback, ingestor: ingestor}
}

func request() *api.GenerationRequest {
	req := &api.GenerationRequest{Prompt: "hello"}
	req.Normalize()
	return req
}

func TestGenerateFirstCandidateWins(t *testing.T) {
	r := newRig(
		[]selector.Candidate{candidate("ollama", config.CostFree, 0)},
		map[string]*scriptedClient{
			"ollama": {name: "ollama", result: &llm.GenerateResult{Content: "hi there", TokensUsed: 42}},
		},
	)

	res, err := r.engine.Generate(context.Background(), request())
	require.NoError(t, err)

	assert.Equal(t, "hi there", res.Content)
	assert.Equal(t, "ollama", res.ProviderUsed)
	assert.Equal(t, "model-a", res.ModelUsed)
	assert.Equal(t, 42, res.TokensUsed)
	assert.Zero(t, res.CostUSD)
	assert.Zero(t, res.FallbackCount)

	records := r.ingestor.all()
	require.Len(t, records, 1)
	assert.True(t, records[0].Success)
	assert.False(t, records[0].WasFallback)
	assert.Equal(t, 42, records[0].TokensUsed)
}

func TestGenerateComputesPerTokenCost(t *testing.T) {
	r := newRig(
		[]selector.Candidate{candidate("groq", config.CostPerToken, 0.5)},
		map[string]*scriptedClient{
			"groq": {name: "groq", result: &llm.GenerateResult{Content: "ok", TokensUsed: 2000}},
		},
	)

	res, err := r.engine.Generate(context.Background(), request())
	require.NoError(t, err)

	// 2000 tokens at 0.5 USD per 1k tokens
	assert.InDelta(t, 1.0, res.CostUSD, 1e-9)
}

func TestGenerateFallsBackOnTransientError(t *testing.T) {
	r := newRig(
		[]selector.Candidate{
			candidate("primary", config.CostFree, 0),
			candidate("backup", config.CostFree, 0),
		},
		map[string]*scriptedClient{
			"primary": {name: "primary", err: &httpclient.UpstreamError{StatusCode: 500, URL: "http://primary"}},
			"backup":  {name: "backup", result: &llm.GenerateResult{Content: "saved", TokensUsed: 5}},
		},
	)

	res, err := r.engine.Generate(context.Background(), request())
	require.NoError(t, err)

	assert.Equal(t, "backup", res.ProviderUsed)
	assert.Equal(t, 1, res.FallbackCount)

	records := r.ingestor.all()
	require.Len(t, records, 2)
	assert.False(t, records[0].Success)
	assert.Equal(t, api.ClassTransientError, records[0].FailureClass)
	assert.True(t, records[1].Success)
	assert.True(t, records[1].WasFallback)

	assert.Equal(t, []string{"primary"}, r.feedback.failures)
	assert.Empty(t, r.feedback.refreshed)
}

func TestGenerateAuthErrorTriggersRefreshNotFailureCount(t *testing.T) {
	r := newRig(
		[]selector.Candidate{
			candidate("cloud", config.CostPerToken, 0.1),
			candidate("backup", config.CostFree, 0),
		},
		map[string]*scriptedClient{
			"cloud":  {name: "cloud", err: &httpclient.UpstreamError{StatusCode: 401, URL: "http://cloud"}},
			"backup": {name: "backup", result: &llm.GenerateResult{Content: "ok"}},
		},
	)

	res, err := r.engine.Generate(context.Background(), request())
	require.NoError(t, err)
	assert.Equal(t, "backup", res.ProviderUsed)

	assert.Equal(t, []string{"cloud"}, r.feedback.refreshed)
	assert.Empty(t, r.feedback.failures)

	records := r.ingestor.all()
	require.Len(t, records, 2)
	assert.Equal(t, api.ClassAuthError, records[0].FailureClass)
}

func TestGenerateRateLimitGivesNoHealthFeedback(t *testing.T) {
	r := newRig(
		[]selector.Candidate{
			candidate("busy", config.CostFree, 0),
			candidate("backup", config.CostFree, 0),
		},
		map[string]*scriptedClient{
			"busy":   {name: "busy", err: &httpclient.UpstreamError{StatusCode: 429, URL: "http://busy"}},
			"backup": {name: "backup", result: &llm.GenerateResult{Content: "ok"}},
		},
	)

	res, err := r.engine.Generate(context.Background(), request())
	require.NoError(t, err)
	assert.Equal(t, "backup", res.ProviderUsed)

	assert.Empty(t, r.feedback.refreshed)
	assert.Empty(t, r.feedback.failures)

	records := r.ingestor.all()
	require.Len(t, records, 2)
	assert.Equal(t, api.ClassRateLimited, records[0].FailureClass)
}

func TestGenerateInvalidRequestIsTerminal(t *testing.T) {
	backup := &scriptedClient{name: "backup", result: &llm.GenerateResult{Content: "never"}}
	r := newRig(
		[]selector.Candidate{
			candidate("strict", config.CostFree, 0),
			candidate("backup", config.CostFree, 0),
		},
		map[string]*scriptedClient{
			"strict": {name: "strict", err: &httpclient.UpstreamError{StatusCode: 422, URL: "http://strict"}},
			"backup": backup,
		},
	)

	_, err := r.engine.Generate(context.Background(), request())
	require.Error(t, err)

	var problem *api.Problem
	require.ErrorAs(t, err, &problem)
	assert.Equal(t, api.CodeInvalidRequest, problem.Code())

	// No fallback after a terminal classification.
	assert.Zero(t, backup.calls)
	require.Len(t, r.ingestor.all(), 1)
}

func TestGenerateAllProvidersFailed(t *testing.T) {
	r := newRig(
		[]selector.Candidate{
			candidate("a", config.CostFree, 0),
			candidate("b", config.CostFree, 0),
		},
		map[string]*scriptedClient{
			"a": {name: "a", err: &httpclient.UpstreamError{StatusCode: 500, URL: "http://a"}},
			"b": {name: "b", err: errors.New("connection refused")},
		},
	)

	_, err := r.engine.Generate(context.Background(), request())
	require.Error(t, err)

	var problem *api.Problem
	require.ErrorAs(t, err, &problem)
	assert.Equal(t, api.CodeAllProvidersFailed, problem.Code())

	attempts, ok := problem.Extensions["attempts"].([]api.AttemptError)
	require.True(t, ok)
	require.Len(t, attempts, 2)
	assert.Equal(t, "a", attempts[0].Provider)
	assert.Equal(t, "b", attempts[1].Provider)

	assert.Len(t, r.ingestor.all(), 2)
}

func TestGenerateNoCandidatesRecordsNothing(t *testing.T) {
	r := newRig(nil, nil)

	_, err := r.engine.Generate(context.Background(), request())
	require.Error(t, err)

	var problem *api.Problem
	require.ErrorAs(t, err, &problem)
	assert.Equal(t, api.CodeNoProviderAvailable, problem.Code())
	assert.Empty(t, r.ingestor.all())
}

func TestGenerateCancelledStopsAndRecords(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	backup := &scriptedClient{name: "backup", result: &llm.GenerateResult{Content: "never"}}

	cancelling := &scriptedClient{name: "slow"}
	cancelling.err = context.Canceled

	r := newRig(
		[]selector.Candidate{
			candidate("slow", config.CostFree, 0),
			candidate("backup", config.CostFree, 0),
		},
		map[string]*scriptedClient{"slow": cancelling, "backup": backup},
	)

	cancel()
	_, err := r.engine.Generate(ctx, request())
	require.Error(t, err)

	var problem *api.Problem
	require.ErrorAs(t, err, &problem)
	assert.Equal(t, api.CodeCancelled, problem.Code())

	assert.Zero(t, backup.calls)
	records := r.ingestor.all()
	require.Len(t, records, 1)
	assert.Equal(t, api.ClassCancelled, records[0].FailureClass)
}

func TestGenerateTimeoutClassCountsAgainstHealth(t *testing.T) {
	r := newRig(
		[]selector.Candidate{
			candidate("slow", config.CostFree, 0),
			candidate("backup", config.CostFree, 0),
		},
		map[string]*scriptedClient{
			"slow":   {name: "slow", err: context.DeadlineExceeded},
			"backup": {name: "backup", result: &llm.GenerateResult{Content: "ok"}},
		},
	)

	res, err := r.engine.Generate(context.Background(), request())
	require.NoError(t, err)
	assert.Equal(t, "backup", res.ProviderUsed)

	assert.Equal(t, []string{"slow"}, r.feedback.failures)
	records := r.ingestor.all()
	require.Len(t, records, 2)
	assert.Equal(t, api.ClassTimeout, records[0].FailureClass)
}

func TestGenerateBatchKeepsItemIndependence(t *testing.T) {
	r := newRig(
		[]selector.Candidate{candidate("p", config.CostFree, 0)},
		map[string]*scriptedClient{
			"p": {name: "p", result: &llm.GenerateResult{Content: "ok", TokensUsed: 3}},
		},
	)

	batch := &api.BatchGenerateRequest{
		Requests: []api.GenerationRequest{
			{Prompt: "one"},
			{Prompt: "two"},
		},
	}
	for i := range batch.Requests {
		batch.Requests[i].Normalize()
	}

	results := r.engine.GenerateBatch(context.Background(), batch)
	require.Len(t, results, 2)
	for i, item := range results {
		assert.Equal(t, i, item.Index)
		require.NotNil(t, item.Result)
		assert.Nil(t, item.Error)
		assert.Equal(t, "ok", item.Result.Content)
	}
}

func TestTestConnection(t *testing.T) {
	r := newRig(
		[]selector.Candidate{candidate("p", config.CostFree, 0)},
		map[string]*scriptedClient{
			"p": {name: "p", result: &llm.GenerateResult{Content: "pong", TokensUsed: 2}},
		},
	)

	res, err := r.engine.TestConnection(context.Background(), "p", "")
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, "p", res.Provider)
	assert.Equal(t, "model-a", res.ModelUsed)
	assert.Equal(t, "pong", res.Response)
	assert.Equal(t, []string{"p"}, r.feedback.refreshed)

	recs := r.ingestor.all()
	require.Len(t, recs, 1)
	assert.True(t, recs[0].Success)
	assert.Equal(t, 2, recs[0].TokensUsed)
}

func TestTestConnectionFailureReported(t *testing.T) {
	r := newRig(
		[]selector.Candidate{candidate("p", config.CostFree, 0)},
		map[string]*scriptedClient{
			"p": {name: "p", err: errors.New("connection refused")},
		},
	)

	res, err := r.engine.TestConnection(context.Background(), "p", "")
	require.NoError(t, err)

	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "connection refused")
}

func TestTestConnectionUnknownProvider(t *testing.T) {
	r := newRig(nil, nil)

	_, err := r.engine.TestConnection(context.Background(), "ghost", "")
	require.Error(t, err)

	var problem *api.Problem
	require.ErrorAs(t, err, &problem)
	assert.Equal(t, api.CodeNotFound, problem.Code())
}
