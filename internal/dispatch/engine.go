package dispatch

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nulzo/llm-relay/internal/config"
	"github.com/nulzo/llm-relay/internal/httpclient"
	"github.com/nulzo/llm-relay/internal/ledger"
	"github.com/nulzo/llm-relay/internal/llm"
	"github.com/nulzo/llm-relay/internal/registry"
	"github.com/nulzo/llm-relay/internal/selector"
	"github.com/nulzo/llm-relay/internal/store/model"
	"github.com/nulzo/llm-relay/pkg/api"
)

const testTimeout = 10 * time.Second

// CandidateSource produces the ranked attempt order for a task. Satisfied
// by *selector.Selector.
type CandidateSource interface {
	Candidates(taskType, preferred string) []selector.Candidate
}

// ClientSource resolves providers and their live clients. Satisfied by
// *registry.Registry.
type ClientSource interface {
	Get(name string) (registry.Provider, error)
	Client(name string) (llm.Client, error)
}

// HealthFeedback receives dispatch-path outcomes. Satisfied by
// *health.Monitor.
type HealthFeedback interface {
	ForceRefresh(name string)
	RecordDispatchFailure(name, reason string)
}

// Engine runs the dispatch loop: rank candidates, try them in order, record
// every attempt. Candidates are tried serially so a cheap healthy provider
// is never raced against an expensive one.
type Engine struct {
	selector CandidateSource
	registry ClientSource
	monitor  HealthFeedback
	ingestor ledger.Ingestor
	logger   *zap.Logger

	attemptTimeout time.Duration
}

func NewEngine(
	sel CandidateSource,
	reg ClientSource,
	mon HealthFeedback,
	ing ledger.Ingestor,
	cfg config.DispatchConfig,
	logger *zap.Logger,
) *Engine {
	timeout := time.Duration(cfg.AttemptTimeoutSeconds * float64(time.Second))
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Engine{
		selector:       sel,
		registry:       reg,
		monitor:        mon,
		ingestor:       ing,
		logger:         logger,
		attemptTimeout: timeout,
	}
}

// Generate dispatches one request, falling back through ranked candidates
// until one succeeds or a terminal condition stops the loop. Every attempt
// that reaches a provider leaves a usage record; failing to find any
// candidate records nothing.
func (e *Engine) Generate(ctx context.Context, req *api.GenerationRequest) (*api.GenerationResult, error) {
	candidates := e.selector.Candidates(req.TaskType, req.PreferredProvider)
	if len(candidates) == 0 {
		return nil, api.NoProviderAvailableError()
	}

	if req.TimeoutSeconds > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(req.TimeoutSeconds*float64(time.Second)))
		defer cancel()
	}

	var attempts []api.AttemptError

	for i, cand := range candidates {
		result, elapsed, err := e.attempt(ctx, cand, req)
		if err == nil {
			cost := attemptCost(cand, result.TokensUsed)
			e.record(cand, req, result.TokensUsed, cost, elapsed, i > 0, true, "")
			if i > 0 {
				e.logger.Info("Dispatch succeeded after fallback",
					zap.String("provider", cand.Provider.Name),
					zap.Int("fallback_count", i),
				)
			}
			return &api.GenerationResult{
				Content:             result.Content,
				ProviderUsed:        cand.Provider.Name,
				ModelUsed:           cand.Model.Name,
				TokensUsed:          result.TokensUsed,
				CostUSD:             cost,
				ResponseTimeSeconds: elapsed.Seconds(),
				FallbackCount:       i,
			}, nil
		}

		class := classify(ctx, err)
		e.record(cand, req, 0, 0, elapsed, i > 0, false, class)
		attempts = append(attempts, api.AttemptError{
			Provider: cand.Provider.Name,
			Model:    cand.Model.Name,
			Class:    class,
			Message:  err.Error(),
		})

		e.logger.Warn("Dispatch attempt failed",
			zap.String("provider", cand.Provider.Name),
			zap.String("model", cand.Model.Name),
			zap.String("class", class),
			zap.Error(err),
		)

		switch class {
		case api.ClassCancelled:
			return nil, api.CancelledError()
		case api.ClassInvalidRequest:
			return nil, api.InvalidRequestError(
				fmt.Sprintf("provider %s rejected the request: %s", cand.Provider.Name, err.Error()))
		case api.ClassAuthError:
			// A credential problem is a config-level event, not a
			// transient fault: reassess immediately instead of counting
			// toward the failure threshold.
			e.monitor.ForceRefresh(cand.Provider.Name)
		case api.ClassRateLimited:
			// Being throttled says nothing about provider health.
		default:
			e.monitor.RecordDispatchFailure(cand.Provider.Name, err.Error())
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			if errors.Is(ctxErr, context.DeadlineExceeded) {
				return nil, api.TimeoutError("request timed out before any provider responded")
			}
			return nil, api.CancelledError()
		}
	}

	return nil, api.AllProvidersFailedError(attempts)
}

// GenerateBatch runs the items concurrently; each item gets its own full
// dispatch loop and its own slot in the response.
func (e *Engine) GenerateBatch(ctx context.Context, batch *api.BatchGenerateRequest) []api.BatchItemResult {
	results := make([]api.BatchItemResult, len(batch.Requests))

	var wg sync.WaitGroup
	for idx := range batch.Requests {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := batch.Requests[i]
			res, err := e.Generate(ctx, &req)
			item := api.BatchItemResult{Index: i, Result: res}
			if err != nil {
				var problem *api.Problem
				if !errors.As(err, &problem) {
					problem = api.InternalError("dispatch failed", err)
				}
				item.Error = problem
			}
			results[i] = item
		}(idx)
	}
	wg.Wait()

	return results
}

// TestConnection sends a tiny prompt straight to one provider, bypassing
// selection and fallback. The outcome feeds back into the health monitor via
// a forced probe.
func (e *Engine) TestConnection(ctx context.Context, providerName, prompt string) (*api.TestConnectionResult, error) {
	prov, err := e.registry.Get(providerName)
	if err != nil {
		return nil, api.NotFoundError(fmt.Sprintf("unknown provider %q", providerName))
	}
	if prov.RequiresCredential && !prov.Configured {
		return nil, api.ConfigurationError(
			fmt.Sprintf("provider %s has no credential configured", providerName))
	}

	modelName := ""
	for _, m := range prov.Models {
		if m.Available {
			modelName = m.Name
			break
		}
	}
	if modelName == "" && len(prov.Models) > 0 {
		modelName = prov.Models[0].Name
	}
	if modelName == "" {
		return nil, api.ConfigurationError(
			fmt.Sprintf("provider %s has no models to test against", providerName))
	}

	if prompt == "" {
		prompt = "Reply with a one-word greeting."
	}

	client, err := e.registry.Client(providerName)
	if err != nil {
		return nil, api.InternalError("provider client unavailable", err)
	}

	testCtx, cancel := context.WithTimeout(ctx, testTimeout)
	defer cancel()

	start := time.Now()
	result, err := client.Generate(testCtx, llm.GenerateParams{
		Model:       modelName,
		Prompt:      prompt,
		MaxTokens:   50,
		Temperature: api.DefaultTemperature,
	})
	elapsed := time.Since(start)

	e.monitor.ForceRefresh(providerName)

	out := &api.TestConnectionResult{
		Provider:       providerName,
		ModelUsed:      modelName,
		LatencySeconds: elapsed.Seconds(),
	}
	rec := &model.UsageRecord{
		ID:                  uuid.NewString(),
		ProviderName:        providerName,
		ModelName:           modelName,
		TaskType:            api.TaskGeneral,
		ResponseTimeSeconds: elapsed.Seconds(),
		CreatedAt:           time.Now().UTC(),
	}
	if err != nil {
		out.Error = err.Error()
		rec.FailureClass = classify(ctx, err)
		e.ingestor.Record(rec)
		return out, nil
	}
	out.Success = true
	out.TokensUsed = result.TokensUsed
	out.Response = result.Content
	rec.Success = true
	rec.TokensUsed = result.TokensUsed
	e.ingestor.Record(rec)
	return out, nil
}

func (e *Engine) attempt(ctx context.Context, cand selector.Candidate, req *api.GenerationRequest) (*llm.GenerateResult, time.Duration, error) {
	client, err := e.registry.Client(cand.Provider.Name)
	if err != nil {
		return nil, 0, err
	}

	attemptCtx, cancel := context.WithTimeout(ctx, e.attemptTimeout)
	defer cancel()

	temperature := api.DefaultTemperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}

	start := time.Now()
	result, err := client.Generate(attemptCtx, llm.GenerateParams{
		Model:       cand.Model.Name,
		Prompt:      req.Prompt,
		MaxTokens:   req.MaxTokens,
		Temperature: temperature,
	})
	return result, time.Since(start), err
}

func (e *Engine) record(cand selector.Candidate, req *api.GenerationRequest, tokens int, cost float64, elapsed time.Duration, fallback, success bool, class string) {
	e.ingestor.Record(&model.UsageRecord{
		ID:                  uuid.NewString(),
		ProviderName:        cand.Provider.Name,
		ModelName:           cand.Model.Name,
		TaskType:            req.TaskType,
		TokensUsed:          tokens,
		CostUSD:             cost,
		ResponseTimeSeconds: elapsed.Seconds(),
		WasFallback:         fallback,
		Success:             success,
		FailureClass:        class,
		CreatedAt:           time.Now().UTC(),
	})
}

// attemptCost prices a successful attempt. Free providers always cost zero;
// subscription providers have no marginal per-request cost either.
func attemptCost(cand selector.Candidate, tokens int) float64 {
	if cand.Provider.CostModel != config.CostPerToken {
		return 0
	}
	return float64(tokens) / 1000.0 * cand.Model.CostPer1KTokensUSD
}

// classify maps an attempt error onto a failure class. The parent context is
// consulted first so a caller hangup is never misread as a provider fault.
func classify(parent context.Context, err error) string {
	if errors.Is(parent.Err(), context.Canceled) || errors.Is(err, context.Canceled) {
		return api.ClassCancelled
	}

	var upstream *httpclient.UpstreamError
	if errors.As(err, &upstream) {
		switch upstream.StatusCode {
		case 401, 403:
			return api.ClassAuthError
		case 429:
			return api.ClassRateLimited
		case 400, 404, 413, 422:
			return api.ClassInvalidRequest
		default:
			return api.ClassTransientError
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return api.ClassTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return api.ClassTimeout
	}

	return api.ClassTransientError
}
