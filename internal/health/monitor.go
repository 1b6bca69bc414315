package health

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/nulzo/llm-relay/internal/config"
	"github.com/nulzo/llm-relay/internal/registry"
	"go.uber.org/zap"
)

type State string

const (
	StateUnknown     State = "unknown"
	StateHealthy     State = "healthy"
	StateDegraded    State = "degraded"
	StateUnavailable State = "unavailable"
)

// Status is the point-in-time health snapshot of one provider. Components
// other than the Monitor only ever read committed snapshots.
type Status struct {
	State               State     `json:"state"`
	Reason              string    `json:"reason,omitempty"`
	LastCheckedAt       time.Time `json:"last_checked_at,omitzero"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	ModelsAvailable     int       `json:"models_available"`
}

// providerState is the single-writer slot for one provider. The mutex
// serializes probe results and dispatch feedback; readers copy the snapshot.
type providerState struct {
	mu       sync.RWMutex
	status   Status
	inFlight bool
}

// Monitor keeps near-real-time health per provider without ever blocking the
// request path: reads are snapshot lookups, probes run on their own
// goroutines.
type Monitor struct {
	registry *registry.Registry
	logger   *zap.Logger

	interval         time.Duration
	probeTimeout     time.Duration
	failureThreshold int

	states map[string]*providerState

	// nowFunc is swappable for tests.
	nowFunc func() time.Time
}

func NewMonitor(reg *registry.Registry, cfg config.HealthConfig, logger *zap.Logger) *Monitor {
	m := &Monitor{
		registry:         reg,
		logger:           logger,
		interval:         time.Duration(cfg.IntervalSeconds * float64(time.Second)),
		probeTimeout:     time.Duration(cfg.ProbeTimeoutSeconds * float64(time.Second)),
		failureThreshold: cfg.FailureThreshold,
		states:           make(map[string]*providerState),
		nowFunc:          time.Now,
	}
	if m.interval <= 0 {
		m.interval = 30 * time.Second
	}
	if m.probeTimeout <= 0 {
		m.probeTimeout = 5 * time.Second
	}
	if m.failureThreshold <= 0 {
		m.failureThreshold = 3
	}

	for _, p := range reg.Snapshot() {
		m.states[p.Name] = &providerState{status: Status{State: StateUnknown}}
	}
	return m
}

// Start launches one probe loop per provider. Loops stop when ctx is done.
func (m *Monitor) Start(ctx context.Context) {
	for name := range m.states {
		go m.loop(ctx, name)
	}
}

func (m *Monitor) loop(ctx context.Context, name string) {
	// Probe once right away so selection has real states shortly after boot.
	m.probe(ctx, name)

	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(jitter(m.interval)):
			m.probe(ctx, name)
		}
	}
}

// jitter spreads probes by ±20% to avoid a thundering herd across providers.
func jitter(d time.Duration) time.Duration {
	delta := float64(d) * 0.2
	return d + time.Duration((rand.Float64()*2-1)*delta)
}

// Status returns the latest committed snapshot for a provider. It never
// triggers a probe.
func (m *Monitor) Status(name string) Status {
	ps, ok := m.states[name]
	if !ok {
		return Status{State: StateUnknown, Reason: "provider not monitored"}
	}
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	return ps.status
}

// StatusAll returns snapshots for every monitored provider.
func (m *Monitor) StatusAll() map[string]Status {
	out := make(map[string]Status, len(m.states))
	for name := range m.states {
		out[name] = m.Status(name)
	}
	return out
}

// ForceRefresh triggers an out-of-cycle probe. Concurrent refreshes for the
// same provider coalesce: at most one probe is in flight per provider.
func (m *Monitor) ForceRefresh(name string) {
	if _, ok := m.states[name]; !ok {
		return
	}
	go m.probe(context.Background(), name)
}

// RecordDispatchFailure feeds a dispatch-path failure into the same
// consecutive-failure accounting as probe failures. Rate-limit responses are
// deliberately not routed here.
func (m *Monitor) RecordDispatchFailure(name, reason string) {
	ps, ok := m.states[name]
	if !ok {
		return
	}
	ps.mu.Lock()
	defer ps.mu.Unlock()
	m.applyFailureLocked(ps, reason)
}

// probe runs one health check and commits the resulting status. Returns
// early when another probe for the same provider is already running.
func (m *Monitor) probe(ctx context.Context, name string) {
	ps, ok := m.states[name]
	if !ok {
		return
	}

	ps.mu.Lock()
	if ps.inFlight {
		ps.mu.Unlock()
		return
	}
	ps.inFlight = true
	ps.mu.Unlock()

	defer func() {
		ps.mu.Lock()
		ps.inFlight = false
		ps.mu.Unlock()
	}()

	prov, err := m.registry.Get(name)
	if err != nil {
		return
	}

	if !prov.Enabled {
		m.commit(ps, Status{
			State:         StateUnavailable,
			Reason:        "provider disabled",
			LastCheckedAt: m.nowFunc(),
		})
		return
	}

	// A cloud provider without its credential is reported unavailable
	// without contacting the endpoint; the config is the problem.
	if prov.RequiresCredential && !prov.Configured {
		m.commit(ps, Status{
			State:         StateUnavailable,
			Reason:        "missing credential",
			LastCheckedAt: m.nowFunc(),
		})
		return
	}

	client, err := m.registry.Client(name)
	if err != nil {
		return
	}

	probeCtx, cancel := context.WithTimeout(ctx, m.probeTimeout)
	models, err := client.ListModels(probeCtx)
	cancel()

	if err != nil {
		ps.mu.Lock()
		m.applyFailureLocked(ps, err.Error())
		st := ps.status
		ps.mu.Unlock()

		m.logger.Warn("Health probe failed",
			zap.String("provider", name),
			zap.String("state", string(st.State)),
			zap.Int("consecutive_failures", st.ConsecutiveFailures),
			zap.Error(err),
		)
		return
	}

	m.registry.UpdateLiveModels(name, models)
	available := m.registry.ModelsAvailable(name)

	next := Status{
		State:           StateHealthy,
		LastCheckedAt:   m.nowFunc(),
		ModelsAvailable: available,
	}
	if available == 0 {
		// Reachable but nothing to serve with.
		next.State = StateDegraded
		next.Reason = "no usable models"
	}
	m.commit(ps, next)
}

// applyFailureLocked increments the failure counter and applies the state
// transition: one failure degrades, threshold consecutive failures mark the
// provider unavailable. Caller holds ps.mu.
func (m *Monitor) applyFailureLocked(ps *providerState, reason string) {
	st := ps.status
	st.ConsecutiveFailures++
	st.Reason = reason
	st.LastCheckedAt = m.nowFunc()
	if st.ConsecutiveFailures >= m.failureThreshold {
		st.State = StateUnavailable
	} else {
		st.State = StateDegraded
	}
	ps.status = st
}

func (m *Monitor) commit(ps *providerState, st Status) {
	ps.mu.Lock()
	ps.status = st
	ps.mu.Unlock()
}
