package registry

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/nulzo/llm-relay/internal/config"
	"github.com/nulzo/llm-relay/internal/llm"
	"go.uber.org/zap"
)

const minCredentialLength = 10

// ErrNotFound is returned when a provider name is not registered.
var ErrNotFound = errors.New("provider not found")

// Model is a catalog entry belonging to exactly one provider. Stale models
// are marked unavailable rather than deleted so usage history stays
// attributable.
type Model struct {
	Name               string   `json:"name"`
	ContextLength      int      `json:"context_length,omitempty"`
	Capabilities       []string `json:"capabilities"`
	CostPer1KTokensUSD float64  `json:"cost_per_1k_tokens_usd"`
	Available          bool     `json:"available"`
	SizeBytes          int64    `json:"size_bytes,omitempty"`
}

// Provider is an immutable snapshot of one configured backend. Mutations go
// through the Registry, which swaps whole snapshots; holders of a Provider
// value never observe partial updates.
type Provider struct {
	Name               string  `json:"name"`
	Type               string  `json:"type"`
	Kind               string  `json:"kind"`
	DisplayName        string  `json:"display_name"`
	Description        string  `json:"description,omitempty"`
	SetupURL           string  `json:"setup_url,omitempty"`
	Endpoint           string  `json:"endpoint,omitempty"`
	CostModel          string  `json:"cost_model"`
	Priority           int     `json:"priority"`
	RequiresCredential bool    `json:"requires_credential"`
	Enabled            bool    `json:"enabled"`
	Configured         bool    `json:"configured"`
	Models             []Model `json:"models"`
}

// Free reports whether dispatching to this provider costs nothing.
func (p Provider) Free() bool {
	return p.CostModel == config.CostFree
}

// Model returns the named model and whether it exists in the catalog.
func (p Provider) Model(name string) (Model, bool) {
	for _, m := range p.Models {
		if m.Name == name {
			return m, true
		}
	}
	return Model{}, false
}

type entry struct {
	cfg    config.ProviderConfig
	client llm.Client
}

// Registry is the provider/model catalog. Reads return copy-on-write
// snapshots; configuration changes swap snapshots and take effect for
// subsequent selections without interrupting in-flight dispatches.
type Registry struct {
	logger *zap.Logger

	mu      sync.RWMutex
	entries map[string]*entry
	live    map[string][]llm.Model // last probe result per provider
	snap    []Provider             // rebuilt on every mutation
}

// New builds the registry from configuration and instantiates a client for
// every declared provider. A provider whose client cannot be built is
// rejected outright: that is a config error, not a health condition.
func New(cfgs []config.ProviderConfig, logger *zap.Logger) (*Registry, error) {
	r := &Registry{
		logger:  logger,
		entries: make(map[string]*entry, len(cfgs)),
		live:    make(map[string][]llm.Model),
	}

	for _, cfg := range cfgs {
		if strings.TrimSpace(cfg.Name) == "" {
			return nil, errors.New("provider with empty name in config")
		}
		if _, dup := r.entries[cfg.Name]; dup {
			return nil, fmt.Errorf("duplicate provider name %q", cfg.Name)
		}
		client, err := llm.New(cfg)
		if err != nil {
			return nil, fmt.Errorf("provider %s: %w", cfg.Name, err)
		}
		r.entries[cfg.Name] = &entry{cfg: cfg, client: client}
	}

	r.rebuildSnapshotLocked()
	return r, nil
}

// Snapshot returns all providers sorted by name. The returned slice and its
// contents are never mutated by the registry.
func (r *Registry) Snapshot() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snap
}

// Get returns the provider snapshot by name.
func (r *Registry) Get(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.snap {
		if p.Name == name {
			return p, nil
		}
	}
	return Provider{}, fmt.Errorf("%w: %s", ErrNotFound, name)
}

// Client returns the live client for a provider. Clients are safe for
// concurrent use; a Configure call swaps the client for subsequent callers
// while in-flight requests keep the one they hold.
func (r *Registry) Client(name string) (llm.Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return e.client, nil
}

// Configure updates a provider's credential, enabled flag, and priority.
// A new client is built when the credential changes so the next selection
// uses it immediately.
func (r *Registry) Configure(name, credential string, enabled *bool, priority *int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	if credential != "" {
		if len(strings.TrimSpace(credential)) < minCredentialLength {
			return fmt.Errorf("credential for %s appears to be too short", name)
		}
		e.cfg.Credential = strings.TrimSpace(credential)

		client, err := llm.New(e.cfg)
		if err != nil {
			return fmt.Errorf("rebuilding client for %s: %w", name, err)
		}
		e.client = client
	}
	if enabled != nil {
		e.cfg.Enabled = *enabled
	}
	if priority != nil {
		e.cfg.Priority = *priority
	}

	r.rebuildSnapshotLocked()
	r.logger.Info("Provider reconfigured",
		zap.String("provider", name),
		zap.Bool("enabled", e.cfg.Enabled),
		zap.Bool("configured", e.cfg.Credential != "" || !e.cfg.RequiresCredential),
	)
	return nil
}

// UpdateLiveModels records a probe's model listing. Local providers get
// their catalog from discovery; cloud catalogs are config-declared and only
// gain availability marking. Configured models missing from the listing are
// marked unavailable, never removed.
func (r *Registry) UpdateLiveModels(name string, live []llm.Model) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[name]; !ok {
		return
	}
	r.live[name] = live
	r.rebuildSnapshotLocked()
}

// ModelsAvailable returns the number of currently available models for a
// provider.
func (r *Registry) ModelsAvailable(name string) int {
	p, err := r.Get(name)
	if err != nil {
		return 0
	}
	n := 0
	for _, m := range p.Models {
		if m.Available {
			n++
		}
	}
	return n
}

// rebuildSnapshotLocked recomputes the immutable snapshot. Caller holds mu.
func (r *Registry) rebuildSnapshotLocked() {
	snap := make([]Provider, 0, len(r.entries))
	for name, e := range r.entries {
		snap = append(snap, r.buildProviderLocked(name, e))
	}
	sort.Slice(snap, func(i, j int) bool { return snap[i].Name < snap[j].Name })
	r.snap = snap
}

func (r *Registry) buildProviderLocked(name string, e *entry) Provider {
	cfg := e.cfg
	p := Provider{
		Name:               cfg.Name,
		Type:               cfg.Type,
		Kind:               cfg.Kind,
		DisplayName:        cfg.DisplayName,
		Description:        cfg.Description,
		SetupURL:           cfg.SetupURL,
		Endpoint:           cfg.Endpoint,
		CostModel:          cfg.CostModel,
		Priority:           cfg.Priority,
		RequiresCredential: cfg.RequiresCredential,
		Enabled:            cfg.Enabled,
		Configured:         !cfg.RequiresCredential || cfg.Credential != "",
	}
	if p.DisplayName == "" {
		p.DisplayName = strings.ToUpper(cfg.Name[:1]) + cfg.Name[1:]
	}

	live, probed := r.live[name]
	liveByName := make(map[string]llm.Model, len(live))
	for _, m := range live {
		liveByName[m.Name] = m
	}

	for _, mc := range cfg.Models {
		m := Model{
			Name:               mc.Name,
			ContextLength:      mc.ContextLength,
			Capabilities:       append([]string(nil), mc.Capabilities...),
			CostPer1KTokensUSD: mc.CostPer1KTokensUSD,
			// Until the first probe completes, configured models are
			// assumed present so selection works from startup.
			Available: true,
		}
		if probed {
			if cfg.Kind == config.KindLocal {
				lm, found := liveByName[mc.Name]
				m.Available = found
				m.SizeBytes = lm.SizeBytes
			} else {
				// Cloud listings are authoritative: a declared model absent
				// from the listing is stale, and an empty listing means the
				// account currently serves nothing.
				_, found := liveByName[mc.Name]
				m.Available = found
			}
		}
		p.Models = append(p.Models, m)
		delete(liveByName, mc.Name)
	}

	// Local providers surface models discovered on the daemon that were
	// never declared in config. They carry only the general tag.
	if cfg.Kind == config.KindLocal {
		discovered := make([]Model, 0, len(liveByName))
		for _, lm := range liveByName {
			discovered = append(discovered, Model{
				Name:         lm.Name,
				Capabilities: []string{"general"},
				Available:    true,
				SizeBytes:    lm.SizeBytes,
			})
		}
		sort.Slice(discovered, func(i, j int) bool { return discovered[i].Name < discovered[j].Name })
		p.Models = append(p.Models, discovered...)
	}

	return p
}
