package selector

import (
	"sort"

	"github.com/nulzo/llm-relay/internal/config"
	"github.com/nulzo/llm-relay/internal/health"
	"github.com/nulzo/llm-relay/internal/registry"
	"github.com/nulzo/llm-relay/pkg/api"
)

// Candidate is one (provider, model) pair eligible for a dispatch attempt.
type Candidate struct {
	Provider registry.Provider
	Model    registry.Model
	Health   health.State
}

// HealthSource exposes the committed health snapshot for one provider.
// Satisfied by *health.Monitor.
type HealthSource interface {
	Status(name string) health.Status
}

// Selector ranks eligible provider/model pairs for a task. Ranking is pure
// over the registry and health snapshots, so the same inputs always produce
// the same ordering.
type Selector struct {
	registry *registry.Registry
	health   HealthSource
}

func New(reg *registry.Registry, src HealthSource) *Selector {
	return &Selector{registry: reg, health: src}
}

// Candidates returns the ranked attempt order for a task type. Providers that
// are disabled, unconfigured, or marked unavailable are excluded; a provider
// whose first probe has not completed yet is still eligible, ranked behind
// healthy ones. When preferred names an eligible provider, its candidate is
// promoted to the front; the rest keep their ranked order. An unknown or
// ineligible preferred provider is ignored.
func (s *Selector) Candidates(taskType, preferred string) []Candidate {
	var out []Candidate
	for _, prov := range s.registry.Snapshot() {
		if !prov.Enabled || (prov.RequiresCredential && !prov.Configured) {
			continue
		}
		st := s.health.Status(prov.Name)
		if st.State == health.StateUnavailable {
			continue
		}
		model, ok := pickModel(prov, taskType)
		if !ok {
			continue
		}
		out = append(out, Candidate{Provider: prov, Model: model, Health: st.State})
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if ha, hb := healthRank(a.Health), healthRank(b.Health); ha != hb {
			return ha < hb
		}
		if ca, cb := costRank(a.Provider.CostModel), costRank(b.Provider.CostModel); ca != cb {
			return ca < cb
		}
		if a.Provider.Priority != b.Provider.Priority {
			return a.Provider.Priority < b.Provider.Priority
		}
		return a.Provider.Name < b.Provider.Name
	})

	if preferred != "" {
		for i, c := range out {
			if c.Provider.Name == preferred {
				promoted := out[i]
				copy(out[1:i+1], out[:i])
				out[0] = promoted
				break
			}
		}
	}
	return out
}

// pickModel chooses the provider's model for a task: the first available
// model tagged with the task capability, in catalog order. Tasks with no
// tagged model fall back to general-capability models, so a provider that
// only ships generalists still serves specialized tasks.
func pickModel(prov registry.Provider, taskType string) (registry.Model, bool) {
	if m, ok := firstWithCapability(prov.Models, taskType); ok {
		return m, true
	}
	if taskType != api.TaskGeneral {
		return firstWithCapability(prov.Models, api.TaskGeneral)
	}
	return registry.Model{}, false
}

func firstWithCapability(models []registry.Model, capability string) (registry.Model, bool) {
	for _, m := range models {
		if !m.Available {
			continue
		}
		for _, c := range m.Capabilities {
			if c == capability {
				return m, true
			}
		}
	}
	return registry.Model{}, false
}

func healthRank(s health.State) int {
	if s == health.StateHealthy {
		return 0
	}
	return 1
}

func costRank(model string) int {
	switch model {
	case config.CostFree:
		return 0
	case config.CostPerToken:
		return 1
	default:
		return 2
	}
}
