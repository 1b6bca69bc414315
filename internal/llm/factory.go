package llm

import (
	"fmt"
	"sync"

	"github.com/nulzo/llm-relay/internal/config"
)

// Factory builds a Client from its provider configuration.
type Factory func(cfg config.ProviderConfig) (Client, error)

var (
	mu        sync.RWMutex
	factories = make(map[string]Factory)
)

// Register adds a factory for a provider type. Adapters call this from init().
func Register(providerType string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	if _, exists := factories[providerType]; exists {
		panic(fmt.Sprintf("provider factory %s already registered", providerType))
	}
	factories[providerType] = f
}

// Get looks up the factory for a provider type.
func Get(providerType string) (Factory, error) {
	mu.RLock()
	defer mu.RUnlock()
	f, ok := factories[providerType]
	if !ok {
		return nil, fmt.Errorf("provider factory not found for type: %s", providerType)
	}
	return f, nil
}

// New builds a client by looking up the configured type in the registry.
func New(cfg config.ProviderConfig) (Client, error) {
	f, err := Get(cfg.Type)
	if err != nil {
		return nil, fmt.Errorf("factory lookup failed for type %s: %w", cfg.Type, err)
	}
	return f(cfg)
}
