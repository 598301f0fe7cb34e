package provider

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/opencode-ai/recipechat/internal/logging"
	"github.com/opencode-ai/recipechat/pkg/types"
)

// Registry manages all available providers.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
	config    *types.Config
}

// NewRegistry creates a new provider registry.
func NewRegistry(config *types.Config) *Registry {
	return &Registry{
		providers: make(map[string]Provider),
		config:    config,
	}
}

// Register adds a provider to the registry.
func (r *Registry) Register(provider Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[provider.ID()] = provider
}

// Get retrieves a provider by ID.
func (r *Registry) Get(providerID string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	provider, ok := r.providers[providerID]
	if !ok {
		return nil, fmt.Errorf("provider not found: %s", providerID)
	}
	return provider, nil
}

// List returns all providers sorted by ID.
func (r *Registry) List() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	providers := make([]Provider, 0, len(r.providers))
	for _, p := range r.providers {
		providers = append(providers, p)
	}
	sort.Slice(providers, func(i, j int) bool { return providers[i].ID() < providers[j].ID() })
	return providers
}

// Default returns the provider named by the configured model, or the first
// registered one in preference order.
func (r *Registry) Default() (Provider, error) {
	if r.config != nil && r.config.Model != "" {
		providerID, _ := ParseModelString(r.config.Model)
		if providerID != "" {
			return r.Get(providerID)
		}
	}
	for _, id := range []string{"anthropic", "openai", "ark"} {
		if p, err := r.Get(id); err == nil {
			return p, nil
		}
	}
	providers := r.List()
	if len(providers) == 0 {
		return nil, fmt.Errorf("no providers configured")
	}
	return providers[0], nil
}

// Transport returns a streaming transport over the default provider.
func (r *Registry) Transport() (*EinoTransport, error) {
	p, err := r.Default()
	if err != nil {
		return nil, err
	}
	req := &CompletionRequest{}
	if r.config != nil {
		if cfg, ok := r.config.Provider[p.ID()]; ok {
			req.MaxTokens = cfg.MaxTokens
		}
	}
	return NewTransport(p.ChatModel(), req), nil
}

// ParseModelString parses "provider/model" format.
func ParseModelString(s string) (providerID, modelID string) {
	parts := strings.SplitN(s, "/", 2)
	if len(parts) == 2 {
		return parts[0], parts[1]
	}
	return "", s
}

// InitializeProviders creates and registers every provider that has an API key.
func InitializeProviders(ctx context.Context, config *types.Config) (*Registry, error) {
	registry := NewRegistry(config)
	log := logging.Component("provider")

	modelFor := func(id string, cfg types.ProviderConfig) string {
		if providerID, modelID := ParseModelString(config.Model); providerID == id {
			return modelID
		}
		return cfg.Model
	}

	if cfg, ok := config.Provider["anthropic"]; ok && cfg.APIKey != "" && !cfg.Disable {
		p, err := NewAnthropicProvider(ctx, &AnthropicConfig{
			APIKey:    cfg.APIKey,
			BaseURL:   cfg.BaseURL,
			Model:     modelFor("anthropic", cfg),
			MaxTokens: cfg.MaxTokens,
		})
		if err != nil {
			log.Warn().Err(err).Msg("anthropic provider unavailable")
		} else {
			registry.Register(p)
		}
	}

	if cfg, ok := config.Provider["openai"]; ok && cfg.APIKey != "" && !cfg.Disable {
		p, err := NewOpenAIProvider(ctx, &OpenAIConfig{
			APIKey:    cfg.APIKey,
			BaseURL:   cfg.BaseURL,
			Model:     modelFor("openai", cfg),
			MaxTokens: cfg.MaxTokens,
		})
		if err != nil {
			log.Warn().Err(err).Msg("openai provider unavailable")
		} else {
			registry.Register(p)
		}
	}

	if cfg, ok := config.Provider["ark"]; ok && cfg.APIKey != "" && !cfg.Disable {
		p, err := NewArkProvider(ctx, &ArkConfig{
			APIKey:    cfg.APIKey,
			BaseURL:   cfg.BaseURL,
			Model:     modelFor("ark", cfg),
			MaxTokens: cfg.MaxTokens,
		})
		if err != nil {
			log.Warn().Err(err).Msg("ark provider unavailable")
		} else {
			registry.Register(p)
		}
	}

	return registry, nil
}
