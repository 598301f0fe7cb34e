package provider

import (
	"context"
	"fmt"
	"os"

	"github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino/components/model"

	"github.com/opencode-ai/recipechat/pkg/types"
)

// AnthropicProvider implements Provider for Anthropic Claude models.
type AnthropicProvider struct {
	chatModel model.ToolCallingChatModel
	config    *AnthropicConfig
}

// AnthropicConfig holds configuration for Anthropic provider.
type AnthropicConfig struct {
	APIKey    string
	BaseURL   string
	Model     string // e.g. "claude-sonnet-4-20250514"
	MaxTokens int
}

// NewAnthropicProvider creates a new Anthropic provider.
func NewAnthropicProvider(ctx context.Context, config *AnthropicConfig) (*AnthropicProvider, error) {
	apiKey := config.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("ANTHROPIC_API_KEY not set")
	}

	if config.Model == "" {
		config.Model = "claude-sonnet-4-20250514"
	}
	if config.MaxTokens == 0 {
		config.MaxTokens = 4096
	}

	cfg := &claude.Config{
		APIKey:    apiKey,
		Model:     config.Model,
		MaxTokens: config.MaxTokens,
	}
	if config.BaseURL != "" {
		cfg.BaseURL = &config.BaseURL
	}

	chatModel, err := claude.NewChatModel(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Claude model: %w", err)
	}

	return &AnthropicProvider{chatModel: chatModel, config: config}, nil
}

func (p *AnthropicProvider) ID() string   { return "anthropic" }
func (p *AnthropicProvider) Name() string { return "Anthropic" }

// Models returns the known Claude models; the configured one comes first.
func (p *AnthropicProvider) Models() []types.Model {
	return withConfigured(anthropicModels(), "anthropic", p.config.Model)
}

func (p *AnthropicProvider) ChatModel() model.ToolCallingChatModel { return p.chatModel }

func anthropicModels() []types.Model {
	return []types.Model{
		{ID: "claude-sonnet-4-20250514", Name: "Claude Sonnet 4", ProviderID: "anthropic", ContextLength: 200000, MaxOutputTokens: 64000},
		{ID: "claude-opus-4-20250514", Name: "Claude Opus 4", ProviderID: "anthropic", ContextLength: 200000, MaxOutputTokens: 32000},
		{ID: "claude-3-5-haiku-20241022", Name: "Claude 3.5 Haiku", ProviderID: "anthropic", ContextLength: 200000, MaxOutputTokens: 8192},
		{ID: "claude-haiku-4-5", Name: "Claude 4.5 Haiku", ProviderID: "anthropic", ContextLength: 200000, MaxOutputTokens: 8192},
	}
}

// withConfigured moves modelID to the front of models, adding it when unknown.
func withConfigured(models []types.Model, providerID, modelID string) []types.Model {
	for i, m := range models {
		if m.ID == modelID {
			out := append([]types.Model{m}, models[:i]...)
			return append(out, models[i+1:]...)
		}
	}
	if modelID == "" {
		return models
	}
	custom := types.Model{ID: modelID, Name: modelID, ProviderID: providerID}
	return append([]types.Model{custom}, models...)
}
