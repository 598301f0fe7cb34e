package provider

import (
	"context"
	"fmt"
	"os"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"

	"github.com/opencode-ai/recipechat/pkg/types"
)

// ArkProvider implements Provider for Volcengine ARK endpoints.
type ArkProvider struct {
	chatModel model.ToolCallingChatModel
	config    *ArkConfig
}

// ArkConfig holds configuration for ARK provider.
type ArkConfig struct {
	APIKey    string
	BaseURL   string
	Model     string // Endpoint ID on ARK platform
	MaxTokens int
}

// NewArkProvider creates a new ARK provider.
func NewArkProvider(ctx context.Context, config *ArkConfig) (*ArkProvider, error) {
	apiKey := config.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ARK_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("ARK_API_KEY not set")
	}

	if config.Model == "" {
		config.Model = os.Getenv("ARK_MODEL_ID")
	}
	if config.Model == "" {
		return nil, fmt.Errorf("ARK_MODEL_ID not set")
	}
	if config.BaseURL == "" {
		config.BaseURL = os.Getenv("ARK_BASE_URL")
	}
	if config.MaxTokens == 0 {
		config.MaxTokens = 4096
	}

	maxTokens := config.MaxTokens
	cfg := &ark.ChatModelConfig{
		APIKey:    apiKey,
		Model:     config.Model,
		MaxTokens: &maxTokens,
	}
	if config.BaseURL != "" {
		cfg.BaseURL = config.BaseURL
	}

	chatModel, err := ark.NewChatModel(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create ARK model: %w", err)
	}

	return &ArkProvider{chatModel: chatModel, config: config}, nil
}

func (p *ArkProvider) ID() string   { return "ark" }
func (p *ArkProvider) Name() string { return "ARK" }

// Models returns the single configured endpoint.
func (p *ArkProvider) Models() []types.Model {
	return []types.Model{{
		ID:              p.config.Model,
		Name:            "ARK Model",
		ProviderID:      "ark",
		ContextLength:   128000,
		MaxOutputTokens: p.config.MaxTokens,
	}}
}

func (p *ArkProvider) ChatModel() model.ToolCallingChatModel { return p.chatModel }
