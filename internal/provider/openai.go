package provider

import (
	"context"
	"fmt"
	"os"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"

	"github.com/opencode-ai/recipechat/pkg/types"
)

// OpenAIProvider implements Provider for OpenAI and OpenAI-compatible servers.
type OpenAIProvider struct {
	chatModel model.ToolCallingChatModel
	config    *OpenAIConfig
}

// OpenAIConfig holds configuration for OpenAI provider.
type OpenAIConfig struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
}

// NewOpenAIProvider creates a new OpenAI provider.
func NewOpenAIProvider(ctx context.Context, config *OpenAIConfig) (*OpenAIProvider, error) {
	apiKey := config.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY not set")
	}

	if config.MaxTokens == 0 {
		config.MaxTokens = 4096
	}
	if config.Model == "" {
		config.Model = os.Getenv("OPENAI_MODEL_ID")
	}
	if config.Model == "" {
		config.Model = "gpt-4o"
	}

	maxTokens := config.MaxTokens
	cfg := &openai.ChatModelConfig{
		APIKey:              apiKey,
		Model:               config.Model,
		MaxCompletionTokens: &maxTokens,
	}
	if config.BaseURL != "" {
		cfg.BaseURL = config.BaseURL
	}

	chatModel, err := openai.NewChatModel(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create OpenAI model: %w", err)
	}

	return &OpenAIProvider{chatModel: chatModel, config: config}, nil
}

func (p *OpenAIProvider) ID() string   { return "openai" }
func (p *OpenAIProvider) Name() string { return "OpenAI" }

func (p *OpenAIProvider) Models() []types.Model {
	return withConfigured(openAIModels(), "openai", p.config.Model)
}

func (p *OpenAIProvider) ChatModel() model.ToolCallingChatModel { return p.chatModel }

func openAIModels() []types.Model {
	return []types.Model{
		{ID: "gpt-4o", Name: "GPT-4o", ProviderID: "openai", ContextLength: 128000, MaxOutputTokens: 16384},
		{ID: "gpt-4o-mini", Name: "GPT-4o Mini", ProviderID: "openai", ContextLength: 128000, MaxOutputTokens: 16384},
		{ID: "gpt-5", Name: "GPT-5", ProviderID: "openai", ContextLength: 272000, MaxOutputTokens: 128000},
		{ID: "gpt-5-mini", Name: "GPT-5 Mini", ProviderID: "openai", ContextLength: 272000, MaxOutputTokens: 128000},
	}
}
