// Package provider turns configured LLM backends into streaming chat transports.
package provider

import (
	"context"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/opencode-ai/recipechat/pkg/types"
)

// Provider represents an LLM provider with an Eino ChatModel.
type Provider interface {
	// ID returns the provider identifier.
	ID() string

	// Name returns the human-readable provider name.
	Name() string

	// Models returns the list of available models.
	Models() []types.Model

	// ChatModel returns the Eino ChatModel for this provider.
	ChatModel() model.ToolCallingChatModel
}

// CompletionRequest holds per-call generation options.
type CompletionRequest struct {
	MaxTokens   int      `json:"maxTokens,omitempty"`
	Temperature float64  `json:"temperature,omitempty"`
	StopWords   []string `json:"stopWords,omitempty"`
}

func (r *CompletionRequest) options() []model.Option {
	if r == nil {
		return nil
	}
	var opts []model.Option
	if r.MaxTokens > 0 {
		opts = append(opts, model.WithMaxTokens(r.MaxTokens))
	}
	if r.Temperature > 0 {
		opts = append(opts, model.WithTemperature(float32(r.Temperature)))
	}
	if len(r.StopWords) > 0 {
		opts = append(opts, model.WithStop(r.StopWords))
	}
	return opts
}

// ToEinoMessages converts prompt messages to Eino format.
// A trailing empty assistant message marks where the reply goes and is dropped.
func ToEinoMessages(messages []types.Message) []*schema.Message {
	n := len(messages)
	if n > 0 && messages[n-1].Speaker == types.SpeakerAssistant && messages[n-1].Text == "" {
		n--
	}

	result := make([]*schema.Message, 0, n)
	for _, msg := range messages[:n] {
		switch msg.Speaker {
		case types.SpeakerHuman:
			result = append(result, schema.UserMessage(msg.Text))
		default:
			result = append(result, schema.AssistantMessage(msg.Text, nil))
		}
	}
	return result
}

// Complete runs a chat to completion and returns the full reply.
func Complete(ctx context.Context, t Transport, messages []types.Message) (string, error) {
	var text []byte
	done := make(chan error, 1)

	cancel := t.Chat(ctx, messages, Callbacks{
		OnChunk:    func(chunk string) { text = append(text, chunk...) },
		OnComplete: func() { done <- nil },
		OnError:    func(err error, _ int) { done <- err },
	})
	defer cancel()

	select {
	case err := <-done:
		if err != nil {
			return "", err
		}
		return string(text), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
