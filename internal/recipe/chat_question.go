package recipe

import (
	"context"

	"github.com/opencode-ai/recipechat/internal/codebase"
	"github.com/opencode-ai/recipechat/internal/logging"
	"github.com/opencode-ai/recipechat/internal/transcript"
	"github.com/opencode-ai/recipechat/pkg/types"
)

type chatQuestion struct{}

func (*chatQuestion) ID() ID            { return ChatQuestion }
func (*chatQuestion) Title() string     { return "Chat Question" }
func (*chatQuestion) UsesPlugins() bool { return true }

func (r *chatQuestion) Interaction(ctx context.Context, humanInput string, rc Context) (*transcript.Interaction, error) {
	text := truncateText(humanInput, MaxHumanInputTokens)

	contextMessages, err := r.contextMessages(ctx, text, rc)
	if err != nil {
		return nil, err
	}
	return transcript.NewInteraction(
		types.InteractionMessage{Text: text, DisplayText: humanInput},
		types.InteractionMessage{},
		contextMessages,
	), nil
}

func (r *chatQuestion) contextMessages(ctx context.Context, text string, rc Context) ([]types.ContextMessage, error) {
	var msgs []types.ContextMessage

	if rc.Codebase != nil && r.needsCodebase(ctx, text, rc) {
		found, err := rc.Codebase.ContextMessages(ctx, text, codebase.DefaultSearchOptions)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, found...)
	}

	if rc.Editor != nil && isEditorContextRequired(text) {
		msgs = append(msgs, SelectionContextMessages(rc.Editor.Selection())...)
	}
	return msgs, nil
}

// needsCodebase asks the intent detector; without one, codebase context is
// always gathered. A detector failure counts as "needed".
func (r *chatQuestion) needsCodebase(ctx context.Context, text string, rc Context) bool {
	if rc.IntentDetector == nil {
		return true
	}
	required, err := rc.IntentDetector.IsCodebaseContextRequired(ctx, text)
	if err != nil {
		logging.Warn().Err(err).Msg("intent detection failed")
		return true
	}
	return required
}
