package recipe

import (
	"context"
	"fmt"

	"github.com/opencode-ai/recipechat/internal/codebase"
	"github.com/opencode-ai/recipechat/internal/transcript"
	"github.com/opencode-ai/recipechat/pkg/types"
)

const explainPrompt = "Explain the following code at a high level, then walk through what each part does:\n```%s\n%s\n```"

type explainCode struct{}

func (*explainCode) ID() ID        { return ExplainCode }
func (*explainCode) Title() string { return "Explain Selected Code" }

func (r *explainCode) Interaction(ctx context.Context, _ string, rc Context) (*transcript.Interaction, error) {
	if rc.Editor == nil {
		return nil, nil
	}
	sel := rc.Editor.Selection()
	if sel == nil {
		return nil, nil
	}

	code := truncateText(sel.Text, MaxHumanInputTokens)
	var contextMessages []types.ContextMessage
	if rc.Codebase != nil {
		found, err := rc.Codebase.ContextMessages(ctx, code, codebase.DefaultSearchOptions)
		if err != nil {
			return nil, err
		}
		contextMessages = found
	}
	contextMessages = append(contextMessages, SelectionContextMessages(sel)...)

	return transcript.NewInteraction(
		types.InteractionMessage{
			Text:        fmt.Sprintf(explainPrompt, codebase.Language(sel.FileName), code),
			DisplayText: fmt.Sprintf("Explain the selected code in `%s`", sel.FileName),
		},
		types.InteractionMessage{},
		contextMessages,
	), nil
}
