package recipe

import (
	"context"
	"strings"

	"github.com/opencode-ai/recipechat/internal/transcript"
	"github.com/opencode-ai/recipechat/pkg/types"
)

const nextQuestionsPrompt = `Suggest up to three follow-up questions that I might want to ask you next, based on our conversation so far. Keep each question short and on its own line, without numbering or any other text.`

type nextQuestions struct{}

func (*nextQuestions) ID() ID        { return NextQuestions }
func (*nextQuestions) Title() string { return "Suggest Follow-up Questions" }

func (r *nextQuestions) Interaction(_ context.Context, humanInput string, _ Context) (*transcript.Interaction, error) {
	prompt := nextQuestionsPrompt
	if extra := strings.TrimSpace(humanInput); extra != "" {
		prompt += "\n\nFocus on: " + truncateText(extra, MaxHumanInputTokens)
	}
	return transcript.NewInteraction(
		types.InteractionMessage{Text: prompt},
		types.InteractionMessage{},
		nil,
	), nil
}

// ParseSuggestions extracts up to three suggestions from a model reply: the
// first non-empty lines, with any leading "-" bullet removed.
func ParseSuggestions(reply string) []string {
	var out []string
	for _, line := range strings.Split(reply, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimSpace(strings.TrimPrefix(line, "-"))
		if line == "" {
			continue
		}
		out = append(out, line)
		if len(out) == 3 {
			break
		}
	}
	return out
}
