package transcript

import (
	"github.com/opencode-ai/recipechat/pkg/types"
)

// CharsPerToken is the character-to-token ratio used for estimation.
const CharsPerToken = 4

// Prompt is an assembled, token-budgeted prompt.
type Prompt struct {
	Messages     []types.Message
	ContextFiles []types.ContextFile
}

type promptMessage struct {
	types.Message
	file *types.ContextFile
}

// EstimateTokens approximates the token count of text.
func EstimateTokens(text string) int {
	return (len(text) + CharsPerToken - 1) / CharsPerToken
}

// EstimateMessagesTokens sums the estimated tokens of msgs.
func EstimateMessagesTokens(msgs []types.Message) int {
	total := 0
	for _, m := range msgs {
		total += EstimateTokens(m.Text)
	}
	return total
}

// PromptForLastInteraction builds the prompt for the most recent interaction.
//
// Every interaction contributes its context messages followed by its human and
// assistant messages; pluginMessages are placed before the last interaction's
// context. With humanOnly set, context and plugin messages are left out, which
// is used for the cheap plugin-selection call. The messages after the preamble
// are truncated from the oldest end in (human, assistant) pairs so that they fit
// into maxTokens minus the preamble's size. ContextFiles lists the files behind
// the context messages that survived truncation.
func (t *Transcript) PromptForLastInteraction(preamble []types.Message, maxTokens int, pluginMessages []types.Message, humanOnly bool) Prompt {
	if len(t.interactions) == 0 {
		return Prompt{Messages: []types.Message{}, ContextFiles: []types.ContextFile{}}
	}

	var messages []promptMessage
	for idx, i := range t.interactions {
		isLast := idx == len(t.interactions)-1
		var plugins []types.Message
		if isLast && !humanOnly {
			plugins = pluginMessages
		}
		messages = append(messages, i.promptMessages(!humanOnly, plugins)...)
	}

	budget := maxTokens - EstimateMessagesTokens(preamble)
	kept := truncate(messages, budget)

	out := Prompt{
		Messages:     make([]types.Message, 0, len(preamble)+len(kept)),
		ContextFiles: []types.ContextFile{},
	}
	out.Messages = append(out.Messages, preamble...)
	for _, m := range kept {
		if m.file != nil {
			out.ContextFiles = append(out.ContextFiles, *m.file)
		}
		out.Messages = append(out.Messages, m.Message)
	}
	return out
}

// truncate keeps the newest (human, assistant) pairs whose combined estimate
// fits into budget, stopping at the first pair that does not fit.
func truncate(messages []promptMessage, budget int) []promptMessage {
	var kept []promptMessage
	for i := len(messages) - 1; i >= 1; i -= 2 {
		human, bot := messages[i-1], messages[i]
		cost := EstimateTokens(human.Text) + EstimateTokens(bot.Text)
		if cost > budget {
			break
		}
		kept = append(kept, bot, human)
		budget -= cost
	}
	for l, r := 0, len(kept)-1; l < r; l, r = l+1, r-1 {
		kept[l], kept[r] = kept[r], kept[l]
	}
	return kept
}
