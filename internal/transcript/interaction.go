package transcript

import (
	"time"

	"github.com/opencode-ai/recipechat/pkg/types"
)

// Interaction is one human turn and the assistant's, possibly partial, reply.
type Interaction struct {
	human     types.InteractionMessage
	assistant types.InteractionMessage

	context          []types.ContextMessage
	usedContextFiles []types.ContextFile
	executionInfos   []types.PluginExecutionInfo

	timestamp time.Time
}

// NewInteraction creates an interaction stamped with the current time.
func NewInteraction(human, assistant types.InteractionMessage, context []types.ContextMessage) *Interaction {
	human.Speaker = types.SpeakerHuman
	assistant.Speaker = types.SpeakerAssistant
	return &Interaction{
		human:     human,
		assistant: assistant,
		context:   append([]types.ContextMessage(nil), context...),
		timestamp: time.Now().UTC(),
	}
}

// HumanMessage returns the human side of the interaction.
func (i *Interaction) HumanMessage() types.InteractionMessage { return i.human }

// AssistantMessage returns the assistant side of the interaction.
func (i *Interaction) AssistantMessage() types.InteractionMessage { return i.assistant }

// SetAssistantMessage replaces the assistant message, keeping the recipe's prefix
// when the new message does not carry one.
func (i *Interaction) SetAssistantMessage(msg types.InteractionMessage) {
	msg.Speaker = types.SpeakerAssistant
	if msg.Prefix == "" {
		msg.Prefix = i.assistant.Prefix
	}
	i.assistant = msg
}

// Context returns the context messages gathered for this interaction.
func (i *Interaction) Context() []types.ContextMessage { return i.context }

// UsedContextFiles returns the files that made it into the prompt.
func (i *Interaction) UsedContextFiles() []types.ContextFile { return i.usedContextFiles }

// ExecutionInfos returns the plugin executions attached to this interaction.
func (i *Interaction) ExecutionInfos() []types.PluginExecutionInfo { return i.executionInfos }

// Timestamp returns when the interaction was created.
func (i *Interaction) Timestamp() time.Time { return i.timestamp }

func (i *Interaction) setUsedContext(files []types.ContextFile, infos []types.PluginExecutionInfo) {
	i.usedContextFiles = append([]types.ContextFile(nil), files...)
	if infos != nil {
		i.executionInfos = append([]types.PluginExecutionInfo(nil), infos...)
	}
}

// promptMessages returns the messages this interaction contributes to a prompt.
func (i *Interaction) promptMessages(includeContext bool, pluginMessages []types.Message) []promptMessage {
	var out []promptMessage
	for _, m := range pluginMessages {
		out = append(out, promptMessage{Message: m})
	}
	if includeContext {
		for _, c := range i.context {
			out = append(out, promptMessage{Message: c.Message, file: c.File})
		}
	}
	out = append(out,
		promptMessage{Message: types.Message{Speaker: types.SpeakerHuman, Text: i.human.Text}},
		promptMessage{Message: types.Message{Speaker: types.SpeakerAssistant, Text: i.assistant.Text}},
	)
	return out
}

func (i *Interaction) toChat() []types.ChatMessage {
	return []types.ChatMessage{
		{
			Speaker:     types.SpeakerHuman,
			Text:        i.human.Text,
			DisplayText: i.human.DisplayText,
			Timestamp:   i.timestamp,
		},
		{
			Speaker:              types.SpeakerAssistant,
			Text:                 i.assistant.Text,
			DisplayText:          i.assistant.DisplayText,
			Error:                i.assistant.Error,
			ContextFiles:         append([]types.ContextFile(nil), i.usedContextFiles...),
			PluginExecutionInfos: append([]types.PluginExecutionInfo(nil), i.executionInfos...),
			Timestamp:            i.timestamp,
		},
	}
}

func (i *Interaction) toJSON() types.InteractionJSON {
	return types.InteractionJSON{
		HumanMessage:         i.human,
		AssistantMessage:     i.assistant,
		Context:              copyContext(i.context),
		UsedContextFiles:     append([]types.ContextFile{}, i.usedContextFiles...),
		PluginExecutionInfos: append([]types.PluginExecutionInfo{}, i.executionInfos...),
		Timestamp:            i.timestamp,
	}
}

func interactionFromJSON(j types.InteractionJSON) *Interaction {
	ts := j.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return &Interaction{
		human:            j.HumanMessage,
		assistant:        j.AssistantMessage,
		context:          copyContext(j.Context),
		usedContextFiles: append([]types.ContextFile(nil), j.UsedContextFiles...),
		executionInfos:   append([]types.PluginExecutionInfo(nil), j.PluginExecutionInfos...),
		timestamp:        ts,
	}
}

func copyContext(in []types.ContextMessage) []types.ContextMessage {
	out := make([]types.ContextMessage, len(in))
	for idx, c := range in {
		out[idx] = c
		if c.File != nil {
			f := *c.File
			out[idx].File = &f
		}
	}
	return out
}
