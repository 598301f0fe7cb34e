// Package transcript holds the ordered interactions of one chat session and
// assembles token-budgeted prompts from them.
//
// A Transcript is not safe for concurrent use; the owning session serializes
// access to it.
package transcript

import (
	"time"

	"github.com/opencode-ai/recipechat/pkg/types"
)

// ServerErrorText is recorded as the assistant text of a failed turn.
const ServerErrorText = "Failed to generate a response due to server error."

// Transcript is an ordered sequence of interactions.
type Transcript struct {
	id           string
	interactions []*Interaction
}

// New creates an empty transcript with the given session id.
func New(id string) *Transcript {
	return &Transcript{id: id}
}

// FromJSON rebuilds a transcript from its serialized form.
func FromJSON(j types.TranscriptJSON) *Transcript {
	t := &Transcript{id: j.ID}
	for _, ij := range j.Interactions {
		t.interactions = append(t.interactions, interactionFromJSON(ij))
	}
	return t
}

// ToJSON serializes the transcript. The result shares no memory with t.
func (t *Transcript) ToJSON() types.TranscriptJSON {
	out := types.TranscriptJSON{
		ID:           t.id,
		Interactions: make([]types.InteractionJSON, 0, len(t.interactions)),
	}
	for _, i := range t.interactions {
		out.Interactions = append(out.Interactions, i.toJSON())
	}
	if last := t.LastInteraction(); last != nil {
		out.LastInteractionTimestamp = last.timestamp
	} else {
		out.LastInteractionTimestamp = time.Now().UTC()
	}
	return out
}

// Clone returns a deep copy made by a serialize/deserialize round trip.
func (t *Transcript) Clone() *Transcript {
	return FromJSON(t.ToJSON())
}

// ID returns the session id the transcript is stored under.
func (t *Transcript) ID() string { return t.id }

// SetID changes the session id.
func (t *Transcript) SetID(id string) { t.id = id }

// IsEmpty reports whether the transcript has no interactions.
func (t *Transcript) IsEmpty() bool { return len(t.interactions) == 0 }

// Len returns the number of interactions.
func (t *Transcript) Len() int { return len(t.interactions) }

// Interactions returns the interactions in order.
func (t *Transcript) Interactions() []*Interaction {
	return append([]*Interaction(nil), t.interactions...)
}

// AddInteraction appends an interaction. A nil interaction is ignored.
func (t *Transcript) AddInteraction(i *Interaction) {
	if i == nil {
		return
	}
	t.interactions = append(t.interactions, i)
}

// LastInteraction returns the most recent interaction, or nil.
func (t *Transcript) LastInteraction() *Interaction {
	if len(t.interactions) == 0 {
		return nil
	}
	return t.interactions[len(t.interactions)-1]
}

// RemoveLastInteraction drops the most recent interaction.
func (t *Transcript) RemoveLastInteraction() {
	if len(t.interactions) > 0 {
		t.interactions = t.interactions[:len(t.interactions)-1]
	}
}

// Reset removes every interaction. The id is kept.
func (t *Transcript) Reset() {
	t.interactions = nil
}

// AddAssistantResponse sets the assistant reply of the last interaction.
// An empty displayText shows text as-is.
func (t *Transcript) AddAssistantResponse(text, displayText string) {
	last := t.LastInteraction()
	if last == nil {
		return
	}
	if displayText == "" {
		displayText = text
	}
	last.SetAssistantMessage(types.InteractionMessage{
		Speaker:     types.SpeakerAssistant,
		Text:        text,
		DisplayText: displayText,
	})
}

// AddErrorAsAssistantResponse records errText as the failure of the last
// interaction, appended below whatever the assistant had already shown.
func (t *Transcript) AddErrorAsAssistantResponse(errText string) {
	last := t.LastInteraction()
	if last == nil {
		return
	}
	shown := last.assistant.DisplayText
	if shown != "" {
		shown += "\n\n"
	}
	last.SetAssistantMessage(types.InteractionMessage{
		Speaker:     types.SpeakerAssistant,
		Text:        ServerErrorText,
		DisplayText: shown + "Request failed: " + errText,
		Error:       errText,
	})
}

// SetUsedContextFilesForLastInteraction records which context files made it into
// the prompt and the plugin executions that contributed to it.
func (t *Transcript) SetUsedContextFilesForLastInteraction(files []types.ContextFile, infos []types.PluginExecutionInfo) {
	if last := t.LastInteraction(); last != nil {
		last.setUsedContext(files, infos)
	}
}

// ToChat flattens the transcript into display messages.
func (t *Transcript) ToChat() []types.ChatMessage {
	out := make([]types.ChatMessage, 0, 2*len(t.interactions))
	for _, i := range t.interactions {
		out = append(out, i.toChat()...)
	}
	return out
}

// HasError reports whether the last interaction ended in an error.
func (t *Transcript) HasError() bool {
	last := t.LastInteraction()
	return last != nil && last.assistant.Error != ""
}
