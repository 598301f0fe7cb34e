package types

import "time"

// Speaker identifies who authored a prompt message.
type Speaker string

const (
	SpeakerHuman     Speaker = "human"
	SpeakerAssistant Speaker = "assistant"
)

// Message is a single prompt message exchanged with the model.
type Message struct {
	Speaker Speaker `json:"speaker"`
	Text    string  `json:"text"`
}

// ContextFile identifies a file whose contents were used as prompt context.
type ContextFile struct {
	FileName string `json:"fileName"`
	Repo     string `json:"repoName,omitempty"`
	Revision string `json:"revision,omitempty"`
}

// ContextMessage is a prompt message that carries codebase context.
// File is set when the message was derived from a file in the codebase.
type ContextMessage struct {
	Message
	File *ContextFile `json:"file,omitempty"`
}

// InteractionMessage is a human or assistant message within an interaction.
// DisplayText is what the UI shows; Text is what is sent to the model.
type InteractionMessage struct {
	Speaker     Speaker `json:"speaker"`
	Text        string  `json:"text"`
	DisplayText string  `json:"displayText,omitempty"`
	Prefix      string  `json:"prefix,omitempty"`
	Error       string  `json:"error,omitempty"`
}

// PluginExecutionInfo records one plugin function invocation.
type PluginExecutionInfo struct {
	PluginName string         `json:"pluginName"`
	Name       string         `json:"name"`
	Parameters map[string]any `json:"parameters,omitempty"`
	Output     any            `json:"output,omitempty"`
	Error      string         `json:"error,omitempty"`
}

// ChatMessage is the flattened, display-oriented view of a transcript entry.
type ChatMessage struct {
	Speaker              Speaker               `json:"speaker"`
	Text                 string                `json:"text"`
	DisplayText          string                `json:"displayText,omitempty"`
	Error                string                `json:"error,omitempty"`
	ContextFiles         []ContextFile         `json:"contextFiles,omitempty"`
	PluginExecutionInfos []PluginExecutionInfo `json:"pluginExecutionInfos,omitempty"`
	Timestamp            time.Time             `json:"timestamp"`
}

// InteractionJSON is the serialized form of one interaction.
type InteractionJSON struct {
	HumanMessage         InteractionMessage    `json:"humanMessage"`
	AssistantMessage     InteractionMessage    `json:"assistantMessage"`
	Context              []ContextMessage      `json:"context"`
	UsedContextFiles     []ContextFile         `json:"usedContextFiles"`
	PluginExecutionInfos []PluginExecutionInfo `json:"pluginExecutionInfos"`
	Timestamp            time.Time             `json:"timestamp"`
}

// TranscriptJSON is the serialized form of a transcript.
type TranscriptJSON struct {
	ID                       string            `json:"id"`
	Interactions             []InteractionJSON `json:"interactions"`
	LastInteractionTimestamp time.Time         `json:"lastInteractionTimestamp"`
}

// ChatHistory maps a session identifier to its serialized transcript.
type ChatHistory map[string]TranscriptJSON

// UserLocalHistory is the process-wide chat and input history.
type UserLocalHistory struct {
	Chat  ChatHistory `json:"chat"`
	Input []string    `json:"input"`
}
