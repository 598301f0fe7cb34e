package event

import "github.com/opencode-ai/recipechat/pkg/types"

// TranscriptUpdatedData is the data for transcript.updated events.
type TranscriptUpdatedData struct {
	Messages   []types.ChatMessage `json:"messages"`
	InProgress bool                `json:"inProgress"`
}

// TranscriptErrorData is the data for transcript.error events.
type TranscriptErrorData struct {
	HasError bool `json:"hasError"`
}

// HistoryUpdatedData is the data for history.updated events.
type HistoryUpdatedData struct {
	History types.UserLocalHistory `json:"history"`
}

// SessionErrorData is the data for session.error events.
type SessionErrorData struct {
	Message string `json:"message"`
}

// SuggestionsUpdatedData is the data for suggestions.updated events.
type SuggestionsUpdatedData struct {
	Suggestions []string `json:"suggestions"`
}

// PluginsUpdatedData is the data for plugins.updated events.
type PluginsUpdatedData struct {
	Plugins []string `json:"plugins"`
}

// ConfigReloadedData is the data for config.reloaded events.
type ConfigReloadedData struct {
	Path string `json:"path,omitempty"`
}
