package session

import "github.com/opencode-ai/recipechat/pkg/types"

// Observer receives a session's notifications. Calls are one-way and must
// return quickly; an observer must not call back into the Orchestrator.
type Observer interface {
	OnTranscriptUpdate(messages []types.ChatMessage, inProgress bool)
	OnHistoryUpdate(history types.UserLocalHistory)
	OnError(message string)
	OnSuggestionsUpdate(suggestions []string)
	OnEnabledPluginsUpdate(names []string)
	OnTranscriptErrorFlag(hasError bool)
}

type nopObserver struct{}

func (nopObserver) OnTranscriptUpdate([]types.ChatMessage, bool) {}
func (nopObserver) OnHistoryUpdate(types.UserLocalHistory)       {}
func (nopObserver) OnError(string)                               {}
func (nopObserver) OnSuggestionsUpdate([]string)                 {}
func (nopObserver) OnEnabledPluginsUpdate([]string)              {}
func (nopObserver) OnTranscriptErrorFlag(bool)                   {}
