package event

import "github.com/opencode-ai/recipechat/pkg/types"

// BusObserver publishes a chat view's notifications on a bus.
type BusObserver struct {
	bus       *Bus
	sessionID string
}

// NewBusObserver creates an observer publishing for sessionID.
func NewBusObserver(bus *Bus, sessionID string) *BusObserver {
	return &BusObserver{bus: bus, sessionID: sessionID}
}

func (o *BusObserver) publish(t EventType, data any) {
	o.bus.PublishSync(Event{Type: t, SessionID: o.sessionID, Data: data})
}

func (o *BusObserver) OnTranscriptUpdate(messages []types.ChatMessage, inProgress bool) {
	o.publish(TranscriptUpdated, TranscriptUpdatedData{Messages: messages, InProgress: inProgress})
}

func (o *BusObserver) OnHistoryUpdate(h types.UserLocalHistory) {
	o.publish(HistoryUpdated, HistoryUpdatedData{History: h})
}

func (o *BusObserver) OnError(message string) {
	o.publish(SessionError, SessionErrorData{Message: message})
}

func (o *BusObserver) OnSuggestionsUpdate(suggestions []string) {
	o.publish(SuggestionsUpdated, SuggestionsUpdatedData{Suggestions: suggestions})
}

func (o *BusObserver) OnEnabledPluginsUpdate(names []string) {
	o.publish(PluginsUpdated, PluginsUpdatedData{Plugins: names})
}

func (o *BusObserver) OnTranscriptErrorFlag(hasError bool) {
	o.publish(TranscriptErrorFlag, TranscriptErrorData{HasError: hasError})
}
