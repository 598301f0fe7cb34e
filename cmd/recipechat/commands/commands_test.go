package commands

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/opencode-ai/recipechat/internal/event"
	"github.com/opencode-ai/recipechat/pkg/types"
)

func TestAnswerWaiterWaitsForSavedChat(t *testing.T) {
	w := &answerWaiter{done: make(chan struct{})}
	closed := func() bool {
		select {
		case <-w.done:
			return true
		default:
			return false
		}
	}

	w.handle(event.Event{Type: event.HistoryUpdated, Data: event.HistoryUpdatedData{}})
	assert.False(t, closed(), "history before the answer must not finish the wait")

	w.handle(event.Event{Type: event.TranscriptUpdated, Data: event.TranscriptUpdatedData{
		Messages:   []types.ChatMessage{{Speaker: types.SpeakerHuman, Text: "hi"}},
		InProgress: true,
	}})
	assert.True(t, w.started)
	assert.False(t, w.finished)

	w.handle(event.Event{Type: event.SessionError, Data: event.SessionErrorData{Message: "search failed"}})
	w.handle(event.Event{Type: event.TranscriptUpdated, Data: event.TranscriptUpdatedData{
		Messages: []types.ChatMessage{
			{Speaker: types.SpeakerHuman, Text: "hi"},
			{Speaker: types.SpeakerAssistant, Text: "Hello"},
		},
	}})
	assert.False(t, closed(), "the chat is not saved yet")

	w.handle(event.Event{Type: event.HistoryUpdated, Data: event.HistoryUpdatedData{}})
	w.handle(event.Event{Type: event.HistoryUpdated, Data: event.HistoryUpdatedData{}})
	assert.True(t, closed())
	assert.Equal(t, "Hello", w.messages[1].Text)
	assert.Equal(t, []string{"search failed"}, w.errors)
}

func TestAnswerTextPrefersDisplayText(t *testing.T) {
	assert.Equal(t, "plain", answerText(types.ChatMessage{Text: "plain"}))
	assert.Equal(t, "```go\nfunc main() {}\n```", answerText(types.ChatMessage{
		Text:        "```\nfunc main() {}\n```",
		DisplayText: "```go\nfunc main() {}\n```",
	}))
}

func TestFirstQuestion(t *testing.T) {
	assert.Empty(t, firstQuestion(types.TranscriptJSON{}))

	display := types.TranscriptJSON{Interactions: []types.InteractionJSON{{
		HumanMessage: types.InteractionMessage{Text: "Explain this code", DisplayText: "Explain the selected code in `add.go`"},
	}}}
	assert.Equal(t, "Explain the selected code in `add.go`", firstQuestion(display))

	long := types.TranscriptJSON{Interactions: []types.InteractionJSON{{
		HumanMessage: types.InteractionMessage{Text: "why\n\n" + strings.Repeat("word ", 30)},
	}}}
	got := firstQuestion(long)
	assert.Len(t, got, 60)
	assert.True(t, strings.HasPrefix(got, "why word"))
	assert.True(t, strings.HasSuffix(got, "..."))
}
