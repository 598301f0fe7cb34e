package session

import (
	"context"
	"strings"

	"github.com/opencode-ai/recipechat/internal/multiplexer"
	"github.com/opencode-ai/recipechat/internal/provider"
	"github.com/opencode-ai/recipechat/internal/recipe"
)

// RunRecipeForSuggestion runs a recipe on a copy of the transcript and
// publishes the first lines of the answer as suggestions. The session's own
// transcript and state are not touched. Failures are only logged.
func (o *Orchestrator) RunRecipeForSuggestion(ctx context.Context, id recipe.ID, humanInput string) {
	r, ok := o.recipes.Get(id)
	if !ok {
		o.log.Debug().Str("recipe", string(id)).Msg("no suggestion recipe found")
		return
	}

	mux := multiplexer.New()
	o.mu.Lock()
	clone := o.transcript.Clone()
	rc := recipe.Context{
		Editor:           o.editor,
		IntentDetector:   o.intent,
		Codebase:         o.codebase,
		Multiplexer:      mux,
		FirstInteraction: o.transcript.IsEmpty(),
	}
	preamble := o.preambleLocked()
	maxTokens := o.maxPromptTokensLocked()
	o.mu.Unlock()

	interaction, err := r.Interaction(ctx, humanInput, rc)
	if err != nil {
		o.log.Warn().Err(err).Str("recipe", string(id)).Msg("suggestion recipe failed")
		return
	}
	if interaction == nil {
		return
	}
	clone.AddInteraction(interaction)
	prompt := clone.PromptForLastInteraction(preamble, maxTokens, nil, false)
	clone.SetUsedContextFilesForLastInteraction(prompt.ContextFiles, nil)

	var text strings.Builder
	mux.Sub(multiplexer.DefaultTopic, multiplexer.Handler{
		OnResponse: func(content string) error {
			text.WriteString(content)
			return nil
		},
		OnTurnComplete: func() error {
			o.observer.OnSuggestionsUpdate(recipe.ParseSuggestions(text.String()))
			return nil
		},
	})

	o.transport.Chat(o.ctx, prompt.Messages, provider.Callbacks{
		OnChunk:    mux.Publish,
		OnComplete: mux.NotifyTurnComplete,
		OnError: func(err error, status int) {
			o.log.Warn().Err(err).Int("status", status).Msg("suggestion request failed")
		},
	})
}
