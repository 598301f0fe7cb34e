package session

import (
	"context"
	"fmt"
	"strings"

	"github.com/opencode-ai/recipechat/internal/codebase"
	"github.com/opencode-ai/recipechat/internal/guardrails"
	"github.com/opencode-ai/recipechat/internal/multiplexer"
	"github.com/opencode-ai/recipechat/internal/plugin"
	"github.com/opencode-ai/recipechat/internal/provider"
	"github.com/opencode-ai/recipechat/internal/recipe"
	"github.com/opencode-ai/recipechat/internal/transcript"
	"github.com/opencode-ai/recipechat/pkg/types"
)

// NetworkErrorText replaces connectivity errors in the transcript.
const NetworkErrorText = "The assistant could not respond due to a network error."

// ExecuteRecipe runs recipe id on humanInput. It returns once the prompt has
// been dispatched; the response streams in the background. An unknown recipe
// and a recipe that declines the input are no-ops.
func (o *Orchestrator) ExecuteRecipe(ctx context.Context, id recipe.ID, humanInput string) error {
	o.mu.Lock()
	if o.busy {
		o.mu.Unlock()
		o.observer.OnError(ErrRecipeInProgress.Error())
		return ErrRecipeInProgress
	}
	r, ok := o.recipes.Get(id)
	if !ok {
		o.mu.Unlock()
		o.log.Debug().Str("recipe", string(id)).Msg("no recipe found")
		return nil
	}

	// the busy flag is taken now so a concurrent call cannot pass the guard
	// while the interaction is being built
	o.busy = true
	prev := o.current
	t := &turn{recipe: id, mux: multiplexer.New()}
	o.current = t
	rc := recipe.Context{
		Editor:           o.editor,
		IntentDetector:   o.intent,
		Codebase:         o.codebase,
		Multiplexer:      t.mux,
		FirstInteraction: o.transcript.IsEmpty(),
	}
	var prevCancel provider.CancelFunc
	if prev != nil {
		prevCancel = prev.cancel
		prev.cancel = nil
	}
	o.mu.Unlock()

	if prevCancel != nil {
		prevCancel()
	}

	interaction, err := r.Interaction(ctx, humanInput, rc)
	if err != nil || interaction == nil {
		o.mu.Lock()
		if o.current == t {
			o.current = nil
			o.busy = false
		}
		o.mu.Unlock()
		if err != nil {
			return fmt.Errorf("recipe %s: %w", id, err)
		}
		o.log.Debug().Str("recipe", string(id)).Msg("recipe declined input")
		return nil
	}

	o.mu.Lock()
	if o.current != t || t.ended {
		o.mu.Unlock()
		return nil
	}
	o.transcript.AddInteraction(interaction)
	t.prefix = interaction.AssistantMessage().Prefix
	cfg := o.cfg
	o.mu.Unlock()
	o.sendTranscript()

	var plugins plugin.Result
	if recipe.UsesPlugins(r) && cfg.PluginsEnabled {
		plugins = o.pluginsContext(ctx, t, interaction.HumanMessage().Text, cfg)
	}

	if recipe.SkipsModel(r) {
		o.completionEnd(t, false)
		return nil
	}

	o.sendTranscript()
	o.mu.Lock()
	if o.current != t || t.ended {
		o.mu.Unlock()
		return nil
	}
	prompt := o.transcript.PromptForLastInteraction(o.preambleLocked(), o.maxPromptTokensLocked(), plugins.PromptMessages, false)
	o.transcript.SetUsedContextFilesForLastInteraction(prompt.ContextFiles, plugins.ExecutionInfos)
	o.mu.Unlock()

	o.dispatch(t, prompt.Messages)
	return o.saveTranscript(ctx)
}

func (o *Orchestrator) preambleLocked() []types.Message {
	return recipe.Preamble(o.cfg.Codebase)
}

func (o *Orchestrator) maxPromptTokensLocked() int {
	serverMax := 0
	if o.auth != nil {
		serverMax = o.auth.CurrentStatus().MaxModelTokens
	}
	return MaxPromptTokens(o.cfg.Limits, serverMax)
}

// pluginsContext asks the model which enabled plugins apply and runs them.
// Failures are logged and yield no extra context.
func (o *Orchestrator) pluginsContext(ctx context.Context, t *turn, humanInput string, cfg *types.Config) plugin.Result {
	if o.plugins == nil {
		return plugin.Result{}
	}
	enabled := o.plugins.Enabled(cfg.EnabledPlugins)
	if len(enabled) == 0 {
		return plugin.Result{}
	}

	if !o.setStatus(t, "Identifying applicable plugins...\n") {
		return plugin.Result{}
	}

	o.mu.Lock()
	prior := o.transcript.PromptForLastInteraction(nil, o.maxPromptTokensLocked(), nil, true).Messages
	o.mu.Unlock()

	descriptors, err := plugin.SelectRelevant(ctx, humanInput, o.transport, enabled, prior)
	if err != nil {
		o.log.Warn().Err(err).Msg("plugin selection failed")
		return plugin.Result{}
	}
	if len(descriptors) == 0 {
		return plugin.Result{}
	}

	names := make([]string, 0, len(descriptors))
	seen := make(map[string]bool)
	for _, d := range descriptors {
		if !seen[d.PluginName] {
			seen[d.PluginName] = true
			names = append(names, d.PluginName)
		}
	}
	if !o.setStatus(t, fmt.Sprintf("Using %s for additional context...\n", strings.Join(names, ", "))) {
		return plugin.Result{}
	}

	res, err := plugin.Run(ctx, descriptors, cfg.Plugins)
	if err != nil {
		o.log.Warn().Err(err).Msg("plugin execution failed")
		return plugin.Result{}
	}
	return res
}

// setStatus shows transient text as the assistant reply of the current turn.
func (o *Orchestrator) setStatus(t *turn, status string) bool {
	o.mu.Lock()
	if o.current != t || t.ended {
		o.mu.Unlock()
		return false
	}
	o.transcript.AddAssistantResponse("", status)
	t.status = true
	o.mu.Unlock()
	o.sendTranscript()
	return true
}

// clearStatusLocked drops status text that no answer has replaced yet.
func (o *Orchestrator) clearStatusLocked(t *turn) {
	if t.status {
		o.transcript.AddAssistantResponse("", "")
		t.status = false
	}
}

// dispatch subscribes the transcript handler and opens the streaming call.
func (o *Orchestrator) dispatch(t *turn, messages []types.Message) {
	var text strings.Builder

	t.mux.Sub(multiplexer.DefaultTopic, multiplexer.Handler{
		OnResponse: func(content string) error {
			text.WriteString(content)
			o.mu.Lock()
			if o.current != t || t.ended {
				o.mu.Unlock()
				return nil
			}
			o.transcript.AddAssistantResponse(text.String(), transcript.ReformatBotMessage(text.String(), t.prefix))
			t.status = false
			chat := o.transcript.ToChat()
			o.mu.Unlock()
			o.observer.OnTranscriptUpdate(chat, true)
			return nil
		},
		OnTurnComplete: func() error {
			o.mu.Lock()
			skip := o.current != t || t.ended || t.aborted
			o.mu.Unlock()
			if skip {
				return nil
			}
			final := text.String()
			o.goBackground(func() { o.finishTurn(t, final) })
			return nil
		},
	})

	mux := t.mux
	cancel := o.transport.Chat(o.ctx, messages, provider.Callbacks{
		OnChunk:    mux.Publish,
		OnComplete: mux.NotifyTurnComplete,
		OnError: func(err error, status int) {
			o.streamError(t, err, status)
		},
	})

	o.mu.Lock()
	if o.current == t && !t.ended {
		t.cancel = cancel
		cancel = nil
	}
	o.mu.Unlock()
	// the turn ended while the call was being opened
	if cancel != nil {
		cancel()
	}
}

// finishTurn annotates the final answer and commits it.
func (o *Orchestrator) finishTurn(t *turn, text string) {
	display := transcript.ReformatBotMessage(text, t.prefix)
	cfg := o.config()
	if cfg.GuardrailsEnabled() && o.guardrails != nil {
		annotated, err := guardrails.Annotate(o.ctx, o.guardrails, display)
		if err != nil {
			o.log.Warn().Err(err).Msg("attribution annotation failed")
		}
		display = annotated
	}

	o.mu.Lock()
	if o.current != t || t.ended {
		o.mu.Unlock()
		return
	}
	o.transcript.AddAssistantResponse(text, display)
	o.mu.Unlock()
	o.completionEnd(t, false)
}

// streamError records a failed turn. Aborts leave no trace in the transcript;
// client-error statuses additionally trigger re-authentication.
func (o *Orchestrator) streamError(t *turn, err error, status int) {
	o.mu.Lock()
	stale := o.current != t || t.ended
	cfg := o.cfg
	o.mu.Unlock()
	if stale {
		return
	}

	if provider.IsAbortError(err) {
		o.log.Debug().Err(err).Msg("completion aborted")
		o.completionEnd(t, true)
		return
	}

	if provider.IsAuthStatus(status) && o.auth != nil {
		o.log.Warn().Int("status", status).Msg("model request unauthorized, re-authenticating")
		o.goBackground(func() {
			if err := o.auth.Reauthenticate(o.ctx, cfg.ServerEndpoint, cfg.AccessToken, cfg.CustomHeaders); err != nil {
				o.log.Error().Err(err).Msg("re-authentication failed")
			}
		})
	}

	message := err.Error()
	if provider.IsNetworkError(err) {
		message = NetworkErrorText
	}
	o.log.Error().Err(err).Int("status", status).Msg("completion request failed")

	o.mu.Lock()
	if o.current != t || t.ended {
		o.mu.Unlock()
		return
	}
	o.clearStatusLocked(t)
	o.transcript.AddErrorAsAssistantResponse(message)
	o.mu.Unlock()
	o.observer.OnTranscriptErrorFlag(true)
	o.completionEnd(t, true)
}

// AbortCompletion cancels the running turn, keeping whatever text has
// streamed so far.
func (o *Orchestrator) AbortCompletion() {
	o.mu.Lock()
	t := o.current
	if t == nil || t.ended {
		o.mu.Unlock()
		return
	}
	t.aborted = true
	cancel := t.cancel
	t.cancel = nil
	o.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	t.mux.NotifyTurnComplete()
	o.completionEnd(t, false)
}

// completionEnd returns the session to idle after a turn. Only the first call
// per turn has an effect. suppressDiagnostics skips surfacing embeddings
// search errors.
func (o *Orchestrator) completionEnd(t *turn, suppressDiagnostics bool) {
	o.mu.Lock()
	if t.ended {
		o.mu.Unlock()
		return
	}
	t.ended = true
	t.cancel = nil
	if o.current == t {
		o.busy = false
		o.clearStatusLocked(t)
	}
	failed := o.transcript.HasError()
	cfg := o.cfg
	o.mu.Unlock()

	if !suppressDiagnostics && o.embeddingsErrors(cfg) {
		failed = true
	}

	o.sendTranscript()
	if err := o.saveTranscript(o.ctx); err != nil {
		o.log.Error().Err(err).Msg("failed to save chat history")
	}
	o.sendHistory()
	o.idle.Schedule()

	if t.recipe == recipe.ChatQuestion && !t.aborted && !failed && cfg.ChatPredictionsEnabled() {
		o.idle.OnIdle(func() {
			o.RunRecipeForSuggestion(o.ctx, recipe.NextQuestions, "")
		})
	}
}

// embeddingsErrors surfaces embeddings search errors as the assistant's
// reply when embeddings are in use and reachable.
func (o *Orchestrator) embeddingsErrors(cfg *types.Config) bool {
	if o.codebase == nil || o.codebase.Mode() != codebase.ModeEmbeddings || !o.codebase.EmbeddingsConnected() {
		return false
	}
	if cfg.UseContext != "" && cfg.UseContext != codebase.ModeEmbeddings {
		return false
	}
	errs := o.codebase.SearchErrors()
	if errs == "" {
		return false
	}
	o.mu.Lock()
	o.transcript.AddErrorAsAssistantResponse(errs)
	o.mu.Unlock()
	o.observer.OnTranscriptErrorFlag(true)
	o.log.Debug().Str("errors", errs).Msg("embeddings search errors")
	return true
}
