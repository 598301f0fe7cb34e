package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/opencode-ai/recipechat/internal/auth"
	"github.com/opencode-ai/recipechat/internal/codebase"
	"github.com/opencode-ai/recipechat/internal/guardrails"
	"github.com/opencode-ai/recipechat/internal/history"
	"github.com/opencode-ai/recipechat/internal/idle"
	"github.com/opencode-ai/recipechat/internal/logging"
	"github.com/opencode-ai/recipechat/internal/multiplexer"
	"github.com/opencode-ai/recipechat/internal/plugin"
	"github.com/opencode-ai/recipechat/internal/provider"
	"github.com/opencode-ai/recipechat/internal/recipe"
	"github.com/opencode-ai/recipechat/internal/transcript"
	"github.com/opencode-ai/recipechat/pkg/types"
)

// Authenticator re-validates credentials after the model endpoint rejects them.
type Authenticator interface {
	Reauthenticate(ctx context.Context, endpoint, token string, headers map[string]string) error
	CurrentStatus() auth.Status
}

// Options are the collaborators of an Orchestrator. Transport, Recipes and
// History are required.
type Options struct {
	Config     *types.Config
	Transport  provider.Transport
	Recipes    *recipe.Registry
	History    *history.Store
	Plugins    *plugin.Catalog
	Auth       Authenticator
	Guardrails guardrails.Searcher
	Codebase   *codebase.Context
	Editor     recipe.Editor
	Intent     recipe.IntentDetector
	Observer   Observer

	// IdleInterval is the idle scheduler polling interval.
	IdleInterval time.Duration
	// NewChatID generates chat ids. Defaults to ULIDs.
	NewChatID func() string
}

// Orchestrator runs recipes for one chat view.
//
// It owns the view's transcript and the busy/idle state: at most one recipe
// runs at a time. The mutex is never held while calling the transport, a
// multiplexer, the idle scheduler or the observer.
type Orchestrator struct {
	transport  provider.Transport
	recipes    *recipe.Registry
	history    *history.Store
	plugins    *plugin.Catalog
	auth       Authenticator
	guardrails guardrails.Searcher
	codebase   *codebase.Context
	intent     recipe.IntentDetector
	observer   Observer
	newChatID  func() string

	idle *idle.Scheduler

	// ctx scopes streaming calls and background work; cancelled by Close.
	ctx    context.Context
	stop   context.CancelFunc
	wg     sync.WaitGroup
	closed bool

	mu         sync.Mutex
	cfg        *types.Config
	editor     recipe.Editor
	transcript *transcript.Transcript
	busy       bool
	current    *turn

	log zerolog.Logger
}

// turn is one dispatched recipe. Handlers capture their turn and ignore events
// once it is no longer current or has ended.
type turn struct {
	recipe  recipe.ID
	mux     *multiplexer.Multiplexer
	cancel  provider.CancelFunc
	prefix  string
	aborted bool
	ended   bool
	status  bool // status text stands in for the reply
}

// New creates an orchestrator with an empty transcript.
func New(opts Options) *Orchestrator {
	cfg := opts.Config
	if cfg == nil {
		cfg = &types.Config{}
	}
	observer := opts.Observer
	if observer == nil {
		observer = nopObserver{}
	}
	newChatID := opts.NewChatID
	if newChatID == nil {
		newChatID = func() string { return ulid.Make().String() }
	}

	ctx, stop := context.WithCancel(context.Background())
	o := &Orchestrator{
		transport:  opts.Transport,
		recipes:    opts.Recipes,
		history:    opts.History,
		plugins:    opts.Plugins,
		auth:       opts.Auth,
		guardrails: opts.Guardrails,
		codebase:   opts.Codebase,
		intent:     opts.Intent,
		observer:   observer,
		newChatID:  newChatID,
		ctx:        ctx,
		stop:       stop,
		cfg:        cfg,
		editor:     opts.Editor,
		log:        logging.Component("session"),
	}
	o.transcript = transcript.New(newChatID())
	o.idle = idle.New(o.IsIdle, opts.IdleInterval)
	return o
}

// Init loads the shared history, publishes the initial state and restores the
// most recent chat.
func (o *Orchestrator) Init(ctx context.Context) error {
	if err := o.history.Load(ctx); err != nil {
		return err
	}
	o.sendTranscript()
	o.sendHistory()
	o.observer.OnEnabledPluginsUpdate(o.config().EnabledPlugins)

	if recent, ok := o.history.MostRecent(); ok {
		return o.RestoreSession(ctx, recent.ID)
	}
	return nil
}

// ChatID returns the id the current transcript is stored under.
func (o *Orchestrator) ChatID() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.transcript.ID()
}

// IsIdle reports whether no recipe is running.
func (o *Orchestrator) IsIdle() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return !o.busy
}

// Transcript returns the current transcript as display messages.
func (o *Orchestrator) Transcript() []types.ChatMessage {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.transcript.ToChat()
}

// SetEditor replaces the editor state recipes read from.
func (o *Orchestrator) SetEditor(e recipe.Editor) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.editor = e
}

// UpdateConfig swaps in a reloaded configuration.
func (o *Orchestrator) UpdateConfig(cfg *types.Config) {
	if cfg == nil {
		return
	}
	o.mu.Lock()
	o.cfg = cfg
	o.mu.Unlock()
	o.observer.OnEnabledPluginsUpdate(cfg.EnabledPlugins)
}

func (o *Orchestrator) config() *types.Config {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.cfg
}

// MaxPromptTokens returns the prompt budget for the current configuration and
// authentication status.
func (o *Orchestrator) MaxPromptTokens() int {
	serverMax := 0
	if o.auth != nil {
		serverMax = o.auth.CurrentStatus().MaxModelTokens
	}
	return MaxPromptTokens(o.config().Limits, serverMax)
}

func (o *Orchestrator) preamble() []types.Message {
	return recipe.Preamble(o.config().Codebase)
}

// ClearAndRestartSession saves the current chat and starts a new, empty one.
func (o *Orchestrator) ClearAndRestartSession(ctx context.Context) error {
	if err := o.saveTranscript(ctx); err != nil {
		return err
	}
	o.mu.Lock()
	cancel := o.endCurrentLocked()
	o.transcript = transcript.New(o.newChatID())
	o.mu.Unlock()
	if cancel != nil {
		cancel()
	}

	o.observer.OnSuggestionsUpdate([]string{})
	o.sendTranscript()
	o.sendHistory()
	return nil
}

// RestoreSession saves the current chat and switches to the stored chat id.
func (o *Orchestrator) RestoreSession(ctx context.Context, id string) error {
	stored, ok := o.history.Get(id)
	if !ok {
		return fmt.Errorf("restore %s: %w", id, ErrSessionNotFound)
	}
	if err := o.saveTranscript(ctx); err != nil {
		return err
	}

	o.mu.Lock()
	cancel := o.endCurrentLocked()
	o.transcript = transcript.FromJSON(stored)
	o.transcript.SetID(id)
	o.mu.Unlock()
	if cancel != nil {
		cancel()
	}

	o.sendTranscript()
	o.sendHistory()
	return nil
}

// DeleteHistory removes one stored chat.
func (o *Orchestrator) DeleteHistory(ctx context.Context, id string) error {
	if err := o.history.Delete(ctx, id); err != nil {
		return err
	}
	o.sendHistory()
	return nil
}

// ClearHistory removes every stored chat and the input history.
func (o *Orchestrator) ClearHistory(ctx context.Context) error {
	if err := o.history.Clear(ctx); err != nil {
		return err
	}
	o.sendHistory()
	return nil
}

// SubmitHumanMessage records text in the input history and runs it.
func (o *Orchestrator) SubmitHumanMessage(ctx context.Context, text string) error {
	if err := o.history.AddInput(ctx, text); err != nil {
		return err
	}
	return o.ExecuteCommands(ctx, text, recipe.ChatQuestion)
}

// RunIdleRecipe runs a recipe only if the session is idle.
func (o *Orchestrator) RunIdleRecipe(ctx context.Context, id recipe.ID, humanInput string) error {
	if !o.IsIdle() {
		return ErrNotIdle
	}
	return o.ExecuteRecipe(ctx, id, humanInput)
}

// OnIdle runs cb once the session has no active turn.
func (o *Orchestrator) OnIdle(cb func()) {
	o.idle.OnIdle(cb)
}

// Close aborts the running turn and waits for background work.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	o.mu.Unlock()

	o.AbortCompletion()
	o.stop()
	o.idle.Close()
	o.wg.Wait()
}

// endCurrentLocked detaches the current turn without completing it and
// returns its cancel function.
func (o *Orchestrator) endCurrentLocked() provider.CancelFunc {
	t := o.current
	o.current = nil
	o.busy = false
	if t == nil || t.ended {
		return nil
	}
	t.ended = true
	cancel := t.cancel
	t.cancel = nil
	return cancel
}

func (o *Orchestrator) saveTranscript(ctx context.Context) error {
	o.mu.Lock()
	if o.transcript.IsEmpty() {
		o.mu.Unlock()
		return nil
	}
	snapshot := o.transcript.ToJSON()
	o.mu.Unlock()
	return o.history.Save(ctx, snapshot)
}

func (o *Orchestrator) sendTranscript() {
	o.mu.Lock()
	chat := o.transcript.ToChat()
	busy := o.busy
	o.mu.Unlock()
	o.observer.OnTranscriptUpdate(chat, busy)
}

func (o *Orchestrator) sendHistory() {
	o.observer.OnHistoryUpdate(o.history.Snapshot())
}

// goBackground runs fn unless the orchestrator is closed.
func (o *Orchestrator) goBackground(fn func()) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		fn()
	}()
}
