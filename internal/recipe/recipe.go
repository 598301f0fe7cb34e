// Package recipe defines the strategies that turn user input into chat
// interactions, and the built-in and custom recipes.
package recipe

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/opencode-ai/recipechat/internal/codebase"
	"github.com/opencode-ai/recipechat/internal/multiplexer"
	"github.com/opencode-ai/recipechat/internal/transcript"
)

// ID identifies a recipe.
type ID string

// Built-in recipe IDs.
const (
	ChatQuestion  ID = "chat-question"
	ContextSearch ID = "context-search"
	NextQuestions ID = "next-questions"
	ExplainCode   ID = "explain-code"
)

// MaxHumanInputTokens bounds the human text sent to the model.
const MaxHumanInputTokens = 1000

// Context is the environment a recipe builds its interaction from.
type Context struct {
	Editor           Editor
	IntentDetector   IntentDetector
	Codebase         *codebase.Context
	Multiplexer      *multiplexer.Multiplexer
	FirstInteraction bool
}

// Recipe builds one interaction from user input.
type Recipe interface {
	ID() ID
	Title() string
	// Interaction returns nil when the recipe declines the input.
	Interaction(ctx context.Context, humanInput string, rc Context) (*transcript.Interaction, error)
}

// PluginUser is implemented by recipes whose turns may be augmented with
// plugin context.
type PluginUser interface {
	UsesPlugins() bool
}

// LocalOnly is implemented by recipes that produce their answer without a
// model round-trip.
type LocalOnly interface {
	SkipsModel() bool
}

// UsesPlugins reports whether r wants plugin context.
func UsesPlugins(r Recipe) bool {
	p, ok := r.(PluginUser)
	return ok && p.UsesPlugins()
}

// SkipsModel reports whether r answers without the model.
func SkipsModel(r Recipe) bool {
	l, ok := r.(LocalOnly)
	return ok && l.SkipsModel()
}

// Registry is the catalog of available recipes.
type Registry struct {
	mu      sync.RWMutex
	recipes map[ID]Recipe
}

// NewRegistry creates a registry holding recipes.
func NewRegistry(recipes ...Recipe) *Registry {
	r := &Registry{recipes: make(map[ID]Recipe)}
	for _, rec := range recipes {
		r.Register(rec)
	}
	return r
}

// Builtins returns a registry with the built-in recipes.
func Builtins() *Registry {
	return NewRegistry(
		&chatQuestion{},
		&contextSearch{},
		&nextQuestions{},
		&explainCode{},
	)
}

// Register adds or replaces a recipe.
func (r *Registry) Register(rec Recipe) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recipes[rec.ID()] = rec
}

// Get resolves id.
func (r *Registry) Get(id ID) (Recipe, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.recipes[id]
	return rec, ok
}

// IDs returns the registered recipe IDs, sorted.
func (r *Registry) IDs() []ID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]ID, 0, len(r.recipes))
	for id := range r.recipes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// LoadCustomInto reads custom recipes from path and registers them.
func (r *Registry) LoadCustomInto(path string) (int, error) {
	recipes, err := LoadCustom(path)
	if err != nil {
		return 0, err
	}
	for _, rec := range recipes {
		if _, exists := r.Get(rec.ID()); exists {
			return 0, fmt.Errorf("custom recipe %q shadows an existing recipe", rec.ID())
		}
	}
	for _, rec := range recipes {
		r.Register(rec)
	}
	return len(recipes), nil
}

// truncateText cuts text to roughly maxTokens tokens.
func truncateText(text string, maxTokens int) string {
	limit := maxTokens * transcript.CharsPerToken
	if len(text) <= limit {
		return text
	}
	return text[:limit]
}
