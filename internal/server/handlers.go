package server

import (
	"context"
	"net/http"
	"slices"

	"github.com/go-chi/chi/v5"

	"github.com/opencode-ai/recipechat/internal/recipe"
	"github.com/opencode-ai/recipechat/internal/session"
	"github.com/opencode-ai/recipechat/pkg/types"
)

// ViewResponse describes a chat view.
type ViewResponse struct {
	ID     string `json:"id"`
	ChatID string `json:"chatID"`
	Idle   bool   `json:"idle"`
}

// TranscriptResponse is the current transcript of a chat view.
type TranscriptResponse struct {
	ViewResponse
	Messages []types.ChatMessage `json:"messages"`
}

// MessageRequest submits human input.
type MessageRequest struct {
	Text string `json:"text"`
}

// RecipeRequest runs a recipe.
type RecipeRequest struct {
	Input string `json:"input"`
}

// RestoreRequest switches a view to a stored chat.
type RestoreRequest struct {
	ChatID string `json:"chatID"`
}

// EditorRequest replaces the editor state recipes read from.
type EditorRequest struct {
	WorkspaceRoot string            `json:"workspaceRoot"`
	Selection     *recipe.Selection `json:"selection,omitempty"`
}

// RecipeInfo describes an available recipe.
type RecipeInfo struct {
	ID    recipe.ID `json:"id"`
	Title string    `json:"title"`
}

// PluginInfo describes an installed plugin.
type PluginInfo struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Enabled     bool   `json:"enabled"`
}

func describe(id string, v *session.Orchestrator) ViewResponse {
	return ViewResponse{ID: id, ChatID: v.ChatID(), Idle: v.IsIdle()}
}

// withView resolves the {viewID} URL parameter.
func (s *Server) withView(w http.ResponseWriter, r *http.Request) (string, *session.Orchestrator, bool) {
	id := chi.URLParam(r, "viewID")
	v, ok := s.view(id)
	if !ok {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "chat view not found: "+id)
		return "", nil, false
	}
	return id, v, true
}

func (s *Server) listViews(w http.ResponseWriter, r *http.Request) {
	ids := s.viewIDs()
	out := make([]ViewResponse, 0, len(ids))
	for _, id := range ids {
		if v, ok := s.view(id); ok {
			out = append(out, describe(id, v))
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) createViewHandler(w http.ResponseWriter, r *http.Request) {
	id, v, err := s.createView(r.Context())
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, describe(id, v))
}

func (s *Server) closeView(w http.ResponseWriter, r *http.Request) {
	if !s.removeView(chi.URLParam(r, "viewID")) {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "chat view not found")
		return
	}
	writeSuccess(w)
}

func (s *Server) getTranscript(w http.ResponseWriter, r *http.Request) {
	id, v, ok := s.withView(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, TranscriptResponse{
		ViewResponse: describe(id, v),
		Messages:     v.Transcript(),
	})
}

// submitMessage runs the text as a slash command or chat question. The answer
// streams over /event.
func (s *Server) submitMessage(w http.ResponseWriter, r *http.Request) {
	id, v, ok := s.withView(w, r)
	if !ok {
		return
	}
	var req MessageRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "text is required")
		return
	}
	if err := v.SubmitHumanMessage(r.Context(), req.Text); err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, describe(id, v))
}

func (s *Server) executeRecipe(w http.ResponseWriter, r *http.Request) {
	id, v, ok := s.withView(w, r)
	if !ok {
		return
	}
	recipeID := recipe.ID(chi.URLParam(r, "recipeID"))
	if _, found := s.recipes.Get(recipeID); !found {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "recipe not found: "+string(recipeID))
		return
	}
	var req RecipeRequest
	if r.ContentLength != 0 && !decodeBody(w, r, &req) {
		return
	}
	if err := v.ExecuteRecipe(r.Context(), recipeID, req.Input); err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, describe(id, v))
}

func (s *Server) abort(w http.ResponseWriter, r *http.Request) {
	_, v, ok := s.withView(w, r)
	if !ok {
		return
	}
	v.AbortCompletion()
	writeSuccess(w)
}

func (s *Server) reset(w http.ResponseWriter, r *http.Request) {
	id, v, ok := s.withView(w, r)
	if !ok {
		return
	}
	if err := v.ClearAndRestartSession(r.Context()); err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, describe(id, v))
}

func (s *Server) restore(w http.ResponseWriter, r *http.Request) {
	id, v, ok := s.withView(w, r)
	if !ok {
		return
	}
	var req RestoreRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := v.RestoreSession(r.Context(), req.ChatID); err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, describe(id, v))
}

func (s *Server) setEditor(w http.ResponseWriter, r *http.Request) {
	_, v, ok := s.withView(w, r)
	if !ok {
		return
	}
	var req EditorRequest
	if !decodeBody(w, r, &req) {
		return
	}
	v.SetEditor(&recipe.StaticEditor{Root: req.WorkspaceRoot, Selected: req.Selection})
	writeSuccess(w)
}

// requestSuggestions refreshes follow-up suggestions once the view is idle.
// They arrive as a suggestions.updated event.
func (s *Server) requestSuggestions(w http.ResponseWriter, r *http.Request) {
	_, v, ok := s.withView(w, r)
	if !ok {
		return
	}
	var req RecipeRequest
	if r.ContentLength != 0 && !decodeBody(w, r, &req) {
		return
	}
	v.OnIdle(func() {
		v.RunRecipeForSuggestion(context.Background(), recipe.NextQuestions, req.Input)
	})
	writeJSON(w, http.StatusAccepted, map[string]bool{"queued": true})
}

func (s *Server) clearHistory(w http.ResponseWriter, r *http.Request) {
	_, v, ok := s.withView(w, r)
	if !ok {
		return
	}
	if err := v.ClearHistory(r.Context()); err != nil {
		writeSessionError(w, err)
		return
	}
	writeSuccess(w)
}

func (s *Server) deleteHistory(w http.ResponseWriter, r *http.Request) {
	_, v, ok := s.withView(w, r)
	if !ok {
		return
	}
	if err := v.DeleteHistory(r.Context(), chi.URLParam(r, "chatID")); err != nil {
		writeSessionError(w, err)
		return
	}
	writeSuccess(w)
}

func (s *Server) getHistory(w http.ResponseWriter, r *http.Request) {
	if err := s.history.Load(r.Context()); err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.history.Snapshot())
}

func (s *Server) listRecipes(w http.ResponseWriter, r *http.Request) {
	ids := s.recipes.IDs()
	out := make([]RecipeInfo, 0, len(ids))
	for _, id := range ids {
		if rec, ok := s.recipes.Get(id); ok {
			out = append(out, RecipeInfo{ID: id, Title: rec.Title()})
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) listPlugins(w http.ResponseWriter, r *http.Request) {
	out := []PluginInfo{}
	if s.plugins != nil {
		cfg := s.currentConfig()
		for _, name := range s.plugins.Names() {
			p, ok := s.plugins.Get(name)
			if !ok {
				continue
			}
			out = append(out, PluginInfo{
				Name:        name,
				Description: p.Description,
				Enabled:     cfg.PluginsEnabled && slices.Contains(cfg.EnabledPlugins, name),
			})
		}
	}
	writeJSON(w, http.StatusOK, out)
}

const redacted = "[redacted]"

// getConfig returns the active configuration without credentials.
func (s *Server) getConfig(w http.ResponseWriter, r *http.Request) {
	cfg := *s.currentConfig()
	if cfg.AccessToken != "" {
		cfg.AccessToken = redacted
	}
	if len(cfg.Provider) > 0 {
		providers := make(map[string]types.ProviderConfig, len(cfg.Provider))
		for name, p := range cfg.Provider {
			if p.APIKey != "" {
				p.APIKey = redacted
			}
			providers[name] = p
		}
		cfg.Provider = providers
	}
	writeJSON(w, http.StatusOK, cfg)
}
