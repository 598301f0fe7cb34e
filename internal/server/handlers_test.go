package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/opencode-ai/recipechat/internal/event"
	"github.com/opencode-ai/recipechat/internal/history"
	"github.com/opencode-ai/recipechat/internal/plugin"
	"github.com/opencode-ai/recipechat/internal/provider"
	"github.com/opencode-ai/recipechat/internal/recipe"
	"github.com/opencode-ai/recipechat/internal/session"
	"github.com/opencode-ai/recipechat/pkg/types"
)

// replyTransport answers every chat with a fixed reply. With a release channel
// it holds the reply until the channel is closed.
type replyTransport struct {
	reply   string
	release chan struct{}
	calls   chan struct{}
}

func newReplyTransport(reply string) *replyTransport {
	return &replyTransport{reply: reply, calls: make(chan struct{}, 16)}
}

func (f *replyTransport) Chat(ctx context.Context, _ []types.Message, cb provider.Callbacks) provider.CancelFunc {
	ctx, cancel := context.WithCancel(ctx)
	select {
	case f.calls <- struct{}{}:
	default:
	}
	go func() {
		if f.release != nil {
			select {
			case <-f.release:
			case <-ctx.Done():
				cb.OnError(provider.ErrAborted, 0)
				return
			}
		}
		cb.OnChunk(f.reply)
		cb.OnComplete()
	}()
	return provider.CancelFunc(cancel)
}

func setupTestServer(t *testing.T, tr provider.Transport) *Server {
	t.Helper()
	bus := event.NewBus()
	store := history.NewStore(history.NewFileBackend(t.TempDir()))
	cfg := &types.Config{
		AccessToken:    "secret-token",
		PluginsEnabled: true,
		EnabledPlugins: []string{"weather"},
		Provider: map[string]types.ProviderConfig{
			"anthropic": {APIKey: "sk-test", BaseURL: "https://api.example.com"},
		},
	}
	recipes := recipe.Builtins()
	catalog := plugin.NewCatalog(
		&plugin.Plugin{Name: "weather", Description: "Current weather"},
		&plugin.Plugin{Name: "web", Description: "Fetch a web page"},
	)

	srv := New(&Config{EnableCORS: true}, Options{
		AppConfig: cfg,
		Bus:       bus,
		History:   store,
		Recipes:   recipes,
		Plugins:   catalog,
		NewView: func(observer session.Observer) *session.Orchestrator {
			return session.New(session.Options{
				Config:       cfg,
				Transport:    tr,
				Recipes:      recipes,
				History:      store,
				Observer:     observer,
				IdleInterval: 10 * time.Millisecond,
			})
		},
	})
	t.Cleanup(func() {
		srv.Shutdown(context.Background())
		bus.Close()
	})
	return srv
}

func do(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("Failed to encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(w.Body).Decode(&v); err != nil {
		t.Fatalf("Failed to decode %q: %v", w.Body.String(), err)
	}
	return v
}

func createView(t *testing.T, srv *Server) ViewResponse {
	t.Helper()
	w := do(t, srv, "POST", "/view", nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}
	return decode[ViewResponse](t, w)
}

// waitTranscript polls the transcript until the view is idle with n messages.
func waitTranscript(t *testing.T, srv *Server, viewID string, n int) TranscriptResponse {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		w := do(t, srv, "GET", "/view/"+viewID+"/transcript", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
		}
		tr := decode[TranscriptResponse](t, w)
		if tr.Idle && len(tr.Messages) == n {
			return tr
		}
		if time.Now().After(deadline) {
			t.Fatalf("Timed out waiting for %d messages, last: %+v", n, tr)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// waitSaved polls the shared history until chatID is stored.
func waitSaved(t *testing.T, srv *Server, chatID string) types.UserLocalHistory {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		h := decode[types.UserLocalHistory](t, do(t, srv, "GET", "/history", nil))
		if _, ok := h.Chat[chatID]; ok {
			return h
		}
		if time.Now().After(deadline) {
			t.Fatalf("Timed out waiting for chat %s in history", chatID)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestCreateAndListViews(t *testing.T) {
	srv := setupTestServer(t, newReplyTransport("Hello"))

	view := createView(t, srv)
	if view.ID == "" || view.ChatID == "" {
		t.Fatalf("Expected ids, got %+v", view)
	}
	if !view.Idle {
		t.Error("New view should be idle")
	}

	w := do(t, srv, "GET", "/view", nil)
	views := decode[[]ViewResponse](t, w)
	if len(views) != 1 || views[0].ID != view.ID {
		t.Errorf("Expected the created view, got %+v", views)
	}
}

func TestViewNotFound(t *testing.T) {
	srv := setupTestServer(t, newReplyTransport("Hello"))

	for _, path := range []string{"/view/nope/transcript", "/view/nope/abort"} {
		method := "GET"
		if strings.HasSuffix(path, "abort") {
			method = "POST"
		}
		w := do(t, srv, method, path, nil)
		if w.Code != http.StatusNotFound {
			t.Errorf("%s: expected 404, got %d", path, w.Code)
		}
	}
}

func TestSubmitMessageStreamsAnswer(t *testing.T) {
	srv := setupTestServer(t, newReplyTransport("Hello"))
	view := createView(t, srv)

	w := do(t, srv, "POST", "/view/"+view.ID+"/message", MessageRequest{Text: "hi"})
	if w.Code != http.StatusAccepted {
		t.Fatalf("Expected 202, got %d: %s", w.Code, w.Body.String())
	}

	tr := waitTranscript(t, srv, view.ID, 2)
	if tr.Messages[0].Text != "hi" {
		t.Errorf("Expected human text 'hi', got %q", tr.Messages[0].Text)
	}
	if tr.Messages[1].Text != "Hello" {
		t.Errorf("Expected assistant text 'Hello', got %q", tr.Messages[1].Text)
	}

	h := waitSaved(t, srv, tr.ChatID)
	if len(h.Input) != 1 || h.Input[0] != "hi" {
		t.Errorf("Expected input history [hi], got %v", h.Input)
	}
}

func TestSubmitMessageRequiresText(t *testing.T) {
	srv := setupTestServer(t, newReplyTransport("Hello"))
	view := createView(t, srv)

	w := do(t, srv, "POST", "/view/"+view.ID+"/message", MessageRequest{})
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", w.Code)
	}
}

func TestBusyViewRejectsAndAborts(t *testing.T) {
	tr := newReplyTransport("Hello")
	tr.release = make(chan struct{})
	defer close(tr.release)
	srv := setupTestServer(t, tr)
	view := createView(t, srv)

	w := do(t, srv, "POST", "/view/"+view.ID+"/message", MessageRequest{Text: "first"})
	if w.Code != http.StatusAccepted {
		t.Fatalf("Expected 202, got %d", w.Code)
	}

	w = do(t, srv, "POST", "/view/"+view.ID+"/message", MessageRequest{Text: "second"})
	if w.Code != http.StatusConflict {
		t.Fatalf("Expected 409, got %d: %s", w.Code, w.Body.String())
	}
	if resp := decode[ErrorResponse](t, w); resp.Error.Code != ErrCodeBusy {
		t.Errorf("Expected code %s, got %s", ErrCodeBusy, resp.Error.Code)
	}

	w = do(t, srv, "POST", "/view/"+view.ID+"/abort", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	transcript := waitTranscript(t, srv, view.ID, 2)
	if transcript.Messages[1].Error != "" {
		t.Errorf("Abort should leave no error, got %q", transcript.Messages[1].Error)
	}
}

func TestUnknownSlashCommand(t *testing.T) {
	srv := setupTestServer(t, newReplyTransport("Hello"))
	view := createView(t, srv)

	w := do(t, srv, "POST", "/view/"+view.ID+"/message", MessageRequest{Text: "/serch listen"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", w.Code)
	}
	resp := decode[ErrorResponse](t, w)
	if !strings.Contains(resp.Error.Message, "/search <query>") {
		t.Errorf("Expected a hint, got %q", resp.Error.Message)
	}
}

func TestExecuteRecipe(t *testing.T) {
	tr := newReplyTransport("Hello")
	srv := setupTestServer(t, tr)
	view := createView(t, srv)

	w := do(t, srv, "POST", "/view/"+view.ID+"/recipe/missing", RecipeRequest{Input: "x"})
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", w.Code)
	}

	w = do(t, srv, "POST", "/view/"+view.ID+"/recipe/context-search", RecipeRequest{Input: "listen"})
	if w.Code != http.StatusAccepted {
		t.Fatalf("Expected 202, got %d: %s", w.Code, w.Body.String())
	}
	transcript := waitTranscript(t, srv, view.ID, 2)
	if !strings.Contains(transcript.Messages[1].Text, "not available") {
		t.Errorf("Expected codebase unavailable answer, got %q", transcript.Messages[1].Text)
	}
	if len(tr.calls) != 0 {
		t.Error("Context search should not call the model")
	}
}

func TestEditorSelectionFeedsExplainCode(t *testing.T) {
	srv := setupTestServer(t, newReplyTransport("It adds."))
	view := createView(t, srv)

	w := do(t, srv, "PUT", "/view/"+view.ID+"/editor", EditorRequest{
		WorkspaceRoot: "/work",
		Selection:     &recipe.Selection{FileName: "add.go", Text: "func add(a, b int) int { return a + b }"},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	w = do(t, srv, "POST", "/view/"+view.ID+"/recipe/explain-code", nil)
	if w.Code != http.StatusAccepted {
		t.Fatalf("Expected 202, got %d: %s", w.Code, w.Body.String())
	}
	transcript := waitTranscript(t, srv, view.ID, 2)
	if !strings.Contains(transcript.Messages[0].DisplayText, "add.go") {
		t.Errorf("Expected the file name in %q", transcript.Messages[0].DisplayText)
	}
}

func TestResetAndRestore(t *testing.T) {
	srv := setupTestServer(t, newReplyTransport("Hello"))
	view := createView(t, srv)

	do(t, srv, "POST", "/view/"+view.ID+"/message", MessageRequest{Text: "hi"})
	first := waitTranscript(t, srv, view.ID, 2)
	waitSaved(t, srv, first.ChatID)

	w := do(t, srv, "POST", "/view/"+view.ID+"/reset", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	if reset := decode[ViewResponse](t, w); reset.ChatID == first.ChatID {
		t.Error("Reset should start a new chat")
	}
	waitTranscript(t, srv, view.ID, 0)

	w = do(t, srv, "POST", "/view/"+view.ID+"/restore", RestoreRequest{ChatID: "missing"})
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", w.Code)
	}

	w = do(t, srv, "POST", "/view/"+view.ID+"/restore", RestoreRequest{ChatID: first.ChatID})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	restored := waitTranscript(t, srv, view.ID, 2)
	if restored.ChatID != first.ChatID {
		t.Errorf("Expected chat %s, got %s", first.ChatID, restored.ChatID)
	}
}

func TestHistoryDeletion(t *testing.T) {
	srv := setupTestServer(t, newReplyTransport("Hello"))
	view := createView(t, srv)

	do(t, srv, "POST", "/view/"+view.ID+"/message", MessageRequest{Text: "hi"})
	transcript := waitTranscript(t, srv, view.ID, 2)
	waitSaved(t, srv, transcript.ChatID)

	w := do(t, srv, "DELETE", "/view/"+view.ID+"/history/"+transcript.ChatID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	h := decode[types.UserLocalHistory](t, do(t, srv, "GET", "/history", nil))
	if len(h.Chat) != 0 {
		t.Errorf("Expected no chats, got %v", h.Chat)
	}
	if len(h.Input) != 1 {
		t.Errorf("Deleting a chat should keep the input history, got %v", h.Input)
	}

	w = do(t, srv, "DELETE", "/view/"+view.ID+"/history", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	h = decode[types.UserLocalHistory](t, do(t, srv, "GET", "/history", nil))
	if len(h.Input) != 0 {
		t.Errorf("Expected empty input history, got %v", h.Input)
	}
}

func TestSharedStateEndpoints(t *testing.T) {
	srv := setupTestServer(t, newReplyTransport("Hello"))

	recipes := decode[[]RecipeInfo](t, do(t, srv, "GET", "/recipe", nil))
	if len(recipes) != 4 {
		t.Errorf("Expected 4 built-in recipes, got %+v", recipes)
	}

	plugins := decode[[]PluginInfo](t, do(t, srv, "GET", "/plugin", nil))
	if len(plugins) != 2 {
		t.Fatalf("Expected 2 plugins, got %+v", plugins)
	}
	if plugins[0].Name != "weather" || !plugins[0].Enabled {
		t.Errorf("Expected weather enabled, got %+v", plugins[0])
	}
	if plugins[1].Name != "web" || plugins[1].Enabled {
		t.Errorf("Expected web disabled, got %+v", plugins[1])
	}

	cfg := decode[types.Config](t, do(t, srv, "GET", "/config", nil))
	if cfg.AccessToken != redacted {
		t.Errorf("Expected redacted access token, got %q", cfg.AccessToken)
	}
	if cfg.Provider["anthropic"].APIKey != redacted {
		t.Errorf("Expected redacted API key, got %q", cfg.Provider["anthropic"].APIKey)
	}
	if cfg.Provider["anthropic"].BaseURL != "https://api.example.com" {
		t.Errorf("Base URL should be kept, got %q", cfg.Provider["anthropic"].BaseURL)
	}
}

func TestUpdateConfigReachesViews(t *testing.T) {
	srv := setupTestServer(t, newReplyTransport("Hello"))
	view := createView(t, srv)

	received := make(chan event.Event, 4)
	unsub := srv.bus.SubscribeAll(func(e event.Event) {
		if e.Type == event.PluginsUpdated || e.Type == event.ConfigReloaded {
			received <- e
		}
	})
	defer unsub()

	srv.UpdateConfig(&types.Config{EnabledPlugins: []string{"web"}}, "/tmp/recipechat.json")

	seen := map[event.EventType]event.Event{}
	for len(seen) < 2 {
		select {
		case e := <-received:
			seen[e.Type] = e
		case <-time.After(time.Second):
			t.Fatalf("Timed out, got %v", seen)
		}
	}
	plugins := seen[event.PluginsUpdated]
	if plugins.SessionID != view.ID {
		t.Errorf("Expected plugins update for view %s, got %s", view.ID, plugins.SessionID)
	}
	if data, ok := plugins.Data.(event.PluginsUpdatedData); !ok || len(data.Plugins) != 1 || data.Plugins[0] != "web" {
		t.Errorf("Unexpected plugins data %+v", plugins.Data)
	}
	if data, ok := seen[event.ConfigReloaded].Data.(event.ConfigReloadedData); !ok || data.Path != "/tmp/recipechat.json" {
		t.Errorf("Unexpected reload data %+v", seen[event.ConfigReloaded].Data)
	}
}

func TestCloseView(t *testing.T) {
	srv := setupTestServer(t, newReplyTransport("Hello"))
	view := createView(t, srv)

	w := do(t, srv, "DELETE", "/view/"+view.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	w = do(t, srv, "GET", "/view/"+view.ID+"/transcript", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 after close, got %d", w.Code)
	}
	w = do(t, srv, "DELETE", "/view/"+view.ID, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 on second close, got %d", w.Code)
	}
}
