package commands

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"github.com/opencode-ai/recipechat/internal/auth"
	"github.com/opencode-ai/recipechat/internal/codebase"
	"github.com/opencode-ai/recipechat/internal/config"
	"github.com/opencode-ai/recipechat/internal/event"
	"github.com/opencode-ai/recipechat/internal/guardrails"
	"github.com/opencode-ai/recipechat/internal/history"
	"github.com/opencode-ai/recipechat/internal/logging"
	"github.com/opencode-ai/recipechat/internal/plugin"
	"github.com/opencode-ai/recipechat/internal/provider"
	"github.com/opencode-ai/recipechat/internal/recipe"
	"github.com/opencode-ai/recipechat/internal/session"
	"github.com/opencode-ai/recipechat/pkg/types"
)

// app holds the collaborators shared by every orchestrator of the process.
type app struct {
	workDir   string
	bus       *event.Bus
	history   *history.Store
	recipes   *recipe.Registry
	plugins   *plugin.Catalog
	transport provider.Transport
	auth      *auth.Provider
	codebase  *codebase.Context

	mu  sync.RWMutex
	cfg *types.Config
}

// newApp loads the configuration for dir and builds the shared collaborators.
func newApp(ctx context.Context, dir string) (*app, error) {
	cfg, err := config.Load(dir)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	store, err := openHistory(ctx, cfg)
	if err != nil {
		return nil, err
	}

	registry, err := provider.InitializeProviders(ctx, cfg)
	if err != nil {
		store.Close()
		return nil, err
	}
	transport, err := registry.Transport()
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("no model available: %w", err)
	}

	a := &app{
		workDir:   dir,
		bus:       event.NewBus(),
		history:   store,
		recipes:   recipe.Builtins(),
		plugins:   plugin.NewCatalog(),
		transport: transport,
		cfg:       cfg,
	}

	if cfg.CustomRecipesEnabled() && cfg.CustomRecipes != "" {
		path := cfg.CustomRecipes
		if !filepath.IsAbs(path) {
			path = filepath.Join(dir, path)
		}
		n, err := a.recipes.LoadCustomInto(path)
		if err != nil {
			logging.Warn().Err(err).Str("path", path).Msg("custom recipes not loaded")
		} else {
			logging.Info().Int("count", n).Str("path", path).Msg("custom recipes loaded")
		}
	}

	a.plugins.Register(plugin.NewWebPage(webClient(cfg)))
	plugin.LoadMCP(ctx, a.plugins, cfg.Plugins)

	if cfg.ServerEndpoint != "" {
		a.auth = auth.NewProvider()
	}
	a.codebase = newCodebase(dir, cfg)

	return a, nil
}

func openHistory(ctx context.Context, cfg *types.Config) (*history.Store, error) {
	kind, path := config.HistoryFile, ""
	if cfg.History != nil {
		if cfg.History.Backend != "" {
			kind = cfg.History.Backend
		}
		path = cfg.History.Path
	}
	if path == "" {
		path = config.GetPaths().HistoryPath(kind)
	}
	backend, err := history.Open(ctx, kind, path)
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	return history.NewStore(backend), nil
}

func webClient(cfg *types.Config) *http.Client {
	if cfg.Plugins == nil || cfg.Plugins.WebFetchTimeoutMs <= 0 {
		return nil
	}
	return &http.Client{Timeout: time.Duration(cfg.Plugins.WebFetchTimeoutMs) * time.Millisecond}
}

// newCodebase combines keyword search over dir with the server's embeddings
// search when a server and codebase are configured.
func newCodebase(dir string, cfg *types.Config) *codebase.Context {
	name := cfg.Codebase
	if name == "" {
		name = filepath.Base(dir)
	}
	var embeddings codebase.Searcher
	if cfg.ServerEndpoint != "" && cfg.Codebase != "" {
		embeddings = codebase.NewEmbeddings(cfg.ServerEndpoint, cfg.AccessToken, cfg.CustomHeaders, cfg.Codebase)
	}
	return codebase.NewContext(name, cfg.UseContext, codebase.NewLocal(dir), embeddings)
}

func (a *app) config() *types.Config {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.cfg
}

func (a *app) setConfig(cfg *types.Config) {
	a.mu.Lock()
	a.cfg = cfg
	a.mu.Unlock()
}

// newOrchestrator creates an orchestrator over the shared collaborators.
func (a *app) newOrchestrator(observer session.Observer) *session.Orchestrator {
	cfg := a.config()
	opts := session.Options{
		Config:    cfg,
		Transport: a.transport,
		Recipes:   a.recipes,
		History:   a.history,
		Plugins:   a.plugins,
		Codebase:  a.codebase,
		Observer:  observer,
	}
	if a.auth != nil {
		opts.Auth = a.auth
	}
	if cfg.GuardrailsEnabled() && cfg.ServerEndpoint != "" {
		opts.Guardrails = guardrails.NewClient(cfg.ServerEndpoint, cfg.AccessToken, cfg.CustomHeaders)
	}
	if cfg.IdleIntervalMs > 0 {
		opts.IdleInterval = time.Duration(cfg.IdleIntervalMs) * time.Millisecond
	}
	return session.New(opts)
}

// authenticate checks the access token once at startup. Failures are logged;
// the orchestrator retries on the first unauthorized answer.
func (a *app) authenticate(ctx context.Context) {
	if a.auth == nil {
		return
	}
	cfg := a.config()
	if err := a.auth.Reauthenticate(ctx, cfg.ServerEndpoint, cfg.AccessToken, cfg.CustomHeaders); err != nil {
		logging.Warn().Err(err).Msg("startup authentication failed")
	}
}

func (a *app) Close() {
	if err := a.plugins.Close(); err != nil {
		logging.Warn().Err(err).Msg("failed to close plugins")
	}
	if err := a.history.Close(); err != nil {
		logging.Warn().Err(err).Msg("failed to close history")
	}
	a.bus.Close()
}
