package server

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/opencode-ai/recipechat/internal/event"
	"github.com/opencode-ai/recipechat/internal/history"
	"github.com/opencode-ai/recipechat/internal/logging"
	"github.com/opencode-ai/recipechat/internal/plugin"
	"github.com/opencode-ai/recipechat/internal/recipe"
	"github.com/opencode-ai/recipechat/internal/session"
	"github.com/opencode-ai/recipechat/pkg/types"
)

// Config holds server configuration.
type Config struct {
	Port         int
	EnableCORS   bool
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig returns default server configuration.
func DefaultConfig() *Config {
	return &Config{
		Port:         8080,
		EnableCORS:   true,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // No write timeout for SSE
	}
}

// ViewFactory creates the orchestrator of a new chat view reporting to
// observer.
type ViewFactory func(observer session.Observer) *session.Orchestrator

// Options are the shared collaborators of every chat view.
type Options struct {
	AppConfig *types.Config
	Bus       *event.Bus
	History   *history.Store
	Recipes   *recipe.Registry
	Plugins   *plugin.Catalog
	NewView   ViewFactory
}

// Server is the HTTP server. Each chat view is an orchestrator whose
// notifications are published on the bus under the view id.
type Server struct {
	config  *Config
	router  *chi.Mux
	httpSrv *http.Server
	bus     *event.Bus
	history *history.Store
	recipes *recipe.Registry
	plugins *plugin.Catalog
	newView ViewFactory

	mu        sync.RWMutex
	appConfig *types.Config
	views     map[string]*session.Orchestrator

	log zerolog.Logger
}

// New creates a new Server instance.
func New(cfg *Config, opts Options) *Server {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	appConfig := opts.AppConfig
	if appConfig == nil {
		appConfig = &types.Config{}
	}
	s := &Server{
		config:    cfg,
		router:    chi.NewRouter(),
		bus:       opts.Bus,
		history:   opts.History,
		recipes:   opts.Recipes,
		plugins:   opts.Plugins,
		newView:   opts.NewView,
		appConfig: appConfig,
		views:     make(map[string]*session.Orchestrator),
		log:       logging.Component("server"),
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// setupMiddleware configures middleware for the server.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.requestLogger)
	s.router.Use(middleware.Recoverer)

	if s.config.EnableCORS {
		s.router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{"*"},
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}
}

// requestLogger logs each request at debug level.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("elapsed", time.Since(start)).
			Str("requestID", middleware.GetReqID(r.Context())).
			Msg("request")
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.httpSrv = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	return s.httpSrv.ListenAndServe()
}

// Shutdown stops accepting requests and closes every chat view.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	if s.httpSrv != nil {
		err = s.httpSrv.Shutdown(ctx)
	}
	s.closeViews()
	return err
}

// Router returns the Chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// UpdateConfig hands a reloaded configuration to every chat view and
// announces the reload. source names the file that changed, if known.
func (s *Server) UpdateConfig(cfg *types.Config, source string) {
	s.mu.Lock()
	s.appConfig = cfg
	views := make([]*session.Orchestrator, 0, len(s.views))
	for _, v := range s.views {
		views = append(views, v)
	}
	s.mu.Unlock()

	for _, v := range views {
		v.UpdateConfig(cfg)
	}
	s.bus.Publish(event.Event{Type: event.ConfigReloaded, Data: event.ConfigReloadedData{Path: source}})
	s.log.Info().Str("source", source).Int("views", len(views)).Msg("configuration reloaded")
}

func (s *Server) currentConfig() *types.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.appConfig
}

// createView starts a chat view and restores its most recent chat.
func (s *Server) createView(ctx context.Context) (string, *session.Orchestrator, error) {
	id := ulid.Make().String()
	view := s.newView(event.NewBusObserver(s.bus, id))
	if err := view.Init(ctx); err != nil {
		view.Close()
		return "", nil, err
	}

	s.mu.Lock()
	s.views[id] = view
	s.mu.Unlock()
	s.log.Info().Str("view", id).Str("chatID", view.ChatID()).Msg("chat view created")
	return id, view, nil
}

func (s *Server) view(id string) (*session.Orchestrator, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.views[id]
	return v, ok
}

func (s *Server) viewIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.views))
	for id := range s.views {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (s *Server) removeView(id string) bool {
	s.mu.Lock()
	v, ok := s.views[id]
	delete(s.views, id)
	s.mu.Unlock()
	if ok {
		v.Close()
	}
	return ok
}

func (s *Server) closeViews() {
	s.mu.Lock()
	views := s.views
	s.views = make(map[string]*session.Orchestrator)
	s.mu.Unlock()

	var wg sync.WaitGroup
	for _, v := range views {
		wg.Add(1)
		go func(v *session.Orchestrator) {
			defer wg.Done()
			v.Close()
		}(v)
	}
	wg.Wait()
}
