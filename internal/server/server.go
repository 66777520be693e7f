// Package server is the Session Engine's HTTP surface (§6): a thin chi
// router translating the authoritative request/response shapes onto
// internal/session.Service, internal/lease.Manager, and the event bus.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/frumu/tandem/internal/event"
	"github.com/frumu/tandem/internal/lease"
	"github.com/frumu/tandem/internal/logging"
	"github.com/frumu/tandem/internal/permission"
	"github.com/frumu/tandem/internal/provider"
	"github.com/frumu/tandem/internal/registry"
	"github.com/frumu/tandem/internal/session"
	"github.com/frumu/tandem/pkg/types"
)

// Version is the engine's build version, reported by GET /global/health.
const Version = "1.0.0"

// Config holds HTTP-layer settings independent of the engine's own
// dependency graph.
type Config struct {
	Port         int
	Directory    string
	EnableCORS   bool
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig returns the default HTTP configuration.
func DefaultConfig() *Config {
	return &Config{
		Port:         8080,
		EnableCORS:   true,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // SSE streams never time out on write
	}
}

// Server bundles the HTTP surface around an already-constructed engine
// dependency graph. It owns no session state itself.
type Server struct {
	config     *Config
	appConfig  *types.Config
	router     *chi.Mux
	httpSrv    *http.Server
	sessionSvc *session.Service
	leaseMgr   *lease.Manager
	permMgr    *permission.Manager
	providers  *provider.Registry
	catalogs   *registry.Set
	bus        *event.Bus
	authPath   string
}

// New constructs a Server and builds its route tree.
func New(cfg *Config, appConfig *types.Config, sessionSvc *session.Service, leaseMgr *lease.Manager, permMgr *permission.Manager, providers *provider.Registry, catalogs *registry.Set, bus *event.Bus, authPath string) *Server {
	s := &Server{
		config:     cfg,
		appConfig:  appConfig,
		sessionSvc: sessionSvc,
		leaseMgr:   leaseMgr,
		permMgr:    permMgr,
		providers:  providers,
		catalogs:   catalogs,
		bus:        bus,
		authPath:   authPath,
	}
	s.router = chi.NewRouter()
	s.setupMiddleware()
	s.routes()
	return s
}

// setupMiddleware configures the request pipeline.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.requestLogger)
	s.router.Use(middleware.Recoverer)

	if s.config.EnableCORS {
		s.router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{"*"},
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"Link", "X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	s.router.Use(s.instanceContext)
}

// requestLogger logs each request's outcome through the engine's zerolog
// logger (the teacher used chi's stdlib-backed middleware.Logger; this
// routes through internal/logging instead, matching how the rest of the
// engine logs).
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		logging.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

// instanceContext middleware injects the directory query param (or the
// server's configured default) into the request context.
func (s *Server) instanceContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		dir := r.URL.Query().Get("directory")
		if dir == "" {
			dir = s.config.Directory
		}
		ctx := context.WithValue(r.Context(), contextKeyDirectory, dir)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Router exposes the underlying chi router, e.g. for tests.
func (s *Server) Router() *chi.Mux { return s.router }

// Start begins serving HTTP on cfg.Port. It blocks until Shutdown is
// called or ListenAndServe returns a fatal error.
func (s *Server) Start() error {
	s.httpSrv = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}
	if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

type contextKey string

const contextKeyDirectory contextKey = "directory"

// getDirectory returns the directory stashed by instanceContext.
func getDirectory(ctx context.Context) string {
	if dir, ok := ctx.Value(contextKeyDirectory).(string); ok {
		return dir
	}
	return ""
}
