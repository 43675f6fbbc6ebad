// Package server provides the HTTP server and routing for the card risk console.
package server

import (
	"context"
	"fmt"
	"io/fs"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/aristath/cardrisk/internal/config"
	"github.com/aristath/cardrisk/internal/di"
	customershandlers "github.com/aristath/cardrisk/internal/modules/customers/handlers"
	panelhandlers "github.com/aristath/cardrisk/internal/modules/panel/handlers"
	riskhandlers "github.com/aristath/cardrisk/internal/modules/risk/handlers"
	snapshotshandlers "github.com/aristath/cardrisk/internal/modules/snapshots/handlers"
	"github.com/aristath/cardrisk/pkg/embedded"
)

const (
	requestTimeout        = 60 * time.Second
	statusMonitorInterval = 60 * time.Second
)

// Config holds server configuration
type Config struct {
	Log       zerolog.Logger
	Config    *config.Config
	Container *di.Container // DI container with all services
	Port      int
	DevMode   bool
}

// Server represents the HTTP server
type Server struct {
	router         *chi.Mux
	server         *http.Server
	log            zerolog.Logger
	cfg            *config.Config
	port           int
	container      *di.Container
	systemHandlers *SystemHandlers
	statusMonitor  *StatusMonitor
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	_ = mime.AddExtensionType(".js", "application/javascript")
	_ = mime.AddExtensionType(".css", "text/css")

	c := cfg.Container
	systemHandlers := NewSystemHandlers(SystemDeps{
		Log:       cfg.Log,
		Databases: []StatsSource{c.CustomersDB, c.CacheDB},
		Scheduler: c.Scheduler,
		Jobs:      c.Jobs,
		Panels:    c.PanelManager,
		Backups:   backupServiceOrNil(c),
	})

	s := &Server{
		router:         chi.NewRouter(),
		log:            cfg.Log.With().Str("component", "server").Logger(),
		cfg:            cfg.Config,
		port:           cfg.Port,
		container:      c,
		systemHandlers: systemHandlers,
		statusMonitor:  NewStatusMonitor(c.EventManager, []HealthChecker{c.CustomersDB, c.CacheDB}, cfg.Log),
	}

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Port),
		Handler:     s.router,
		ReadTimeout: 15 * time.Second,
		// Streams write for as long as the client stays; plain requests are
		// bounded by the timeout middleware instead.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// backupServiceOrNil keeps a nil *BackupService from becoming a non-nil interface
func backupServiceOrNil(c *di.Container) BackupRunner {
	if c.BackupService == nil {
		return nil
	}
	return c.BackupService
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware(devMode bool) {
	// Recovery from panics
	s.router.Use(middleware.Recoverer)

	// Request ID
	s.router.Use(middleware.RequestID)

	// Real IP
	s.router.Use(middleware.RealIP)

	// Logging
	s.router.Use(s.loggingMiddleware)

	// Timeout, except for long-lived streams
	s.router.Use(streamAwareTimeout(requestTimeout))

	// CORS
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Compress responses
	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	c := s.container

	// Health check (before SPA routing)
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		// Unified events stream (SSE)
		r.Get("/events/stream", NewEventsStreamHandler(c.EventBus, s.log).ServeHTTP)

		r.Route("/system", func(r chi.Router) {
			r.Get("/status", s.systemHandlers.HandleSystemStatus)
			r.Get("/database/stats", s.systemHandlers.HandleDatabaseStats)
			r.Get("/jobs", s.systemHandlers.HandleJobsStatus)
			r.Post("/jobs/{name}", func(w http.ResponseWriter, r *http.Request) {
				s.systemHandlers.HandleTriggerJob(w, r, chi.URLParam(r, "name"))
			})
			r.Post("/backup", s.systemHandlers.HandleTriggerBackup)
			r.Get("/backups", s.systemHandlers.HandleListBackups)
		})

		customershandlers.NewHandler(c.CustomerService, s.log).RegisterRoutes(r)
		riskhandlers.NewHandler(c.RiskService, s.log).RegisterRoutes(r)
		snapshotshandlers.NewHandler(c.SnapshotService, s.log).RegisterRoutes(r)
		panelhandlers.NewHandler(c.PanelManager, s.log).RegisterRoutes(r)
	})

	// Dashboard and its assets
	s.router.Get("/", s.handleDashboard)
	s.router.Handle("/assets/*", s.assetsHandler())
}

// Start starts the HTTP server and background monitors
func (s *Server) Start() error {
	s.statusMonitor.Start(statusMonitorInterval)
	s.log.Info().Msg("Status monitor started")

	s.log.Info().Int("port", s.port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	s.statusMonitor.Stop()
	return s.server.Shutdown(ctx)
}

func frontendFS() (fs.FS, error) {
	return fs.Sub(embedded.Files, "frontend/dist")
}

// assetsHandler serves the embedded dashboard assets
func (s *Server) assetsHandler() http.Handler {
	sub, err := frontendFS()
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to create frontend filesystem from embedded files")
		return http.NotFoundHandler()
	}
	return http.FileServer(http.FS(sub))
}

// handleDashboard serves the dashboard HTML from the embedded filesystem
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	sub, err := frontendFS()
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to create frontend filesystem from embedded files")
		http.Error(w, "Frontend not available", http.StatusInternalServerError)
		return
	}

	data, err := fs.ReadFile(sub, "index.html")
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to read embedded index.html")
		http.Error(w, "Frontend not available", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := w.Write(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to write index.html response")
	}
}

// isStream reports whether path serves a long-lived connection
func isStream(path string) bool {
	return strings.HasSuffix(path, "/ws") || strings.HasSuffix(path, "/events/stream")
}

// streamAwareTimeout applies middleware.Timeout to everything but streams
func streamAwareTimeout(d time.Duration) func(http.Handler) http.Handler {
	timeout := middleware.Timeout(d)
	return func(next http.Handler) http.Handler {
		bounded := timeout(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isStream(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}
			bounded.ServeHTTP(w, r)
		})
	}
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
