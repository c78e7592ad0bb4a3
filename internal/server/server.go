// Package server provides the operational HTTP API for Conveyor.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/mgalanis/conveyor/internal/config"
	"github.com/mgalanis/conveyor/internal/database"
	"github.com/mgalanis/conveyor/internal/events"
	"github.com/mgalanis/conveyor/internal/modules/validation"
	"github.com/mgalanis/conveyor/internal/reliability"
	"github.com/mgalanis/conveyor/internal/workflow"
)

// Config holds server configuration and the services the handlers
// are built on.
type Config struct {
	Log         zerolog.Logger
	Cfg         *config.Config
	MarketDB    *database.DB
	WorkflowDB  *database.DB
	Runner      WorkflowRunner
	Executions  *workflow.ExecutionRepository
	Gates       *workflow.GateResultRepository
	DLQ         *workflow.DLQRepository
	Reports     *validation.ReportRepository
	News        NewsFetcher
	Maintenance *reliability.MaintenanceService
	Snapshots   SnapshotBackupper
	Bus         *events.Bus
}

// Server represents the HTTP server.
type Server struct {
	router     *chi.Mux
	server     *http.Server
	log        zerolog.Logger
	port       int
	marketDB   *database.DB
	workflowDB *database.DB

	workflowHandlers *WorkflowHandlers
	systemHandlers   *SystemHandlers
	dataHandlers     *DataHandlers
	eventLog         *EventLog
}

// New creates a new HTTP server.
func New(cfg Config) *Server {
	s := &Server{
		router:     chi.NewRouter(),
		log:        cfg.Log.With().Str("component", "server").Logger(),
		port:       cfg.Cfg.Port,
		marketDB:   cfg.MarketDB,
		workflowDB: cfg.WorkflowDB,
	}

	s.workflowHandlers = NewWorkflowHandlers(cfg.Runner, cfg.Executions, cfg.Gates, cfg.DLQ, cfg.Log)
	s.systemHandlers = NewSystemHandlers(cfg.Cfg.DataDir, cfg.Maintenance, cfg.Snapshots, cfg.Log)
	s.dataHandlers = NewDataHandlers(cfg.Reports, cfg.News, cfg.Log)
	s.eventLog = NewEventLog(cfg.Bus, defaultEventLogSize, cfg.Log)

	s.setupMiddleware(cfg.Cfg.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

func (s *Server) setupMiddleware(devMode bool) {
	// Recovery from panics
	s.router.Use(middleware.Recoverer)

	// Request ID
	s.router.Use(middleware.RequestID)

	// Real IP
	s.router.Use(middleware.RealIP)

	// Logging
	s.router.Use(s.loggingMiddleware)

	// Timeout
	s.router.Use(middleware.Timeout(60 * time.Second))

	// CORS
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
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
	// Health check outside /api for load balancers and probes
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/system", s.systemHandlers.HandleSystem)
		r.Get("/events", s.eventLog.HandleRecent)
		r.Post("/backup", s.systemHandlers.HandleTriggerBackup)

		r.Route("/workflows", func(r chi.Router) {
			r.Get("/", s.workflowHandlers.HandleList)
			r.Post("/", s.workflowHandlers.HandleStart)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.workflowHandlers.HandleGet)
				r.Get("/progress", s.workflowHandlers.HandleProgress)
				r.Post("/pause", s.workflowHandlers.HandlePause)
				r.Post("/resume", s.workflowHandlers.HandleResume)
			})
		})

		r.Route("/dlq", func(r chi.Router) {
			r.Get("/", s.workflowHandlers.HandleDLQList)
			r.Post("/{id}/resolve", s.workflowHandlers.HandleDLQResolve)
		})

		r.Get("/reports/{symbol}", s.dataHandlers.HandleReports)
		r.Get("/news/{symbol}", s.dataHandlers.HandleNews)
	})
}

// Router returns the configured router. Used by tests to serve
// requests without binding a port.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start starts the HTTP server. It blocks until the server stops.
func (s *Server) Start() error {
	s.log.Info().Int("port", s.port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
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
