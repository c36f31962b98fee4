// Package server provides HTTP server management and lifecycle handling for
// the homologos API. It includes server setup, middleware configuration,
// route management, and graceful shutdown capabilities with proper error
// handling and logging.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iamed/homologos-api/config"
	"github.com/iamed/homologos-api/data"
	"github.com/iamed/homologos-api/handlers"
	"github.com/iamed/homologos-api/interfaces"
	"github.com/iamed/homologos-api/logging"
	"github.com/iamed/homologos-api/metrics"
)

// Server represents the HTTP server
type Server struct {
	server        *http.Server
	router        chi.Router
	dataContainer *data.DataContainer
	validator     interfaces.DataValidator
	config        *config.Config
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config, dataContainer *data.DataContainer, validator interfaces.DataValidator) *Server {
	router := chi.NewRouter()

	server := &Server{
		server: &http.Server{
			Handler:      router,
			Addr:         cfg.Address + ":" + cfg.Port,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		router:        router,
		dataContainer: dataContainer,
		validator:     validator,
		config:        cfg,
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

// setupMiddleware configures all middleware
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(BlockDirectAccessMiddleware) // Put BEFORE RealIPMiddleware to see original RemoteAddr
	s.router.Use(RealIPMiddleware)
	s.router.Use(logging.RequestLogger(logging.DefaultLoggingService.Logger))
	s.router.Use(middleware.RedirectSlashes)
	s.router.Use(middleware.Recoverer)
	s.router.Use(RequestSizeMiddleware(s.config))
	s.router.Use(RateLimitHandler)
	s.router.Use(metrics.Middleware)
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	// Substitute resolution
	s.router.Get("/homologos/{cum}", handlers.FindHomologos(s.dataContainer, s.validator))
	s.router.Post("/homologos/batch", handlers.BatchHomologos(s.dataContainer, s.validator))

	// Registry access
	s.router.Get("/medicamento/{cum}", handlers.FindMedicamentByCUM(s.dataContainer, s.validator))
	s.router.Get("/database/{pageNumber}", handlers.ServePagedRecords(s.dataContainer))
	s.router.Get("/database", handlers.ServeAllRecords(s.dataContainer))

	// Model inspection
	s.router.Get("/vectors", handlers.ServeVectors(s.dataContainer))
	s.router.Get("/model", handlers.ServeModel(s.dataContainer))
	s.router.Get("/model/export", handlers.ExportModel(s.dataContainer))
	s.router.Get("/model/report", handlers.ServeReport(s.dataContainer))

	// Operational endpoints
	s.router.Get("/health", handlers.HealthCheck(s.dataContainer))
	s.router.Handle("/metrics", promhttp.Handler())
}

// Start starts the server
func (s *Server) Start() error {
	// Start profiling server if in development mode
	if s.config.Env == "dev" {
		s.startProfilingServer()
	}

	logging.Info(fmt.Sprintf("Starting server at: %s:%s", s.config.Address, s.config.Port))
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info("Shutting down server...")

	if err := s.server.Shutdown(ctx); err != nil {
		logging.Error("Server forced to shutdown", "error", err)
		// If graceful shutdown fails, force close
		if err := s.server.Close(); err != nil {
			logging.Error("Server close error", "error", err)
			return err
		}
	}

	// Wait a bit for any ongoing requests to complete
	logging.Info("Waiting for ongoing requests to complete...")
	time.Sleep(2 * time.Second)

	logging.Info("Server shutdown complete")
	return nil
}

// startProfilingServer starts the pprof profiling server in development mode
func (s *Server) startProfilingServer() {
	go func() {
		fmt.Println("Profiling server started at http://localhost:6060/debug/pprof/")
		if err := http.ListenAndServe("localhost:6060", nil); err != nil {
			fmt.Println("Profiling server failed: ", err)
		}
	}()
}

// Router exposes the configured router for tests.
func (s *Server) Router() chi.Router {
	return s.router
}
