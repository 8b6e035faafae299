package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"sentrix-hq/charon/pkg/audit"
	"sentrix-hq/charon/pkg/config"
	"sentrix-hq/charon/pkg/pipeline"
)

// HealthReporter exposes a collaborator's availability for /healthz.
type HealthReporter interface {
	IsHealthy() bool
}

// Options wires the server's collaborators.
type Options struct {
	// Orchestrator runs the filtering pipeline (required).
	Orchestrator *pipeline.Orchestrator

	// Audit serves decision lookups (optional).
	Audit audit.Store

	// MetricsHandler serves GET /metrics (optional).
	MetricsHandler http.Handler

	// ClassifierHealth and GeneratorHealth feed /healthz (optional).
	ClassifierHealth HealthReporter
	GeneratorHealth  HealthReporter
}

// Server is the HTTP front end.
type Server struct {
	config           *config.ServerConfig
	orchestrator     *pipeline.Orchestrator
	audit            audit.Store
	metricsHandler   http.Handler
	classifierHealth HealthReporter
	generatorHealth  HealthReporter

	httpServer   *http.Server
	shutdownOnce sync.Once
	logger       *slog.Logger
}

// New creates the server.
func New(cfg *config.ServerConfig, opts Options, logger *slog.Logger) (*Server, error) {
	if opts.Orchestrator == nil {
		return nil, fmt.Errorf("orchestrator cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Server{
		config:           cfg,
		orchestrator:     opts.Orchestrator,
		audit:            opts.Audit,
		metricsHandler:   opts.MetricsHandler,
		classifierHealth: opts.ClassifierHealth,
		generatorHealth:  opts.GeneratorHealth,
		logger:           logger.With("component", "server"),
	}, nil
}

// routes builds the request mux.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/filter", s.handleFilter)
	mux.HandleFunc("/v1/decisions/", s.handleDecision)
	mux.HandleFunc("/healthz", s.handleHealth)
	if s.metricsHandler != nil {
		mux.Handle("/metrics", s.metricsHandler)
	}
	return mux
}

// Start runs the server and blocks until the context is cancelled, a
// shutdown signal arrives, or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         s.config.ListenAddress,
		Handler:      s.routes(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "address", s.config.ListenAddress)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, shutting down")
		return s.Shutdown()
	case sig := <-sigChan:
		s.logger.Info("received shutdown signal", "signal", sig.String())
		return s.Shutdown()
	case err := <-errChan:
		return err
	}
}

// Shutdown drains in-flight requests within the configured timeout.
func (s *Server) Shutdown() error {
	var err error
	s.shutdownOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()

		if shutdownErr := s.httpServer.Shutdown(ctx); shutdownErr != nil {
			err = fmt.Errorf("graceful shutdown failed: %w", shutdownErr)
			return
		}
		s.logger.Info("server stopped")
	})
	return err
}
