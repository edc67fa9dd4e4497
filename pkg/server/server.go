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

	"praxis-hq/charter/pkg/config"
	"praxis-hq/charter/pkg/policy/evaluator"
	"praxis-hq/charter/pkg/policy/store"
	"praxis-hq/charter/pkg/principle"
	"praxis-hq/charter/pkg/review"
	"praxis-hq/charter/pkg/telemetry/metrics"
)

// Compiler drives the compilation chain for a changed principle. The
// pipeline implements it; tests stub it.
type Compiler interface {
	PrincipleChanged(ctx context.Context, principleID string) error
}

// Server is the HTTP API server.
type Server struct {
	config     *config.ServerConfig
	evaluator  *evaluator.Evaluator
	principles principle.Store
	policies   store.Store
	compiler   Compiler
	queue      *review.Queue
	collector  *metrics.Collector
	logger     *slog.Logger

	httpServer   *http.Server
	shutdownChan chan struct{}
	shutdownOnce sync.Once
	mu           sync.RWMutex
	isRunning    bool
}

// NewServer creates the API server. The metrics collector may be nil, which
// drops the /metrics route.
func NewServer(
	cfg *config.ServerConfig,
	eval *evaluator.Evaluator,
	principles principle.Store,
	policies store.Store,
	compiler Compiler,
	queue *review.Queue,
	collector *metrics.Collector,
	logger *slog.Logger,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		config:       cfg,
		evaluator:    eval,
		principles:   principles,
		policies:     policies,
		compiler:     compiler,
		queue:        queue,
		collector:    collector,
		logger:       logger.With("component", "server"),
		shutdownChan: make(chan struct{}),
	}
}

// Start starts the HTTP server and blocks until shutdown.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}
	s.isRunning = true
	s.mu.Unlock()

	s.httpServer = &http.Server{
		Addr:           s.config.ListenAddress,
		Handler:        s.setupRoutes(),
		ReadTimeout:    s.config.ReadTimeout,
		WriteTimeout:   s.config.WriteTimeout,
		IdleTimeout:    s.config.IdleTimeout,
		MaxHeaderBytes: s.config.MaxHeaderBytes,
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", "address", s.config.ListenAddress)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case sig := <-sigChan:
		s.logger.Info("received shutdown signal", "signal", sig.String())
		return s.Shutdown(context.Background())
	case err := <-errChan:
		return err
	case <-s.shutdownChan:
		return s.Shutdown(context.Background())
	}
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		if !s.isRunning {
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()

		s.logger.Info("initiating graceful shutdown", "timeout", s.config.ShutdownTimeout.String())

		shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
		defer cancel()

		if s.httpServer != nil {
			if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
				s.logger.Error("error during server shutdown", "error", err)
				shutdownErr = fmt.Errorf("server shutdown error: %w", err)
			}
		}

		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()

		s.logger.Info("server stopped")
	})

	return shutdownErr
}

// IsRunning reports whether the server is serving.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Handler returns the configured HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.setupRoutes()
}

// setupRoutes configures HTTP routes and the middleware chain.
func (s *Server) setupRoutes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/evaluate", s.handleEvaluate)

	mux.HandleFunc("POST /v1/principles", s.handleCreatePrinciple)
	mux.HandleFunc("PUT /v1/principles/{id}", s.handleAmendPrinciple)
	mux.HandleFunc("GET /v1/principles", s.handleListPrinciples)
	mux.HandleFunc("GET /v1/principles/{id}", s.handleGetPrinciple)

	mux.HandleFunc("GET /v1/rules", s.handleListRules)
	mux.HandleFunc("GET /v1/generations/current", s.handleCurrentGeneration)

	mux.HandleFunc("GET /v1/review", s.handleReviewPending)
	mux.HandleFunc("POST /v1/review/signal", s.handleReviewSignal)

	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /readyz", s.handleReadyz)

	if s.collector != nil && s.collector.Enabled() {
		mux.Handle("GET "+s.collector.Path(), s.collector.Handler())
	}

	var handler http.Handler = mux
	handler = requestIDMiddleware(handler)
	handler = loggingMiddleware(s.logger)(handler)
	handler = recoveryMiddleware(s.logger)(handler)
	return handler
}
