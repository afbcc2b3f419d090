// Package api provides the HTTP server for IntakePipe.
//
// It exposes intake sessions as a small REST surface so that many patients can be served
// concurrently by one Engine, plus the slot catalog and Prometheus metrics.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/BTreeMap/IntakePipe/internal/flow"
	"github.com/BTreeMap/IntakePipe/internal/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultShutdownTimeout bounds graceful shutdown once the run context is cancelled.
const DefaultShutdownTimeout = 30 * time.Second

// Server serves intake sessions over HTTP.
type Server struct {
	engine          *flow.Engine
	sessions        *store.InMemoryStore
	gatherer        prometheus.Gatherer
	shutdownTimeout time.Duration
}

// Opts holds configuration for the API server.
type Opts struct {
	Gatherer        prometheus.Gatherer
	ShutdownTimeout time.Duration
}

// Option configures the API server.
type Option func(*Opts)

// WithGatherer sets the registry exposed on /metrics. The default is the global registry.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(o *Opts) {
		o.Gatherer = g
	}
}

// WithShutdownTimeout overrides DefaultShutdownTimeout.
func WithShutdownTimeout(d time.Duration) Option {
	return func(o *Opts) {
		o.ShutdownTimeout = d
	}
}

// NewServer creates a server for engine. Sessions are kept in sessions.
func NewServer(engine *flow.Engine, sessions *store.InMemoryStore, opts ...Option) (*Server, error) {
	if engine == nil {
		return nil, errors.New("engine is required")
	}
	if sessions == nil {
		return nil, errors.New("session store is required")
	}
	cfg := Opts{Gatherer: prometheus.DefaultGatherer, ShutdownTimeout: DefaultShutdownTimeout}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Server{
		engine:          engine,
		sessions:        sessions,
		gatherer:        cfg.Gatherer,
		shutdownTimeout: cfg.ShutdownTimeout,
	}, nil
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /sessions", s.createSessionHandler)
	mux.HandleFunc("GET /sessions/{id}", s.getSessionHandler)
	mux.HandleFunc("DELETE /sessions/{id}", s.deleteSessionHandler)
	mux.HandleFunc("POST /sessions/{id}/turns", s.turnHandler)
	mux.HandleFunc("GET /catalog", s.catalogHandler)
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	return mux
}

// Run listens on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server.Run: API listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("API server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("Server.Run: shutting down API server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("API server shutdown failed: %w", err)
	}
	slog.Info("Server.Run: API server stopped")
	return nil
}
