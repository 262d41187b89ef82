// Package server exposes the assistant over HTTP.
//
// Routes:
//
//	POST   /agent          run a query, streamed as server-sent events
//	GET    /threads/{id}   latest checkpoint of a thread
//	DELETE /threads/{id}   delete a thread's checkpoints
//	GET    /healthz        liveness, plus the optional health check
//	GET    /metrics        Prometheus exposition, when configured
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/dshills/shopagent/assistant"
	"github.com/dshills/shopagent/graph/store"
)

// Runner is the part of *assistant.Assistant the server needs.
type Runner interface {
	Run(ctx context.Context, req assistant.Request) (<-chan assistant.Notification, error)
	State(ctx context.Context, threadID string) (store.Checkpoint[assistant.State], error)
	Forget(ctx context.Context, threadID string) error
}

// Server serves the HTTP API.
type Server struct {
	runner  Runner
	logger  *zap.Logger
	metrics http.Handler
	health  func(context.Context) error
}

// Option configures a Server.
type Option func(*Server)

// WithMetricsHandler mounts h on /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// WithHealthCheck makes /healthz report 503 when check fails.
func WithHealthCheck(check func(context.Context) error) Option {
	return func(s *Server) { s.health = check }
}

// New creates a Server. logger may be nil.
func New(runner Runner, logger *zap.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{runner: runner, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(s.requestID)
	r.Use(s.accessLog)
	r.Use(middleware.Recoverer)

	r.Post("/agent", s.handleAgent)
	r.Get("/threads/{threadID}", s.handleGetThread)
	r.Delete("/threads/{threadID}", s.handleDeleteThread)
	r.Get("/healthz", s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}
	return r
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully within shutdownTimeout.
func (s *Server) ListenAndServe(ctx context.Context, addr string, readHeaderTimeout, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.logger.Info("http server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
