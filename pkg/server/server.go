// Package server exposes question answering over HTTP.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/semaphore"

	"github.com/zen-systems/finquery/pkg/router"
	"github.com/zen-systems/finquery/pkg/workflow"
)

// Orchestrator is the run surface the server exposes.
type Orchestrator interface {
	ProcessQuestion(ctx context.Context, question, pinned string) (*workflow.Outcome, error)
	RouteOnly(ctx context.Context, question string) (*router.Decision, error)
}

// RunLookup retrieves completed runs by ID.
type RunLookup interface {
	Get(id string) (*workflow.Outcome, bool)
}

// Server is the HTTP front door.
type Server struct {
	orch      Orchestrator
	runs      RunLookup
	sem       *semaphore.Weighted
	vizDir    string
	cors      string
	timeout   time.Duration
	bodyLimit int64
	logger    *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithRunLookup enables GET /api/runs/{id}.
func WithRunLookup(runs RunLookup) Option {
	return func(s *Server) {
		s.runs = runs
	}
}

// WithWorkers bounds the number of questions processed at once. Further
// queries wait for a free worker.
func WithWorkers(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.sem = semaphore.NewWeighted(int64(n))
		}
	}
}

// WithVisualizationDir serves chart artifacts from dir under /visualizations/.
func WithVisualizationDir(dir string) Option {
	return func(s *Server) {
		s.vizDir = dir
	}
}

// WithCORSOrigin sets the allowed CORS origin.
func WithCORSOrigin(origin string) Option {
	return func(s *Server) {
		if origin != "" {
			s.cors = origin
		}
	}
}

// WithRequestTimeout bounds each request.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates a server around orch.
func New(orch Orchestrator, opts ...Option) *Server {
	s := &Server{
		orch:      orch,
		sem:       semaphore.NewWeighted(10),
		cors:      "*",
		timeout:   2 * time.Minute,
		bodyLimit: 1 << 20,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(CORS(s.cors))
	r.Use(Logger(s.logger))
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(s.timeout))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Post("/query", s.handleQuery)
		r.Post("/route", s.handleRoute)
		r.Get("/runs/{id}", s.handleRun)
	})

	if s.vizDir != "" {
		r.Handle("/visualizations/*", http.StripPrefix("/visualizations/", http.FileServer(http.Dir(s.vizDir))))
	}
	return r
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      s.timeout + 10*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
