// Package server exposes the query gateway and its collaborators over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joacominatel/ciphersql/internal/app"
	"github.com/joacominatel/ciphersql/internal/assignment"
	"github.com/joacominatel/ciphersql/internal/gateway"
	"github.com/joacominatel/ciphersql/internal/hint"
	"github.com/rs/cors"
	"golang.org/x/sync/errgroup"
)

// Backend is the application surface the handlers call.
type Backend interface {
	Execute(ctx context.Context, req app.ExecuteRequest) (*gateway.Response, error)
	Assignments(ctx context.Context) ([]assignment.Assignment, error)
	Assignment(ctx context.Context, id string) (*assignment.Assignment, error)
	Hint(ctx context.Context, req hint.Request) string
	Ping(ctx context.Context) error
}

// Config holds configuration for the HTTP server.
type Config struct {
	Addr            string
	CORSOrigins     []string
	ShutdownTimeout time.Duration
	Logger          *slog.Logger
}

// Server is the HTTP front end.
type Server struct {
	backend Backend
	cfg     Config
	logger  *slog.Logger
}

// New creates a server instance.
func New(backend Backend, cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Addr == "" {
		cfg.Addr = ":5000"
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 5 * time.Second
	}
	return &Server{backend: backend, cfg: cfg, logger: cfg.Logger}
}

// Handler returns the router with middleware and routes installed.
func (s *Server) Handler() http.Handler {
	r := chi.NewMux()
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		requestLogger(s.logger),
		middleware.Recoverer,
		cors.New(cors.Options{
			AllowedOrigins: s.cfg.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type", "Authorization"},
			ExposedHeaders: []string{"Retry-After"},
		}).Handler,
	)

	h := &handlers{backend: s.backend, logger: s.logger}

	r.Get("/", h.root)
	r.Get("/healthz", h.health)
	r.Route("/api", func(r chi.Router) {
		r.Get("/assignments", h.listAssignments)
		r.Get("/assignments/{id}", h.getAssignment)
		r.Post("/execute", h.execute)
		r.Post("/hint", h.hint)
	})
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "Not found")
	})

	return r
}

// Serve starts the HTTP server and blocks until ctx is cancelled, then
// shuts down gracefully. Request contexts derive from ctx, so statements
// still running at shutdown are cancelled.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
	}
	return s.serve(ctx, ln)
}

func (s *Server) serve(ctx context.Context, ln net.Listener) error {
	s.logger.Info("starting API server", slog.String("addr", ln.Addr().String()))

	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Handler: s.Handler(),
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	eg.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()

		s.logger.Debug("shutting down API server")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}
