// Package server exposes a database over HTTP. One table per path segment;
// conditions ride in the query string, rows in JSON bodies, and errors map
// onto conventional status codes.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/mesh-intelligence/larder/internal/database"
)

// Server serves one open database.
type Server struct {
	db     *database.Database
	addr   string
	logger *slog.Logger
}

// New returns a server for db listening on addr.
func New(db *database.Database, addr string, logger *slog.Logger) *Server {
	return &Server{db: db, addr: addr, logger: logger}
}

// Router builds the HTTP routing table. Exposed so tests can drive handlers
// through httptest without binding a port.
func (s *Server) Router() http.Handler {
	r := chi.NewMux()
	r.Use(
		middleware.Recoverer,
		s.logRequests,
	)

	r.Get("/.schema", s.handleSchema)
	r.Route("/{table}", func(r chi.Router) {
		r.Get("/", s.handleSelect)
		r.Post("/", s.handleInsert)
		r.Put("/", s.handleUpdate)
		r.Delete("/", s.handleDelete)
		r.Post("/create", s.handleCreate)
		r.Delete("/drop", s.handleDrop)
		r.Put("/alter", s.handleAlter)
	})
	return r
}

// Serve runs the HTTP server until the context is cancelled, then shuts
// down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("starting server", "addr", s.addr)

	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Addr:    s.addr,
		Handler: s.Router(),
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	eg.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Debug("shutting down server")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}

// logRequests records one line per request under a fresh request id.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("request",
			"id", uuid.NewString(),
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
		)
	})
}
