// Package server exposes gridcalc tables over HTTP. tables live in a
// gridcalc.Registry and are addressed by handle; every successful edit is
// also pushed to websocket watchers of the table.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/vogtb/go-spreadsheet/packages/gridcalc"
	"github.com/vogtb/go-spreadsheet/packages/gridcalc/internal/config"
)

const shutdownTimeout = 5 * time.Second

type Server struct {
	registry  *gridcalc.Registry
	hub       *hub
	logger    *slog.Logger
	staticDir string
	mux       *http.ServeMux
}

type Option func(*Server)

// WithStaticDir serves a built frontend from dir, falling back to its
// index.html for unknown paths
func WithStaticDir(dir string) Option {
	return func(s *Server) {
		s.staticDir = dir
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

func New(registry *gridcalc.Registry, opts ...Option) *Server {
	s := &Server{
		registry: registry,
		logger:   slog.New(slog.DiscardHandler),
		mux:      http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.hub = newHub(s.logger)
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /api/test-engine", s.handleTestEngine)
	s.mux.HandleFunc("POST /api/tables", s.handleCreateTable)
	s.mux.HandleFunc("DELETE /api/tables/{handle}", s.handleDestroyTable)
	s.mux.HandleFunc("GET /api/tables/{handle}/cells", s.handleSnapshot)
	s.mux.HandleFunc("GET /api/tables/{handle}/cells/{addr}", s.handleGetCell)
	s.mux.HandleFunc("PUT /api/tables/{handle}/cells/{addr}", s.handleSetCell)
	s.mux.HandleFunc("POST /api/tables/{handle}/eval", s.handleEval)
	s.mux.HandleFunc("GET /api/tables/{handle}/watch", s.handleWatch)

	if s.staticDir != "" {
		s.mux.Handle("/", s.staticHandler())
	}
}

// Handler returns the routes wrapped in request logging
func (s *Server) Handler() http.Handler {
	return s.logRequests(s.mux)
}

// staticHandler serves files from the static dir and answers every path
// that is not a file with index.html, so client side routes resolve
func (s *Server) staticHandler() http.Handler {
	files := http.FileServer(http.Dir(s.staticDir))
	index := filepath.Join(s.staticDir, "index.html")

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := filepath.Join(s.staticDir, filepath.FromSlash(filepath.Clean("/"+r.URL.Path)))
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			files.ServeHTTP(w, r)
			return
		}
		http.ServeFile(w, r, index)
	})
}

// Run serves on cfg.Addr until ctx is cancelled, then shuts down
// gracefully. open websocket watchers are closed first.
func (s *Server) Run(ctx context.Context, cfg config.ServerConfig) error {
	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln, cfg)
}

// Serve is Run on an existing listener
func (s *Server) Serve(ctx context.Context, ln net.Listener, cfg config.ServerConfig) error {
	srv := &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", slog.String("addr", ln.Addr().String()))
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	s.hub.closeAll()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
