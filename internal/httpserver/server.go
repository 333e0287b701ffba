// internal/httpserver/server.go
package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/MrSnakeDoc/schluessel/internal/config"
	"github.com/MrSnakeDoc/schluessel/internal/httpserver/deps"
	"github.com/MrSnakeDoc/schluessel/internal/httpserver/mw"
	"github.com/MrSnakeDoc/schluessel/internal/httpserver/routes"
	"github.com/MrSnakeDoc/schluessel/internal/logger"
)

// ErrNotListening is returned by Start when Listen was not called first.
var ErrNotListening = errors.New("httpserver: Start called before Listen")

// Server wraps the HTTP server and its dependencies.
type Server struct {
	http     *http.Server
	listener net.Listener
	logger   logger.Logger
	started  time.Time
}

// New builds the HTTP server (router, middlewares, route registration).
func New(cfg *config.Config, loggerClient logger.Logger, d deps.Deps) *Server {
	requestTimeout := cfg.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = 5 * time.Second
	}

	s := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           Router(loggerClient, d, requestTimeout),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	return &Server{
		http:    s,
		logger:  loggerClient,
		started: d.StartTime,
	}
}

// Router returns the full handler tree. Tests drive it through httptest.
func Router(loggerClient logger.Logger, d deps.Deps, requestTimeout time.Duration) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.GetHead)
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(mw.Log(loggerClient, d.TrustProxy))

	names := routes.RegisterAll(r, d)
	loggerClient.Debug("routes registered", logger.Strings("routes", names))
	return r
}

// Listen binds the listening socket. Bind failures surface here, before any
// background work starts.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return fmt.Errorf("bind %s: %w", s.http.Addr, err)
	}
	s.listener = ln
	return nil
}

// Addr reports the bound address, or the configured one before Listen.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.http.Addr
}

// Start serves on the bound listener (blocks until error or shutdown).
func (s *Server) Start() error {
	if s.listener == nil {
		return ErrNotListening
	}
	s.logger.Infof("HTTP server listening on %s", s.Addr())
	err := s.http.Serve(s.listener)
	// http.ErrServerClosed is expected on graceful shutdown.
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop gracefully shuts down the server with the provided context deadline.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("HTTP server shutting down...")
	err := s.http.Shutdown(ctx)
	if s.listener != nil {
		// Shutdown only closes listeners that reached Serve.
		_ = s.listener.Close()
	}
	return err
}
