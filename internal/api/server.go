package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/jupitervolta/ds1054z/internal/auth"
	"github.com/jupitervolta/ds1054z/internal/config"
)

const shutdownTimeout = 30 * time.Second

// Deps are the services behind the routes. Status, Instrument and
// Telemetry may be nil; the affected routes then answer UNAVAILABLE.
type Deps struct {
	Requests   RequestPort
	Telemetry  TelemetryPort
	Status     StatusPort
	Instrument InstrumentPort
	Auth       *auth.Middleware
}

// Server represents the HTTP API server.
type Server struct {
	cfg        config.APIConfig
	deps       Deps
	logger     zerolog.Logger
	startTime  time.Time

	mu         sync.Mutex
	httpServer *http.Server
	closed     bool
}

// NewServer creates a new API server. A nil Auth middleware disables
// authentication.
func NewServer(cfg config.APIConfig, deps Deps, logger zerolog.Logger) *Server {
	if deps.Auth == nil {
		deps.Auth = auth.NewMiddleware(nil, logger)
	}
	return &Server{
		cfg:       cfg,
		deps:      deps,
		logger:    logger,
		startTime: time.Now(),
	}
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return mux
}

// ListenAndServe serves on the configured address until Shutdown.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ln)
}

// Serve serves on ln until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	srv := &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ln.Close()
	}
	s.httpServer = srv
	s.mu.Unlock()

	s.logger.Info().Str("addr", ln.Addr().String()).Bool("auth", s.deps.Auth.Enabled()).Msg("HTTP API listening")
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server failed: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the HTTP server. A later Serve returns at once.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	srv := s.httpServer
	s.mu.Unlock()
	if srv == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}
	return nil
}
