package devserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// Server is the development run service.
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	logger     *slog.Logger
}

// Config holds dependencies and settings for a Server.
type Config struct {
	// Store is required.
	Store  *Store
	Logger *slog.Logger

	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Version      string

	// PollRate and PollBurst limit log polls per client. Zero disables it.
	PollRate  float64
	PollBurst int
}

// New creates a Server with all routes configured.
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	h := NewHandlers(cfg.Store, logger, cfg.Version)

	var limiter *pollLimiter
	if cfg.PollRate > 0 {
		limiter = newPollLimiter(cfg.PollRate, cfg.PollBurst)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /runs", h.HandleListRuns)
	mux.HandleFunc("GET /runs/{run_id}", h.HandleGetRun)
	mux.Handle("GET /runs/{run_id}/logs", rateLimitMiddleware(limiter, http.HandlerFunc(h.HandleRunLogs)))
	mux.HandleFunc("POST /runs/{run_id}/cancel", h.HandleCancelRun)
	mux.HandleFunc("GET /health", h.HandleHealth)

	// Middleware chain (outermost executes first):
	// request ID → security headers → tracing → logging → recovery → handler.
	var handler http.Handler = mux
	handler = recoveryMiddleware(logger, handler)
	handler = loggingMiddleware(logger, handler)
	handler = tracingMiddleware(handler)
	handler = securityHeadersMiddleware(handler)
	handler = requestIDMiddleware(handler)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		handler: handler,
		logger:  logger,
	}
}

// Handler returns the root HTTP handler for use in tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start serves until Shutdown. It returns nil after a clean shutdown.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("devserver: listen: %w", err)
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("dev server starting", "addr", ln.Addr().String())
	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("devserver: serve: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("dev server shutting down")
	return s.httpServer.Shutdown(ctx)
}
