package api

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/anders/showsync/internal/sync"
)

// Backend bundles the injected storage dependencies of the server. Ping is
// optional; when nil the health endpoint always reports healthy.
type Backend struct {
	Records sync.RecordStore
	Devices sync.DeviceRegistry
	Ping    func() error
}

// Server is the HTTP API server for showsync.
type Server struct {
	config      Config
	http        *http.Server
	backend     Backend
	coord       *sync.Coordinator
	metrics     *Metrics
	rateLimiter *RateLimiter
}

// NewServer creates a new Server with the given config and backend.
func NewServer(cfg Config, be Backend) (*Server, error) {
	if be.Records == nil || be.Devices == nil {
		return nil, fmt.Errorf("backend record store and device registry are required")
	}

	s := &Server{
		config:      cfg,
		backend:     be,
		coord:       sync.NewCoordinator(be.Records, be.Devices, cfg.CASRetries),
		metrics:     NewMetrics(),
		rateLimiter: NewRateLimiter(),
	}

	s.http = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      s.routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s, nil
}

// Start begins listening for HTTP requests (non-blocking).
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.config.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	go func() {
		if err := s.http.Serve(ln); err != nil && err != http.ErrServerClosed {
			slog.Error("http server", "err", err)
		}
	}()

	return nil
}

// Shutdown gracefully stops the server and its rate limiter.
func (s *Server) Shutdown(ctx context.Context) error {
	s.rateLimiter.Close()
	return s.http.Shutdown(ctx)
}

// Handler returns the fully wired HTTP handler, for embedding in tests or an
// existing server.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// routes builds the HTTP handler with all routes and middleware.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	// Health & metrics
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /metricz", s.handleMetrics)

	// Records
	mux.HandleFunc("POST /records", s.withRateLimit(s.handlePushRecord, s.config.RateLimitPush))
	mux.HandleFunc("DELETE /records/{id}", s.withRateLimit(s.handleDeleteRecord, s.config.RateLimitPush))
	mux.HandleFunc("GET /records/all", s.withRateLimit(s.handlePullAll, s.config.RateLimitPull))
	mux.HandleFunc("GET /records/pending", s.withRateLimit(s.handlePullPending, s.config.RateLimitPull))
	mux.HandleFunc("DELETE /records/{id}/pending", s.withRateLimit(s.handleAcknowledge, s.config.RateLimitOther))

	// Devices
	mux.HandleFunc("PUT /devices/{name}", s.withRateLimit(s.handleRegister, s.config.RateLimitOther))
	mux.HandleFunc("DELETE /devices/{id}", s.withRateLimit(s.handleDeregister, s.config.RateLimitOther))

	maxBytes := s.config.MaxBodyBytes
	if maxBytes <= 0 {
		maxBytes = 10 << 20
	}

	return chain(mux, recoveryMiddleware, requestIDMiddleware, loggerMiddleware, deviceMiddleware, metricsMiddleware(s.metrics), loggingMiddleware, maxBytesMiddleware(maxBytes))
}

// handleHealth returns a health check response, pinging the backend when it
// supports it.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.backend.Ping != nil {
		if err := s.backend.Ping(); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "error", "detail": "store unreachable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleMetrics returns a snapshot of server metrics.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.metrics.Snapshot())
}
