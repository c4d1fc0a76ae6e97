// Package server hosts the HTTP and WebSocket API for the wheel.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/townwheel/internal/domain"
	"github.com/alanyoungcy/townwheel/internal/server/handler"
	"github.com/alanyoungcy/townwheel/internal/server/middleware"
	"github.com/alanyoungcy/townwheel/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port            int
	CORSOrigins     []string
	APIKey          string // if empty, authentication is disabled
	RateLimitPerMin int    // if zero, rate limiting is disabled
}

// Handlers aggregates all HTTP handlers that the server registers.
type Handlers struct {
	Health  *handler.HealthHandler
	Wheel   *handler.WheelHandler
	Markets *handler.MarketHandler
}

// Server is the HTTP + WebSocket API server for the wheel.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates a new Server with all routes registered on the ServeMux
// and the middleware chain (CORS, logging, auth, rate limiting) applied.
// limiter may be nil to disable rate limiting.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Health check (no auth required).
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Wheel endpoints.
	mux.HandleFunc("GET /wheel/status", handlers.Wheel.GetStatus)
	mux.HandleFunc("GET /wheel/history", handlers.Wheel.GetHistory)
	mux.HandleFunc("POST /wheel/spin", handlers.Wheel.ForceSpin)

	// Betting endpoints.
	mux.HandleFunc("POST /wheel/bet", handlers.Markets.PlaceBet)
	mux.HandleFunc("GET /wheel/odds", handlers.Markets.GetOdds)
	mux.HandleFunc("GET /wheel/markets", handlers.Markets.GetActiveMarkets)
	mux.HandleFunc("GET /wheel/my-stats", handlers.Markets.GetMyStats)
	mux.HandleFunc("GET /wheel/leaderboard", handlers.Markets.GetLeaderboard)

	// WebSocket endpoint.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	var h http.Handler = mux

	if limiter != nil && cfg.RateLimitPerMin > 0 {
		h = middleware.RateLimit(limiter, cfg.RateLimitPerMin, time.Minute)(h)
	}
	h = middleware.Auth(cfg.APIKey)(h)
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		mux:        mux,
		logger:     logger,
	}
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
