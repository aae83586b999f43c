package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/chainedmetrics/kpimarkets/internal/domain"
	"github.com/chainedmetrics/kpimarkets/internal/server/handler"
	"github.com/chainedmetrics/kpimarkets/internal/server/middleware"
	"github.com/chainedmetrics/kpimarkets/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health    *handler.HealthHandler
	Markets   *handler.MarketHandler
	Analytics *handler.AnalyticsHandler
	Auth      *handler.AuthHandler
	Faucet    *handler.FaucetHandler
}

// Server is the HTTP + WebSocket API server for the KPI markets backend.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates a Server with all routes registered on the ServeMux.
// verifier guards the authenticated routes; limiter (optional) throttles the
// unauthenticated write endpoints.
func NewServer(
	cfg Config,
	handlers Handlers,
	verifier middleware.TokenVerifier,
	limiter domain.RateLimiter,
	wsHub *ws.Hub,
	logger *slog.Logger,
) *Server {
	mux := http.NewServeMux()

	authed := middleware.JWT(verifier)
	admin := func(h http.Handler) http.Handler { return authed(middleware.RequireAdmin(h)) }
	throttled := middleware.RateLimit(limiter, 10, time.Minute)

	// Health check (no auth required).
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Market and analytics endpoints are public reads.
	mux.HandleFunc("GET /api/markets", handlers.Markets.ListMarkets)
	mux.HandleFunc("GET /api/markets/{id}", handlers.Markets.GetMarket)
	mux.HandleFunc("GET /api/markets/{id}/prices", handlers.Analytics.GetPriceSeries)
	mux.HandleFunc("GET /api/leaderboard", handlers.Analytics.GetLeaderboard)

	// Cache refresh is an admin action.
	mux.Handle("POST /api/markets/{id}/prices/refresh", admin(http.HandlerFunc(handlers.Analytics.RefreshPriceSeries)))

	// Account endpoints. Registration and access requests are throttled per
	// client IP since they are unauthenticated writes.
	mux.Handle("POST /api/auth/register", throttled(http.HandlerFunc(handlers.Auth.Register)))
	mux.HandleFunc("POST /api/auth/login", handlers.Auth.Login)
	mux.Handle("POST /api/access-requests", throttled(http.HandlerFunc(handlers.Auth.RequestAccess)))

	// Faucet requests carry the caller identity in the token.
	mux.Handle("POST /api/faucet", authed(http.HandlerFunc(handlers.Faucet.Request)))

	// WebSocket endpoint.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	// Build the middleware chain.
	var h http.Handler = mux
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
