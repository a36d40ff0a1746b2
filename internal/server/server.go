// Package server is the HTTP + WebSocket API surface of the auction house.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/openmint/auctionhouse/internal/server/handler"
	"github.com/openmint/auctionhouse/internal/server/middleware"
	"github.com/openmint/auctionhouse/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // if empty, owner-route authentication is disabled
}

// Handlers aggregates all HTTP handlers that the server registers.
type Handlers struct {
	Health   *handler.HealthHandler
	Auctions *handler.AuctionHandler
	Bids     *handler.BidHandler
	Pending  *handler.PendingHandler
	Tokens   *handler.TokenHandler
}

// Server is the headless HTTP + WebSocket API server for the auction house.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates a Server with all routes registered on the ServeMux,
// wires up middleware (logging, CORS), and attaches the WebSocket hub.
// Owner-gated routes (mint, accept, renew) additionally go through API-key
// auth; public routes (queries, bids, withdrawals, transfers) do not.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, logger *slog.Logger) *Server {
	mux := http.NewServeMux()
	ownerOnly := middleware.Auth(cfg.APIKey)

	// Health check.
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Auction lifecycle.
	mux.Handle("POST /api/auctions", ownerOnly(http.HandlerFunc(handlers.Auctions.Mint)))
	mux.HandleFunc("GET /api/auctions", handlers.Auctions.List)
	mux.HandleFunc("GET /api/auctions/{id}", handlers.Auctions.Get)
	mux.HandleFunc("GET /api/auctions/{id}/remaining", handlers.Auctions.Remaining)
	mux.HandleFunc("GET /api/auctions/{id}/events", handlers.Auctions.Events)
	mux.Handle("POST /api/auctions/{id}/accept", ownerOnly(http.HandlerFunc(handlers.Auctions.Accept)))
	mux.Handle("POST /api/auctions/{id}/renew", ownerOnly(http.HandlerFunc(handlers.Auctions.Renew)))

	// Bidding and pull payments.
	mux.HandleFunc("POST /api/auctions/{id}/bids", handlers.Bids.Place)
	mux.HandleFunc("POST /api/withdrawals", handlers.Pending.Withdraw)
	mux.HandleFunc("GET /api/accounts/{address}/pending", handlers.Pending.Balance)

	// Token ownership.
	mux.HandleFunc("GET /api/tokens/{id}", handlers.Tokens.Get)
	mux.HandleFunc("POST /api/tokens/{id}/transfer", handlers.Tokens.Transfer)
	mux.HandleFunc("POST /api/tokens/{id}/approve", handlers.Tokens.Approve)
	mux.HandleFunc("POST /api/tokens/{id}/operators", handlers.Tokens.Operators)

	// Event feed.
	mux.HandleFunc("GET /api/events", handlers.Auctions.AllEvents)

	// WebSocket endpoint.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	var h http.Handler = mux
	h = middleware.Logging(logger)(h)
	h = corsMiddleware(cfg.CORSOrigins)(h)

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

// corsMiddleware returns middleware that sets CORS headers for the allowed
// origins. If no origins are specified, all origins are allowed.
func corsMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			if origin != "" {
				allowed := len(allowedOrigins) == 0
				for _, o := range allowedOrigins {
					if strings.EqualFold(o, "*") || strings.EqualFold(o, origin) {
						allowed = true
						break
					}
				}

				if allowed {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
					w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key")
					w.Header().Set("Access-Control-Max-Age", "86400")
				}
			}

			// Handle preflight requests.
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
