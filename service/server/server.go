package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mirror520/first-web3/service/account"
	"github.com/mirror520/first-web3/service/config"
	"github.com/mirror520/first-web3/service/db"
	"github.com/mirror520/first-web3/service/metrics"
	natspkg "github.com/mirror520/first-web3/service/nats"
	"github.com/mirror520/first-web3/service/solana"
	"github.com/mirror520/first-web3/service/wallet"
)

// Server represents the HTTP server for the dashboard service.
type Server struct {
	addr         string
	cfg          *config.Config
	store        *db.Store
	resolver     *solana.Resolver
	client       *solana.Client
	session      *wallet.Session
	syncer       *account.Syncer
	publisher    natspkg.Publisher
	ssePublisher *SSEPublisher
	metrics      *metrics.Metrics
	logger       *slog.Logger
	server       *http.Server
}

// New creates a new HTTP server with the given dependencies.
// The store is optional - if nil, cluster selection and transfer history
// are not persisted. The publisher is optional - if nil, no events are
// published to NATS. The ssePublisher is optional - if nil, SSE endpoints
// won't be available. The metrics is optional - if nil, the metrics
// endpoint won't be available.
func New(
	addr string,
	cfg *config.Config,
	store *db.Store,
	resolver *solana.Resolver,
	client *solana.Client,
	session *wallet.Session,
	syncer *account.Syncer,
	publisher natspkg.Publisher,
	ssePublisher *SSEPublisher,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Server {
	return &Server{
		addr:         addr,
		cfg:          cfg,
		store:        store,
		resolver:     resolver,
		client:       client,
		session:      session,
		syncer:       syncer,
		publisher:    publisher,
		ssePublisher: ssePublisher,
		metrics:      m,
		logger:       logger,
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	mux := http.NewServeMux()

	// Network routes
	mux.Handle("GET /api/v1/network", s.instrument("/api/v1/network",
		handleGetNetwork(s.resolver, s.logger)))
	mux.Handle("PUT /api/v1/network", s.instrument("/api/v1/network",
		handleSetNetwork(s.resolver, s.store, s.logger)))

	// Wallet session routes
	mux.Handle("POST /api/v1/session", s.instrument("/api/v1/session",
		handleConnectSession(s.session, s.logger)))
	mux.Handle("DELETE /api/v1/session", s.instrument("/api/v1/session",
		handleDisconnectSession(s.session, s.syncer, s.logger)))

	// Account routes
	mux.Handle("GET /api/v1/account", s.instrument("/api/v1/account",
		handleGetAccount(s.syncer, s.logger)))
	mux.Handle("GET /api/v1/tokens", s.instrument("/api/v1/tokens",
		handleListTokens(s.client, s.resolver, s.session, s.metrics, s.logger)))

	// Transfer routes
	mux.Handle("POST /api/v1/transfers", s.instrument("/api/v1/transfers",
		handleCreateTransfer(s.client, s.resolver, s.session, s.store, s.publisher, s.metrics, s.cfg, s.logger)))
	mux.Handle("GET /api/v1/transfers", s.instrument("/api/v1/transfers",
		handleListTransfers(s.store, s.resolver, s.logger)))
	mux.Handle("POST /api/v1/airdrop", s.instrument("/api/v1/airdrop",
		handleAirdrop(s.client, s.resolver, s.session, s.syncer, s.metrics, s.cfg, s.logger)))

	// SSE streaming endpoint (if SSE publisher is configured)
	if s.ssePublisher != nil {
		mux.Handle("GET /api/v1/stream/events", handleStreamEvents(s.ssePublisher, s.metrics, s.logger))
		s.logger.Info("SSE streaming endpoint enabled")
	} else {
		s.logger.Warn("SSE publisher not configured, streaming endpoint disabled")
	}

	// Health check endpoint
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Prometheus metrics endpoint (if metrics collector is configured)
	if s.metrics != nil {
		mux.Handle("GET /metrics", promhttp.Handler())
		s.logger.Info("Prometheus metrics endpoint enabled")
	}

	// Wrap mux with CORS middleware
	handler := corsMiddleware(mux)

	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // SSE responses stream indefinitely
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("starting HTTP server", "addr", s.addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}

// instrument wraps a handler with HTTP request metrics.
func (s *Server) instrument(name string, h http.Handler) http.Handler {
	return metrics.HTTPMetricsMiddleware(s.metrics, name)(h)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")

	// Close SSE publisher first (disconnects all clients)
	if s.ssePublisher != nil {
		s.ssePublisher.Close()
	}

	// Then shutdown HTTP server
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// corsMiddleware adds CORS headers to all responses and handles OPTIONS preflight requests.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Set CORS headers for all requests
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "3600")

		// Handle preflight OPTIONS requests
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		// Pass through to next handler
		next.ServeHTTP(w, r)
	})
}
