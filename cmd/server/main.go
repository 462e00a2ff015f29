package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/mirror520/first-web3/service/account"
	"github.com/mirror520/first-web3/service/config"
	"github.com/mirror520/first-web3/service/db"
	"github.com/mirror520/first-web3/service/metrics"
	"github.com/mirror520/first-web3/service/nats"
	"github.com/mirror520/first-web3/service/server"
	"github.com/mirror520/first-web3/service/solana"
	"github.com/mirror520/first-web3/service/wallet"
)

func main() {
	// Load and validate configuration from environment
	// This fails fast if any required config is missing or invalid
	cfg := config.MustLoad()

	// Setup structured logging
	logger := setupLogger(cfg.LogLevel)
	logger.Info("starting server",
		"addr", cfg.ServerAddr,
		"log_level", cfg.LogLevel,
		"default_cluster", cfg.DefaultCluster,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.NewMetrics(prometheus.DefaultRegisterer)

	// Database is optional; without it cluster selection and transfer
	// history are not persisted.
	var store *db.Store
	if cfg.DatabaseURL != "" {
		dbPool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer dbPool.Close()

		if err := dbPool.Ping(ctx); err != nil {
			logger.Error("failed to ping database", "error", err)
			os.Exit(1)
		}
		logger.Info("connected to database")
		store = db.NewStore(dbPool, m)
	} else {
		logger.Warn("DATABASE_URL not set, persistence disabled")
	}

	// NATS is optional; without it no events are published and the SSE
	// endpoint is disabled.
	var publisher nats.Publisher
	var ssePublisher *server.SSEPublisher
	if cfg.NATSURL != "" {
		p, err := nats.NewPublisher(cfg.NATSURL, m, logger)
		if err != nil {
			logger.Warn("failed to connect to NATS, events disabled", "error", err)
		} else {
			defer p.Close()
			publisher = p

			sse, err := server.NewSSEPublisher(cfg.NATSURL, logger)
			if err != nil {
				logger.Warn("failed to create SSE publisher, streaming disabled", "error", err)
			} else {
				ssePublisher = sse
			}
		}
	}

	resolver := solana.NewResolver(cfg.SolanaMainnetRPCURL, m, logger,
		solana.WithSkipRedundantConnect(cfg.SkipRedundantConnect),
	)
	client := solana.NewClient(m, logger)
	session := wallet.NewSession(logger)
	names := solana.NewSNSResolver(logger)

	syncer := account.NewSyncer(client, names, session, resolver, cfg.ResolveTimeout, m, logger)
	go syncer.Run(ctx)

	// Bridge account view updates onto NATS. Only settled views are
	// published; intermediate resolving states stay server-local.
	if publisher != nil {
		go publishAccountUpdates(ctx, syncer, publisher, logger)
	}

	// Select the initial cluster: the persisted choice when one exists,
	// the configured default otherwise.
	startCluster := cfg.DefaultCluster
	if store != nil {
		switch saved, err := store.GetSelectedCluster(ctx); {
		case err == nil:
			startCluster = saved
		case !errors.Is(err, db.ErrNotFound):
			logger.Warn("failed to read persisted cluster selection", "error", err)
		}
	}
	if cluster, err := solana.ParseCluster(startCluster); err != nil {
		logger.Error("invalid start cluster", "cluster", startCluster, "error", err)
		os.Exit(1)
	} else if _, err := resolver.Connect(ctx, cluster); err != nil {
		// The dashboard still serves; the first successful PUT /network
		// establishes the connection.
		logger.Warn("initial cluster connect failed", "cluster", cluster, "error", err)
	}

	httpServer := server.New(
		cfg.ServerAddr,
		cfg,
		store,
		resolver,
		client,
		session,
		syncer,
		publisher,
		ssePublisher,
		m,
		logger,
	)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- httpServer.Start()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error("server error", "error", err)
		os.Exit(1)
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown server gracefully", "error", err)
			os.Exit(1)
		}

		logger.Info("server shutdown complete")
	}
}

// publishAccountUpdates forwards settled account views to NATS until ctx is
// done.
func publishAccountUpdates(ctx context.Context, syncer *account.Syncer, publisher nats.Publisher, logger *slog.Logger) {
	updates, unsubscribe := syncer.Updates()
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case view, ok := <-updates:
			if !ok {
				return
			}
			if view.State != account.Ready {
				continue
			}
			if err := publisher.PublishAccountUpdate(ctx, nats.FromAccountView(view)); err != nil {
				logger.Warn("failed to publish account update", "wallet", view.Wallet, "error", err)
			}
		}
	}
}

// setupLogger creates a structured logger with the given log level.
func setupLogger(levelStr string) *slog.Logger {
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}
