package main

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/JonMunkholm/automationdb/internal/backend"
	"github.com/JonMunkholm/automationdb/internal/config"
	"github.com/JonMunkholm/automationdb/internal/core"
	"github.com/JonMunkholm/automationdb/internal/logging"
	"github.com/JonMunkholm/automationdb/internal/web"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
)

// pruneInterval is how often finished runs past the retention window are removed.
const pruneInterval = 24 * time.Hour

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	// Load and validate configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logging based on config
	logger := logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"backend", cfg.Backend.URL,
		"sync_max_concurrent", cfg.Import.MaxConcurrent,
		"history_db", cfg.Database.HistoryEnabled(),
		"rate_limit_enabled", cfg.Rate.Enabled,
	)
	slog.Debug("configuration", "config", cfg.String())

	client := backend.New(cfg.Backend.URL,
		backend.WithTimeout(cfg.Backend.Timeout),
		backend.WithToken(cfg.Backend.APIToken),
		backend.WithLogger(logger),
	)
	checks := map[string]web.HealthCheck{"backend": client.Ping}

	// Create cancellable context for background jobs
	jobCtx, cancelJobs := context.WithCancel(context.Background())
	defer cancelJobs()

	// Run history goes to Postgres when configured, otherwise memory.
	var history core.RunStore
	if cfg.Database.HistoryEnabled() {
		pool, err := connectHistory(cfg.Database)
		if err != nil {
			slog.Error("failed to connect to history database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		store := core.NewPgRunStore(pool)
		history = store
		checks["database"] = pool.Ping

		if cfg.Database.HistoryRetention > 0 {
			go pruneHistory(jobCtx, store, cfg.Database.HistoryRetention)
		}
	} else {
		slog.Info("run history kept in memory")
	}

	service := core.NewService(client, history, logger, core.Options{
		MaxConcurrentRuns: cfg.Import.MaxConcurrent,
		MaxWaitTime:       cfg.Import.MaxWaitTime,
		SyncTimeout:       cfg.Import.Timeout,
		SessionTTL:        cfg.Import.SessionTTL,
		RejectDuplicates:  cfg.Import.RejectDuplicates,
	})

	server := web.NewServer(service, cfg, checks)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		// Stop background jobs
		cancelJobs()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Wait for active sync runs to complete (with timeout)
		status := service.RunStatus()
		if status.Active > 0 {
			slog.Info("waiting for sync runs to complete", "active", status.Active)
			if err := service.WaitForRuns(shutdownCtx); err != nil {
				slog.Warn("sync runs did not complete in time", "error", err)
			} else {
				slog.Info("all sync runs completed")
			}
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	// Start server (uses addr from config internally)
	slog.Info("server starting", "addr", cfg.Server.Addr())
	if err := server.Start(); err != nil {
		slog.Info("server stopped", "error", err)
	}
}

// connectHistory opens and verifies the run-history pool.
func connectHistory(dbCfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(dbCfg.URL)
	if err != nil {
		return nil, err
	}

	poolConfig.MaxConns = int32(dbCfg.MaxConns)
	poolConfig.MinConns = int32(dbCfg.MinConns)
	poolConfig.MaxConnLifetime = dbCfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = dbCfg.MaxConnIdleTime

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	// Log which database we connected to
	if u, err := url.Parse(dbCfg.URL); err == nil {
		slog.Info("connected to history database", "name", strings.TrimPrefix(u.Path, "/"))
	} else {
		slog.Info("connected to history database")
	}
	return pool, nil
}

// pruneHistory deletes runs older than retention once at startup and then daily.
func pruneHistory(ctx context.Context, store *core.PgRunStore, retention time.Duration) {
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()

	for {
		n, err := store.Prune(ctx, time.Now().Add(-retention))
		if err != nil {
			slog.Error("history prune failed", "error", err)
		} else if n > 0 {
			slog.Info("history pruned", "runs", n)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
