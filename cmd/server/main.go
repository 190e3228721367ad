package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/sheetgate/internal/audit"
	"github.com/JonMunkholm/sheetgate/internal/auth"
	"github.com/JonMunkholm/sheetgate/internal/config"
	"github.com/JonMunkholm/sheetgate/internal/core"
	"github.com/JonMunkholm/sheetgate/internal/logging"
	"github.com/JonMunkholm/sheetgate/internal/sheet"
	"github.com/JonMunkholm/sheetgate/internal/store"
	"github.com/JonMunkholm/sheetgate/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"database", cfg.Database.Enabled(),
		"redis", cfg.Redis.Enabled(),
		"upload_max_concurrent", cfg.Upload.MaxConcurrent,
		"upload_require_auth", cfg.Upload.RequireAuth,
		"rate_limit_enabled", cfg.Rate.Enabled,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Accounts and audit entries go to PostgreSQL when configured,
	// otherwise they live in process memory and the log.
	var (
		accounts auth.AccountStore = store.NewMemory()
		recorder audit.Recorder    = audit.NewLogRecorder()
	)
	if cfg.Database.Enabled() {
		pool, err := store.Connect(ctx, cfg.Database)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		slog.Info("connected to database", "name", store.DatabaseName(cfg.Database.URL))

		if cfg.Database.RunMigrations {
			if err := store.Migrate(ctx, pool); err != nil {
				slog.Error("failed to apply migrations", "error", err)
				os.Exit(1)
			}
		}
		accounts = store.NewPostgres(pool)
		recorder = audit.NewPostgresRecorder(pool)
	} else {
		slog.Warn("DATABASE_URL not set, accounts are kept in memory")
	}

	var denyList auth.DenyList = auth.NewMemoryDenyList()
	if cfg.Redis.Enabled() {
		redisPool := auth.NewRedisPool(cfg.Redis.URL)
		defer redisPool.Close()
		denyList = auth.NewRedisDenyList(redisPool)
		slog.Info("token revocations stored in redis")
	}

	hashLimiter := core.NewLimiter("hash", cfg.Auth.HashMaxConcurrent, cfg.Auth.HashMaxWait)
	parseLimiter := core.NewLimiter("parse", cfg.Upload.MaxConcurrent, cfg.Upload.MaxWaitTime)

	tokens := auth.NewTokenIssuer(cfg.Auth.JWTSecret,
		auth.WithTTL(cfg.Auth.TokenTTL),
		auth.WithLeeway(cfg.Auth.ClockSkew),
		auth.WithDenyList(denyList),
	)
	hasher := auth.NewBcryptHasher(cfg.Auth.BcryptCost, hashLimiter)

	server := web.NewServer(web.Deps{
		Auth:        auth.NewService(accounts, hasher, tokens, recorder),
		Guard:       auth.NewGuard(tokens),
		HashLimiter: hashLimiter,
		Ingestor: sheet.NewIngestor(
			sheet.NewGate(cfg.Upload.MaxFileSize),
			sheet.NewParser(slog.Default()),
			parseLimiter,
			cfg.Upload.ParseTimeout,
			recorder,
		),
	}, cfg)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("server starting", "addr", cfg.Server.Addr())
		return server.Start()
	})

	// Graceful shutdown
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return err
		}

		// Parses outlive their requests when they time out; let them finish.
		if active := parseLimiter.ActiveCount(); active > 0 {
			slog.Info("waiting for parses to complete", "active", active)
			if err := parseLimiter.WaitForDrain(shutdownCtx); err != nil {
				slog.Warn("parses did not complete in time", "error", err)
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}
