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

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"

	bcache "bookwise/backend/internal/cache"
	"bookwise/backend/internal/config"
	"bookwise/backend/internal/provider"
	"bookwise/backend/internal/provider/google"
	"bookwise/backend/internal/service/calendarsync"
	"bookwise/backend/internal/store/postgres"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})).With(
		slog.String("service", "bookwise-server"),
	)
	slog.SetDefault(log)

	cfg, err := config.Load()
	if err != nil {
		log.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}

	log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLogLevel(cfg.LogLevel)})).With(
		slog.String("service", "bookwise-server"),
	)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("connecting to database", databaseLogArgs(cfg.DatabaseURL)...)
	db, err := postgres.Open(ctx, cfg.DatabaseURL, postgres.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
		ConnMaxIdleTime: cfg.DBConnMaxIdleTime,
	})
	if err != nil {
		args := append([]any{slog.Any("err", err)}, databaseLogArgs(cfg.DatabaseURL)...)
		log.Error("database connection failed", args...)
		os.Exit(1)
	}
	defer func() {
		if err := postgres.Close(db); err != nil {
			log.Warn("database close failed", slog.Any("err", err))
		}
	}()

	var busyCache bcache.BusyCache = bcache.NewMemoryCache()
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn("redis unreachable, using in-memory busy cache", slog.Any("err", err), slog.String("redis_addr", cfg.RedisAddr))
		} else {
			busyCache = bcache.NewRedisCache(rdb)
			log.Info("redis busy cache enabled", slog.String("redis_addr", cfg.RedisAddr))
			defer func() {
				if err := rdb.Close(); err != nil {
					log.Warn("redis close failed", slog.Any("err", err))
				}
			}()
		}
	}

	registry := provider.NewRegistry()
	registry.Register(google.New(cfg.GoogleClientID, cfg.GoogleClientSecret))

	repo := postgres.NewSchedulingRepo(db)
	syncSvc := calendarsync.NewService(repo, registry, busyCache, log,
		calendarsync.WithTTL(cfg.BusyCacheTTL),
		calendarsync.WithProviderTimeout(cfg.ProviderTimeout),
		calendarsync.WithDefaultProvider(cfg.DefaultProvider),
	)

	sweeper := cron.New()
	_, err = sweeper.AddFunc("@every "+cfg.SyncInterval.String(), func() {
		sweepCtx, cancel := context.WithTimeout(context.Background(), cfg.SyncInterval)
		defer cancel()

		report, err := syncSvc.SyncDueConnections(sweepCtx)
		if err != nil {
			log.Error("sync sweep failed", slog.Any("err", err))
			return
		}
		if report.Synced > 0 || report.Failed > 0 {
			log.Info("sync sweep finished",
				slog.Int("synced", report.Synced),
				slog.Int("failed", report.Failed),
				slog.Int("events_fetched", report.EventsFetched),
			)
		}
	})
	if err != nil {
		log.Error("sync sweep schedule failed", slog.Any("err", err))
		os.Exit(1)
	}
	sweeper.Start()

	log.Info("started", slog.Duration("sync_interval", cfg.SyncInterval))

	<-ctx.Done()
	log.Info("shutdown signal received")
	shutdown(log, sweeper, cfg.ShutdownTimeout)
}

func shutdown(log *slog.Logger, sweeper *cron.Cron, timeout time.Duration) {
	log.Info("stopping sync sweep", slog.Duration("timeout", timeout))

	stopCtx := sweeper.Stop()
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-stopCtx.Done():
		log.Info("sync sweep stopped")
	case <-timer.C:
		log.Warn("sync sweep shutdown timed out")
	}
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func databaseLogArgs(databaseURL string) []any {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return []any{slog.String("db_url", "invalid")}
	}
	name := strings.TrimPrefix(u.Path, "/")
	host := u.Hostname()
	port := u.Port()
	if port == "" {
		port = "default"
	}
	if host == "" {
		host = "unknown"
	}
	if name == "" {
		name = "unknown"
	}
	return []any{
		slog.String("db_host", host),
		slog.String("db_port", port),
		slog.String("db_name", name),
	}
}
