package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"golang.org/x/sync/errgroup"

	"github.com/mmynk/groupledger/internal/auth"
	"github.com/mmynk/groupledger/internal/cache"
	"github.com/mmynk/groupledger/internal/config"
	"github.com/mmynk/groupledger/internal/groups"
	"github.com/mmynk/groupledger/internal/jobs"
	"github.com/mmynk/groupledger/internal/ledger"
	"github.com/mmynk/groupledger/internal/lock"
	"github.com/mmynk/groupledger/internal/middleware"
	"github.com/mmynk/groupledger/internal/server"
	"github.com/mmynk/groupledger/internal/storage"
	"github.com/mmynk/groupledger/internal/storage/mongo"
	"github.com/mmynk/groupledger/internal/storage/sqlite"
	"github.com/mmynk/groupledger/pkg/logging"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	logger := logging.Setup(logging.Options{
		Level: cfg.SlogLevel(),
		JSON:  cfg.IsProduction(),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("Server failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	logger.Info("Storage initialized", "driver", cfg.StoreDriver)

	managerOpts := []groups.Option{groups.WithLogger(logger)}
	if cfg.RedisEnabled() {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		managerOpts = append(managerOpts,
			groups.WithLocker(lock.NewRedisLocker(rdb, lock.DefaultRedisOptions())),
			groups.WithBalanceCache(cache.NewBalanceCache(rdb, cfg.BalanceCacheTTL)),
		)
		logger.Info("Redis lock and balance cache enabled", "addr", cfg.RedisAddr)
	} else {
		logger.Info("Redis not configured, using in-process group locks")
	}

	manager := groups.NewManager(store, managerOpts...)

	var limiter *middleware.RateLimiter
	if cfg.RateLimitRPS > 0 {
		limiter = middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	}

	handler := server.NewHandler(server.Deps{
		Authenticator: auth.NewPasswordAuthenticator(store),
		Users:         store,
		JWT:           auth.NewJWTManager(cfg.JWTSecret, cfg.TokenTTL),
		Groups:        manager,
		Ledger:        ledger.NewService(store, logger),
		Logger:        logger,
		CORSOrigins:   cfg.CORSAllowedOrigins,
		RateLimiter:   limiter,
	})

	srv := &http.Server{
		Addr: cfg.ListenAddr,
		// h2c serves HTTP/2 without TLS so gRPC clients can call the Connect handlers.
		Handler:           h2c.NewHandler(handler, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	var auditor *jobs.Auditor
	if cfg.AuditSchedule != "" {
		auditor = jobs.NewAuditor(store, logger, 5*time.Minute)
		if err := auditor.Start(cfg.AuditSchedule); err != nil {
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Connect server starting", "address", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if auditor != nil {
			auditor.Stop(shutdownCtx)
		}
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func openStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	switch cfg.StoreDriver {
	case config.DriverMongo:
		return mongo.New(ctx, cfg.MongoURI, cfg.MongoDatabase, mongo.WithMaxRetries(cfg.StoreMaxRetries))
	default:
		return sqlite.New(cfg.DBPath, sqlite.WithMaxRetries(cfg.StoreMaxRetries))
	}
}
