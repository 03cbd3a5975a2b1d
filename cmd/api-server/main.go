package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/hackgods/consultation-scheduling/internal/api"
	"github.com/hackgods/consultation-scheduling/internal/appointment"
	"github.com/hackgods/consultation-scheduling/internal/auth"
	"github.com/hackgods/consultation-scheduling/internal/config"
	"github.com/hackgods/consultation-scheduling/internal/db"
	"github.com/hackgods/consultation-scheduling/internal/events"
	"github.com/hackgods/consultation-scheduling/internal/logging"
	redisclient "github.com/hackgods/consultation-scheduling/internal/redis"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	logger, err := logging.New("api-server", cfg.IsProduction())
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("api-server starting up",
		zap.String("env", cfg.Env),
		zap.String("http_port", cfg.HTTPPort),
		zap.String("timezone", cfg.Timezone.String()),
		zap.Bool("allow_customer_cancel_pending", cfg.AllowCustomerCancelPending),
		zap.Bool("enforce_approval_conflicts", cfg.EnforceApprovalConflicts),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		logger.Fatal("postgres connection error", zap.Error(err))
	}
	defer pgPool.Close()

	if err := db.EnsureSchema(rootCtx, pgPool); err != nil {
		logger.Fatal("schema setup error", zap.Error(err))
	}
	logger.Info("connected to Postgres")

	// Connect Redis. Without it bookings still serialize on the database
	// advisory lock, so the server degrades instead of exiting.
	var (
		rdb    *redis.Client
		locker redisclient.Locker = redisclient.NoopLocker{}
	)
	rdb, err = redisclient.NewRedisClient(rootCtx, cfg)
	if err != nil {
		logger.Warn("redis unavailable, running without the schedule lock", zap.Error(err))
	} else {
		defer func() {
			if err := rdb.Close(); err != nil {
				logger.Warn("error closing redis", zap.Error(err))
			}
		}()
		locker = redisclient.NewRedisEmployeeLocker(rdb, cfg.LockTTL)
		logger.Info("connected to Redis")
	}

	resolver := auth.NewResolver(auth.NewPgProfileStore(pgPool))
	authn := auth.NewAuthenticator(auth.NewTokenVerifier(cfg.JWTSecret, cfg.JWTAudience), resolver)

	repo := appointment.NewPgRepository(pgPool)
	svc := appointment.NewService(repo, locker, resolver, cfg, logger.Named("appointments"))

	checks := []api.DependencyCheck{
		{Name: "postgres", Critical: true, Ping: pgPool.Ping},
		{Name: "redis", Ping: func(ctx context.Context) error {
			if rdb == nil {
				return errors.New("not connected")
			}
			return rdb.Ping(ctx).Err()
		}},
	}
	if brokers := cfg.KafkaBrokerList(); len(brokers) > 0 {
		checks = append(checks, api.DependencyCheck{Name: "kafka", Ping: func(ctx context.Context) error {
			return events.Ping(ctx, brokers)
		}})
	}

	router := api.NewRouter(api.RouterConfig{
		Service:         svc,
		Auth:            authn,
		Health:          api.NewHealthHandler(cfg.Env, version, checks...),
		Logger:          logger.Named("http"),
		AllowedOrigin:   cfg.AllowedOrigin,
		RequestTimeout:  cfg.RequestTimeout,
		RateLimitPerMin: cfg.RateLimitPerMin,
		RateLimitBurst:  cfg.RateLimitBurst,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.RequestTimeout,
		WriteTimeout:      cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-rootCtx.Done()
	logger.Info("shutting down api-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}
