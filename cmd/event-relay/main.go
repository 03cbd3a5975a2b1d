package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hackgods/consultation-scheduling/internal/config"
	"github.com/hackgods/consultation-scheduling/internal/db"
	"github.com/hackgods/consultation-scheduling/internal/events"
	"github.com/hackgods/consultation-scheduling/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	logger, err := logging.New("event-relay", cfg.IsProduction())
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	brokers := cfg.KafkaBrokerList()
	if len(brokers) == 0 {
		logger.Fatal("KAFKA_BROKERS is required for the event relay")
	}

	logger.Info("event-relay starting up",
		zap.String("env", cfg.Env),
		zap.Strings("brokers", brokers),
		zap.String("topic", cfg.KafkaTopic),
		zap.Duration("interval", cfg.RelayInterval),
		zap.Int("batch_size", cfg.RelayBatchSize),
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

	writer := events.NewWriter(brokers, cfg.KafkaTopic)
	defer func() {
		if err := writer.Close(); err != nil {
			logger.Warn("error closing kafka writer", zap.Error(err))
		}
	}()

	relay := events.NewRelay(events.NewPgOutbox(pgPool), writer, logger, events.RelayConfig{
		PollEvery: cfg.RelayInterval,
		BatchSize: cfg.RelayBatchSize,
	})

	// Run once at startup
	if n, err := relay.RelayOnce(rootCtx); err != nil {
		logger.Error("initial relay failed", zap.Error(err))
	} else {
		logger.Info("initial relay complete", zap.Int("events", n))
	}

	relay.Run(rootCtx)
	logger.Info("shutdown signal received, stopping event relay")
}
