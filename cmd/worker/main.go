package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/campaignforge/telemetry/internal/config"
	"github.com/campaignforge/telemetry/internal/persistence"
	"github.com/campaignforge/telemetry/internal/pkg/database"
	"github.com/campaignforge/telemetry/internal/pkg/logger"
	"github.com/campaignforge/telemetry/internal/repository/clickhouse"
	"github.com/campaignforge/telemetry/internal/repository/postgres"
	"github.com/campaignforge/telemetry/internal/worker"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	if err := logger.Init(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format}); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	log := logger.Log
	defer func() { _ = logger.Sync() }()

	log.Info("starting worker service", zap.String("store", cfg.Worker.Store))

	store, cleanup, err := initStore(context.Background(), cfg)
	if err != nil {
		log.Fatal("failed to initialize store", zap.Error(err))
	}
	defer cleanup()

	// Create worker server
	workerServer, err := worker.NewServer(log, cfg, store)
	if err != nil {
		log.Fatal("failed to create worker server", zap.Error(err))
	}

	// Start worker in a goroutine
	errCh := make(chan error, 1)
	go func() {
		errCh <- workerServer.Start()
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		log.Info("shutting down worker...")
		workerServer.Stop()
	case err := <-errCh:
		if err != nil {
			log.Error("worker server error", zap.Error(err))
		}
	}

	log.Info("worker stopped")
}

// initStore connects the table dequeued trace events are written to
func initStore(ctx context.Context, cfg *config.Config) (persistence.Store, func(), error) {
	switch cfg.Worker.Store {
	case config.SinkPostgres:
		pgDB, err := database.NewPostgres(ctx, cfg.Postgres)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
		}
		repo := postgres.NewTraceEventRepository(pgDB)
		if err := repo.EnsureSchema(ctx); err != nil {
			pgDB.Close()
			return nil, nil, fmt.Errorf("failed to create trace_events table: %w", err)
		}
		return repo, pgDB.Close, nil

	default:
		chDB, err := database.NewClickHouse(ctx, cfg.ClickHouse)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize ClickHouse: %w", err)
		}
		repo := clickhouse.NewTraceEventRepository(chDB)
		if err := repo.EnsureSchema(ctx); err != nil {
			_ = chDB.Close()
			return nil, nil, fmt.Errorf("failed to create trace_events table: %w", err)
		}
		return repo, func() { _ = chDB.Close() }, nil
	}
}
