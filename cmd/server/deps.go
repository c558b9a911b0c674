package main

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/campaignforge/telemetry/internal/config"
	"github.com/campaignforge/telemetry/internal/handler"
	"github.com/campaignforge/telemetry/internal/middleware"
	"github.com/campaignforge/telemetry/internal/persistence"
	"github.com/campaignforge/telemetry/internal/pkg/database"
	"github.com/campaignforge/telemetry/internal/repository/clickhouse"
	"github.com/campaignforge/telemetry/internal/repository/objectstore"
	"github.com/campaignforge/telemetry/internal/repository/postgres"
	"github.com/campaignforge/telemetry/internal/repository/redis"
	"github.com/campaignforge/telemetry/internal/requestscope"
	"github.com/campaignforge/telemetry/internal/serialize"
	"github.com/campaignforge/telemetry/internal/tracelog"
	"github.com/campaignforge/telemetry/internal/worker"
)

// Dependencies holds all application dependencies
type Dependencies struct {
	Config *config.Config
	Logger *zap.Logger

	// Storage, only the one backing the configured sink is opened
	ClickHouse  *database.ClickHouseDB
	Postgres    *database.PostgresDB
	Redis       *database.RedisDB
	AsynqClient *asynq.Client
	Checks      map[string]handler.Pinger

	Adapter *persistence.Adapter
	Tracer  *tracelog.Logger

	Health    *handler.HealthHandler
	Telemetry *handler.TelemetryHandler
}

// initDependencies opens the configured sink and builds the trace pipeline
func initDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger, sentryEnabled bool) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
		Checks: make(map[string]handler.Pinger),
	}

	serializer := serialize.New(serialize.Options{
		MaxDepth:     cfg.Telemetry.MaxDepth,
		MaxStringLen: cfg.Telemetry.MaxStringLen,
	})

	var persister tracelog.Persister
	if cfg.Telemetry.Enabled {
		store, err := deps.openStore(ctx)
		if err != nil {
			deps.Close()
			return nil, err
		}
		deps.Adapter = persistence.New(store, requestscope.NewGuard(nil), serializer, logger, persistence.Options{
			Sink:         cfg.Telemetry.Sink,
			WriteTimeout: cfg.Telemetry.WriteTimeout,
			OnOutcome:    middleware.SentryOutcomeReporter(sentryEnabled),
		})
		persister = deps.Adapter
	}

	deps.Tracer = tracelog.New(logger.Named("trace"), persister, tracelog.Options{
		ServiceName:       cfg.Telemetry.ServiceName,
		MaxEventsPerTrace: cfg.Telemetry.MaxEventsPerTrace,
		SessionTTL:        cfg.Telemetry.SessionTTL,
		Indent:            cfg.Log.Format == "console",
		Serializer:        serializer,
	})

	deps.Health = handler.NewHealthHandler(deps.Checks, appVersion)

	var outcomes handler.OutcomeCounter
	if deps.Adapter != nil {
		outcomes = deps.Adapter
	}
	deps.Telemetry = handler.NewTelemetryHandler(deps.Tracer, outcomes, cfg.Telemetry.Enabled, logger)

	return deps, nil
}

// openStore connects the storage named by telemetry.sink
func (d *Dependencies) openStore(ctx context.Context) (persistence.Store, error) {
	cfg := d.Config

	switch cfg.Telemetry.Sink {
	case config.SinkClickHouse:
		db, err := database.NewClickHouse(ctx, cfg.ClickHouse)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize ClickHouse: %w", err)
		}
		d.ClickHouse = db
		d.Checks["clickhouse"] = db
		repo := clickhouse.NewTraceEventRepository(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("failed to create trace_events table: %w", err)
		}
		return repo, nil

	case config.SinkPostgres:
		db, err := database.NewPostgres(ctx, cfg.Postgres)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
		}
		d.Postgres = db
		d.Checks["postgres"] = db
		repo := postgres.NewTraceEventRepository(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("failed to create trace_events table: %w", err)
		}
		return repo, nil

	case config.SinkRedis:
		db, err := database.NewRedis(ctx, cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Redis: %w", err)
		}
		d.Redis = db
		d.Checks["redis"] = db
		return redis.NewTraceEventStream(db.Client, cfg.Telemetry.RedisStream, cfg.Telemetry.RedisStreamMaxLen), nil

	case config.SinkMinIO:
		client, err := database.NewMinIO(ctx, cfg.MinIO)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize MinIO: %w", err)
		}
		d.Checks["minio"] = handler.PingFunc(func(ctx context.Context) error {
			_, err := client.BucketExists(ctx, cfg.MinIO.Bucket)
			return err
		})
		return objectstore.NewTraceEventObjects(client, cfg.MinIO.Bucket, cfg.MinIO.Prefix), nil

	case config.SinkQueue:
		db, err := database.NewRedis(ctx, cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Redis: %w", err)
		}
		d.Redis = db
		d.Checks["redis"] = db
		d.AsynqClient = asynq.NewClient(worker.RedisOpt(cfg))
		return worker.NewQueueStore(d.AsynqClient, cfg.Worker.Queue), nil

	default:
		return persistence.NewLogStore(d.Logger.Named("sink")), nil
	}
}

// Close closes all connections
func (d *Dependencies) Close() {
	if d.AsynqClient != nil {
		if err := d.AsynqClient.Close(); err != nil {
			d.Logger.Error("failed to close asynq client", zap.Error(err))
		}
	}
	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil {
			d.Logger.Error("failed to close Redis", zap.Error(err))
		}
	}
	if d.ClickHouse != nil {
		if err := d.ClickHouse.Close(); err != nil {
			d.Logger.Error("failed to close ClickHouse", zap.Error(err))
		}
	}
	if d.Postgres != nil {
		d.Postgres.Close()
	}
}
