package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/campaignforge/telemetry/internal/validator"
)

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	return load(".", "./config", "/etc/campaignforge")
}

func load(paths ...string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	return fromViper(v)
}

// readConfig reads the optional config file. Only a missing file is ignored.
func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

func fromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Server
	cfg.Server.Host = v.GetString("server_host")
	cfg.Server.Port = v.GetInt("server_port")
	cfg.Server.Env = v.GetString("server_env")

	// Logging
	cfg.Log.Level = v.GetString("log_level")
	cfg.Log.Format = v.GetString("log_format")

	// Telemetry
	cfg.Telemetry.Enabled = v.GetBool("telemetry_enabled")
	cfg.Telemetry.Sink = v.GetString("telemetry_sink")
	cfg.Telemetry.WriteTimeout = time.Duration(v.GetInt("telemetry_write_timeout_ms")) * time.Millisecond
	cfg.Telemetry.SessionTTL = time.Duration(v.GetInt("telemetry_session_ttl_s")) * time.Second
	cfg.Telemetry.MaxEventsPerTrace = v.GetInt("telemetry_max_events_per_trace")
	cfg.Telemetry.MaxDepth = v.GetInt("telemetry_max_depth")
	cfg.Telemetry.MaxStringLen = v.GetInt("telemetry_max_string_len")
	cfg.Telemetry.ServiceName = v.GetString("telemetry_service_name")
	cfg.Telemetry.RedisStream = v.GetString("telemetry_redis_stream")
	cfg.Telemetry.RedisStreamMaxLen = v.GetInt64("telemetry_redis_stream_max_len")

	// ClickHouse
	cfg.ClickHouse.Host = v.GetString("clickhouse_host")
	cfg.ClickHouse.Port = v.GetInt("clickhouse_port")
	cfg.ClickHouse.User = v.GetString("clickhouse_user")
	cfg.ClickHouse.Password = v.GetString("clickhouse_password")
	cfg.ClickHouse.Database = v.GetString("clickhouse_db")

	// PostgreSQL
	cfg.Postgres.Host = v.GetString("postgres_host")
	cfg.Postgres.Port = v.GetInt("postgres_port")
	cfg.Postgres.User = v.GetString("postgres_user")
	cfg.Postgres.Password = v.GetString("postgres_password")
	cfg.Postgres.Database = v.GetString("postgres_db")
	cfg.Postgres.SSLMode = v.GetString("postgres_ssl_mode")
	cfg.Postgres.MaxConns = v.GetInt32("postgres_max_conns")
	cfg.Postgres.MinConns = v.GetInt32("postgres_min_conns")

	// Redis
	cfg.Redis.Host = v.GetString("redis_host")
	cfg.Redis.Port = v.GetInt("redis_port")
	cfg.Redis.Password = v.GetString("redis_password")
	cfg.Redis.DB = v.GetInt("redis_db")

	// MinIO
	cfg.MinIO.Endpoint = v.GetString("minio_endpoint")
	cfg.MinIO.AccessKey = v.GetString("minio_access_key")
	cfg.MinIO.SecretKey = v.GetString("minio_secret_key")
	cfg.MinIO.UseSSL = v.GetBool("minio_use_ssl")
	cfg.MinIO.Bucket = v.GetString("minio_bucket")
	cfg.MinIO.Prefix = v.GetString("minio_prefix")

	// Worker
	cfg.Worker.Concurrency = v.GetInt("worker_concurrency")
	cfg.Worker.Queue = v.GetString("worker_queue")
	cfg.Worker.Store = v.GetString("worker_store")

	// Sentry
	cfg.Sentry.Enabled = v.GetBool("sentry_enabled")
	cfg.Sentry.DSN = v.GetString("sentry_dsn")
	cfg.Sentry.Environment = v.GetString("sentry_environment")
	cfg.Sentry.Release = v.GetString("sentry_release")
	cfg.Sentry.Debug = v.GetBool("sentry_debug")
	cfg.Sentry.SampleRate = v.GetFloat64("sentry_sample_rate")
	cfg.Sentry.TracesSampleRate = v.GetFloat64("sentry_traces_sample_rate")

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server_host", "0.0.0.0")
	v.SetDefault("server_port", 8080)
	v.SetDefault("server_env", "development")

	// Logging defaults
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")

	// Telemetry defaults
	v.SetDefault("telemetry_enabled", true)
	v.SetDefault("telemetry_sink", SinkLog)
	v.SetDefault("telemetry_write_timeout_ms", 2000)
	v.SetDefault("telemetry_session_ttl_s", 600)
	v.SetDefault("telemetry_max_events_per_trace", 1000)
	v.SetDefault("telemetry_max_depth", 16)
	v.SetDefault("telemetry_max_string_len", 8192)
	v.SetDefault("telemetry_service_name", "campaignforge")
	v.SetDefault("telemetry_redis_stream", "telemetry:trace_events")
	v.SetDefault("telemetry_redis_stream_max_len", 100000)

	// ClickHouse defaults
	v.SetDefault("clickhouse_host", "localhost")
	v.SetDefault("clickhouse_port", 9000)
	v.SetDefault("clickhouse_user", "campaignforge")
	v.SetDefault("clickhouse_password", "campaignforge")
	v.SetDefault("clickhouse_db", "campaignforge")

	// PostgreSQL defaults
	v.SetDefault("postgres_host", "localhost")
	v.SetDefault("postgres_port", 5432)
	v.SetDefault("postgres_user", "campaignforge")
	v.SetDefault("postgres_password", "campaignforge")
	v.SetDefault("postgres_db", "campaignforge")
	v.SetDefault("postgres_ssl_mode", "disable")
	v.SetDefault("postgres_max_conns", 10)
	v.SetDefault("postgres_min_conns", 2)

	// Redis defaults
	v.SetDefault("redis_host", "localhost")
	v.SetDefault("redis_port", 6379)
	v.SetDefault("redis_password", "")
	v.SetDefault("redis_db", 0)

	// MinIO defaults
	v.SetDefault("minio_endpoint", "localhost:9002")
	v.SetDefault("minio_access_key", "campaignforge")
	v.SetDefault("minio_secret_key", "campaignforge123")
	v.SetDefault("minio_use_ssl", false)
	v.SetDefault("minio_bucket", "campaignforge-telemetry")
	v.SetDefault("minio_prefix", "trace-events")

	// Worker defaults
	v.SetDefault("worker_concurrency", 10)
	v.SetDefault("worker_queue", "telemetry")
	v.SetDefault("worker_store", SinkClickHouse)

	// Sentry defaults
	v.SetDefault("sentry_enabled", false)
	v.SetDefault("sentry_sample_rate", 1.0)
	v.SetDefault("sentry_traces_sample_rate", 0.1)
}

func validate(cfg *Config) error {
	if err := validator.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if cfg.Sentry.Enabled && cfg.Sentry.DSN == "" {
		return fmt.Errorf("invalid configuration: sentry_dsn is required when sentry is enabled")
	}
	return nil
}
