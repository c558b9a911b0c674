package config

import (
	"strconv"
	"time"
)

// Config holds all configuration for the application
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Log        LogConfig        `mapstructure:"log"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry"`
	ClickHouse ClickHouseConfig `mapstructure:"clickhouse"`
	Postgres   PostgresConfig   `mapstructure:"postgres"`
	Redis      RedisConfig      `mapstructure:"redis"`
	MinIO      MinIOConfig      `mapstructure:"minio"`
	Worker     WorkerConfig     `mapstructure:"worker"`
	Sentry     SentryConfig     `mapstructure:"sentry"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port" validate:"gt=0,max=65535"`
	Env  string `mapstructure:"env" validate:"oneof=development staging production test"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format" validate:"oneof=json console"`
}

// Telemetry sinks
const (
	SinkLog        = "log"
	SinkClickHouse = "clickhouse"
	SinkPostgres   = "postgres"
	SinkRedis      = "redis"
	SinkMinIO      = "minio"
	SinkQueue      = "queue"
)

// TelemetryConfig holds tracing pipeline configuration
type TelemetryConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Sink selects the storage collaborator finalized traces are written to
	Sink string `mapstructure:"sink" validate:"oneof=log clickhouse postgres redis minio queue"`
	// WriteTimeout bounds the single persistence attempt
	WriteTimeout time.Duration `mapstructure:"write_timeout" validate:"gt=0"`
	// SessionTTL evicts traces that were started but never ended
	SessionTTL        time.Duration `mapstructure:"session_ttl" validate:"gt=0"`
	MaxEventsPerTrace int           `mapstructure:"max_events_per_trace" validate:"gte=1"`
	MaxDepth          int           `mapstructure:"max_depth" validate:"gte=1"`
	MaxStringLen      int           `mapstructure:"max_string_len" validate:"gte=16"`
	ServiceName       string        `mapstructure:"service_name" validate:"required"`
	RedisStream       string        `mapstructure:"redis_stream"`
	RedisStreamMaxLen int64         `mapstructure:"redis_stream_max_len"`
}

// ClickHouseConfig holds ClickHouse configuration
type ClickHouseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
}

// PostgresConfig holds PostgreSQL configuration
type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"ssl_mode"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the Redis address
func (c RedisConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// MinIOConfig holds MinIO configuration
type MinIOConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Bucket    string `mapstructure:"bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// WorkerConfig holds background worker configuration
type WorkerConfig struct {
	Concurrency int    `mapstructure:"concurrency" validate:"gte=1"`
	Queue       string `mapstructure:"queue"`
	// Store is where dequeued trace events are written
	Store string `mapstructure:"store" validate:"oneof=clickhouse postgres"`
}

// SentryConfig holds Sentry configuration
type SentryConfig struct {
	Enabled          bool    `mapstructure:"enabled"`
	DSN              string  `mapstructure:"dsn"`
	Environment      string  `mapstructure:"environment"`
	Release          string  `mapstructure:"release"`
	Debug            bool    `mapstructure:"debug"`
	SampleRate       float64 `mapstructure:"sample_rate"`
	TracesSampleRate float64 `mapstructure:"traces_sample_rate"`
}

// IsDevelopment returns true if running in development mode
func (c Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}

// IsProduction returns true if running in production mode
func (c Config) IsProduction() bool {
	return c.Server.Env == "production"
}
