package database

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"

	"github.com/campaignforge/telemetry/internal/config"
	"github.com/campaignforge/telemetry/internal/pkg/logger"
)

func TestMain(m *testing.M) {
	_ = logger.Init(logger.Config{
		Level:  "error",
		Format: "console",
	})
	os.Exit(m.Run())
}

func minioConfig(endpoint string) config.MinIOConfig {
	return config.MinIOConfig{Endpoint: endpoint, Bucket: "traces"}
}

func TestTruncateSQL(t *testing.T) {
	tests := []struct {
		name     string
		sql      string
		maxLen   int
		expected string
	}{
		{
			name:     "short SQL unchanged",
			sql:      "SELECT * FROM trace_events",
			maxLen:   100,
			expected: "SELECT * FROM trace_events",
		},
		{
			name:     "exactly at max length",
			sql:      "SELECT 1",
			maxLen:   8,
			expected: "SELECT 1",
		},
		{
			name:     "truncated with ellipsis",
			sql:      "INSERT INTO trace_events (event_id, trace_id) VALUES ($1, $2)",
			maxLen:   24,
			expected: "INSERT INTO trace_events...",
		},
		{
			name:     "max length of 0",
			sql:      "SELECT",
			maxLen:   0,
			expected: "...",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, truncateSQL(tt.sql, tt.maxLen))
		})
	}
}

func TestQueryTracer(t *testing.T) {
	t.Run("records start time and sql", func(t *testing.T) {
		tracer := newQueryTracer()
		ctx := tracer.TraceQueryStart(context.Background(), nil, pgx.TraceQueryStartData{SQL: "SELECT 1"})

		start, ok := ctx.Value(queryStartKey{}).(time.Time)
		assert.True(t, ok)
		assert.False(t, start.IsZero())
		assert.Equal(t, "SELECT 1", ctx.Value(querySQLKey{}))
	})

	t.Run("counts successful and failed queries", func(t *testing.T) {
		tracer := newQueryTracer()
		ctx := tracer.TraceQueryStart(context.Background(), nil, pgx.TraceQueryStartData{SQL: "SELECT 1"})

		tracer.TraceQueryEnd(ctx, nil, pgx.TraceQueryEndData{})
		tracer.TraceQueryEnd(ctx, nil, pgx.TraceQueryEndData{Err: errors.New("connection refused")})

		m := tracer.Metrics()
		assert.Equal(t, int64(2), m.TotalQueries)
		assert.Equal(t, int64(1), m.FailedQueries)
	})

	t.Run("counts slow queries", func(t *testing.T) {
		tracer := newQueryTracer()
		ctx := context.WithValue(context.Background(), queryStartKey{}, time.Now().Add(-time.Second))
		ctx = context.WithValue(ctx, querySQLKey{}, "SELECT pg_sleep(1)")

		tracer.TraceQueryEnd(ctx, nil, pgx.TraceQueryEndData{})

		assert.Equal(t, int64(1), tracer.Metrics().SlowQueries)
	})

	t.Run("ignores missing start time", func(t *testing.T) {
		tracer := newQueryTracer()
		tracer.TraceQueryEnd(context.Background(), nil, pgx.TraceQueryEndData{})
		assert.Equal(t, int64(0), tracer.Metrics().TotalQueries)
	})
}

func TestPostgresDBNilPool(t *testing.T) {
	db := &PostgresDB{}
	db.Close()
	assert.ErrorIs(t, db.Ping(context.Background()), ErrNotConnected)

	_, err := db.Exec(context.Background(), "SELECT 1")
	assert.ErrorIs(t, err, ErrNotConnected)
}
