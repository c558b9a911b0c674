package clickhouse

import (
	"context"
	"fmt"

	"github.com/campaignforge/telemetry/internal/persistence"
	"github.com/campaignforge/telemetry/internal/pkg/database"
)

const createTraceEventsTable = `
	CREATE TABLE IF NOT EXISTS trace_events (
		event_id    String,
		trace_id    String,
		event_name  LowCardinality(String),
		status      LowCardinality(String),
		timestamp   DateTime64(6, 'UTC'),
		duration_ms Float64,
		payload     String CODEC(ZSTD(3)),
		context     String CODEC(ZSTD(3))
	)
	ENGINE = MergeTree
	PARTITION BY toYYYYMM(timestamp)
	ORDER BY (event_name, timestamp, trace_id)
`

// TraceEventRepository writes finalized traces to ClickHouse
type TraceEventRepository struct {
	db *database.ClickHouseDB
}

// NewTraceEventRepository creates a new trace event repository
func NewTraceEventRepository(db *database.ClickHouseDB) *TraceEventRepository {
	return &TraceEventRepository{db: db}
}

// EnsureSchema creates the trace_events table if it does not exist
func (r *TraceEventRepository) EnsureSchema(ctx context.Context) error {
	if err := r.db.Exec(ctx, createTraceEventsTable); err != nil {
		return fmt.Errorf("failed to create trace_events table: %w", err)
	}
	return nil
}

// Insert writes one row
func (r *TraceEventRepository) Insert(ctx context.Context, row *persistence.Row) error {
	query := `
		INSERT INTO trace_events (
			event_id, trace_id, event_name, status, timestamp,
			duration_ms, payload, context
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	if err := r.db.Exec(ctx, query,
		row.EventID,
		row.TraceID,
		row.EventName,
		row.Status,
		row.Timestamp,
		row.DurationMs,
		row.Payload,
		row.Context,
	); err != nil {
		return fmt.Errorf("failed to insert trace event: %w", err)
	}
	return nil
}

// ListByTraceID returns the rows stored for a trace
func (r *TraceEventRepository) ListByTraceID(ctx context.Context, traceID string) ([]persistence.Row, error) {
	if r.db.Conn == nil {
		return nil, database.ErrNotConnected
	}

	var rows []persistence.Row
	if err := r.db.Conn.Select(ctx, &rows, `
		SELECT event_id, trace_id, event_name, status, timestamp, duration_ms, payload, context
		FROM trace_events
		WHERE trace_id = ?
		ORDER BY timestamp
	`, traceID); err != nil {
		return nil, fmt.Errorf("failed to list trace events: %w", err)
	}
	return rows, nil
}
