package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/campaignforge/telemetry/internal/persistence"
	"github.com/campaignforge/telemetry/internal/pkg/database"
)

const createTraceEventsTable = `
	CREATE TABLE IF NOT EXISTS trace_events (
		event_id    UUID PRIMARY KEY,
		trace_id    TEXT NOT NULL,
		event_name  TEXT NOT NULL,
		status      TEXT NOT NULL,
		timestamp   TIMESTAMPTZ NOT NULL,
		duration_ms DOUBLE PRECISION NOT NULL CHECK (duration_ms >= 0),
		payload     JSONB NOT NULL,
		context     JSONB NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_trace_events_trace_id ON trace_events (trace_id);
	CREATE INDEX IF NOT EXISTS idx_trace_events_name_ts ON trace_events (event_name, timestamp DESC);
`

// TraceEventRepository writes finalized traces to PostgreSQL
type TraceEventRepository struct {
	db *database.PostgresDB
}

// NewTraceEventRepository creates a new trace event repository
func NewTraceEventRepository(db *database.PostgresDB) *TraceEventRepository {
	return &TraceEventRepository{db: db}
}

// EnsureSchema creates the trace_events table if it does not exist
func (r *TraceEventRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, createTraceEventsTable); err != nil {
		return fmt.Errorf("failed to create trace_events table: %w", err)
	}
	return nil
}

// Insert writes one row
func (r *TraceEventRepository) Insert(ctx context.Context, row *persistence.Row) error {
	query := `
		INSERT INTO trace_events (event_id, trace_id, event_name, status, timestamp, duration_ms, payload, context)
		VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb, $8::jsonb)
	`

	if _, err := r.db.Exec(ctx, query,
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
	if r.db.Pool == nil {
		return nil, database.ErrNotConnected
	}

	query := `
		SELECT event_id::text, trace_id, event_name, status, timestamp, duration_ms, payload::text, context::text
		FROM trace_events
		WHERE trace_id = $1
		ORDER BY timestamp
	`

	rows, err := r.db.Pool.Query(ctx, query, traceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list trace events: %w", err)
	}

	result, err := pgx.CollectRows(rows, pgx.RowToStructByPos[persistence.Row])
	if err != nil {
		return nil, fmt.Errorf("failed to scan trace events: %w", err)
	}
	return result, nil
}
