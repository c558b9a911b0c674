package persistence

import (
	"context"

	"go.uber.org/zap"
)

// LogStore writes rows as structured log lines. It is the default sink when
// no database is configured.
type LogStore struct {
	log *zap.Logger
}

// NewLogStore creates a LogStore
func NewLogStore(log *zap.Logger) *LogStore {
	if log == nil {
		log = zap.NewNop()
	}
	return &LogStore{log: log}
}

// Insert implements Store
func (s *LogStore) Insert(ctx context.Context, row *Row) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.log.Info("trace event",
		zap.String("event_id", row.EventID),
		zap.String("trace_id", row.TraceID),
		zap.String("event_name", row.EventName),
		zap.String("status", row.Status),
		zap.Time("timestamp", row.Timestamp),
		zap.Float64("duration_ms", row.DurationMs),
		zap.String("payload", row.Payload),
		zap.String("context", row.Context),
	)
	return nil
}
