// Package redis appends finalized traces to a Redis stream.
package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/campaignforge/telemetry/internal/persistence"
)

// DefaultStream is the stream key used when none is configured
const DefaultStream = "telemetry:trace_events"

// streamAdder is the subset of the go-redis client used by the stream
type streamAdder interface {
	XAdd(ctx context.Context, a *goredis.XAddArgs) *goredis.StringCmd
}

// TraceEventStream writes one stream entry per row with XADD
type TraceEventStream struct {
	client streamAdder
	stream string
	maxLen int64
}

// NewTraceEventStream creates a stream store. maxLen caps the stream
// approximately; zero leaves it unbounded.
func NewTraceEventStream(client streamAdder, stream string, maxLen int64) *TraceEventStream {
	if stream == "" {
		stream = DefaultStream
	}
	return &TraceEventStream{client: client, stream: stream, maxLen: maxLen}
}

// Insert implements persistence.Store
func (s *TraceEventStream) Insert(ctx context.Context, row *persistence.Row) error {
	args := &goredis.XAddArgs{
		Stream: s.stream,
		Values: Values(row),
	}
	if s.maxLen > 0 {
		args.MaxLen = s.maxLen
		args.Approx = true
	}

	if err := s.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("failed to append trace event to %s: %w", s.stream, err)
	}
	return nil
}

// Values flattens a row into stream entry fields
func Values(row *persistence.Row) map[string]interface{} {
	return map[string]interface{}{
		"event_id":    row.EventID,
		"trace_id":    row.TraceID,
		"event_name":  row.EventName,
		"status":      row.Status,
		"timestamp":   row.Timestamp.UTC().Format(time.RFC3339Nano),
		"duration_ms": strconv.FormatFloat(row.DurationMs, 'f', -1, 64),
		"payload":     row.Payload,
		"context":     row.Context,
	}
}
