package persistence

import (
	"time"

	"github.com/campaignforge/telemetry/internal/domain"
	"github.com/campaignforge/telemetry/internal/serialize"
)

// Row is the storage shape of one finalized trace. Payload and Context hold
// JSON documents.
type Row struct {
	EventID    string    `ch:"event_id" db:"event_id" json:"event_id"`
	TraceID    string    `ch:"trace_id" db:"trace_id" json:"trace_id"`
	EventName  string    `ch:"event_name" db:"event_name" json:"event_name"`
	Status     string    `ch:"status" db:"status" json:"status"`
	Timestamp  time.Time `ch:"timestamp" db:"timestamp" json:"timestamp"`
	DurationMs float64   `ch:"duration_ms" db:"duration_ms" json:"duration_ms"`
	Payload    string    `ch:"payload" db:"payload" json:"payload"`
	Context    string    `ch:"context" db:"context" json:"context"`
}

// ToRow maps every field of the event onto a Row, serializing payload and
// context. It never fails; replaced values are reported as fallbacks.
func ToRow(event domain.TraceEvent, s *serialize.Serializer) (*Row, []serialize.Fallback) {
	payload, payloadFallbacks := s.Encode(event.Payload)
	traceContext, contextFallbacks := s.Encode(event.Context)

	durationMs := event.DurationMs
	if durationMs < 0 {
		durationMs = 0
	}

	row := &Row{
		EventID:    event.EventID,
		TraceID:    event.TraceID,
		EventName:  event.EventName,
		Status:     string(event.Status),
		Timestamp:  event.Timestamp.UTC(),
		DurationMs: durationMs,
		Payload:    string(payload),
		Context:    string(traceContext),
	}
	return row, append(payloadFallbacks, contextFallbacks...)
}
