package domain

import "time"

// TraceEvent is the finalized, persistence-ready projection of a trace.
// One is produced per ended trace; it is passed by value and never modified
// after construction.
type TraceEvent struct {
	EventID    string      `json:"eventId"`
	TraceID    string      `json:"traceId"`
	EventName  string      `json:"eventName"`
	Status     EventStatus `json:"status"`
	Timestamp  time.Time   `json:"timestamp"`
	DurationMs float64     `json:"durationMs"`
	// Payload and Context hold trees produced by serialize.Normalize
	Payload any `json:"payload"`
	Context any `json:"context"`
}

// TraceNote is one timestamped sub-event recorded against an active trace
type TraceNote struct {
	Message  string    `json:"message"`
	Time     time.Time `json:"timestamp"`
	OffsetMs float64   `json:"offset_ms"`
	Data     any       `json:"data,omitempty"`
}
