package persistence

import (
	"encoding/json"
	"fmt"

	"github.com/bytedance/sonic"
)

// document is the self-describing JSON form of a Row, with payload and
// context embedded as objects rather than strings.
type document struct {
	EventID    string          `json:"event_id"`
	TraceID    string          `json:"trace_id"`
	EventName  string          `json:"event_name"`
	Status     string          `json:"status"`
	Timestamp  string          `json:"timestamp"`
	DurationMs float64         `json:"duration_ms"`
	Payload    json.RawMessage `json:"payload"`
	Context    json.RawMessage `json:"context"`
}

// Document encodes the row as a single JSON object
func (r *Row) Document() ([]byte, error) {
	doc := document{
		EventID:    r.EventID,
		TraceID:    r.TraceID,
		EventName:  r.EventName,
		Status:     r.Status,
		Timestamp:  r.Timestamp.UTC().Format(timestampLayout),
		DurationMs: r.DurationMs,
		Payload:    rawOrNull(r.Payload),
		Context:    rawOrNull(r.Context),
	}
	data, err := sonic.ConfigStd.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode row document: %w", err)
	}
	return data, nil
}

// EncodeRow encodes a row for transport between processes
func EncodeRow(r *Row) ([]byte, error) {
	return sonic.ConfigStd.Marshal(r)
}

// DecodeRow reverses EncodeRow
func DecodeRow(data []byte) (*Row, error) {
	var r Row
	if err := sonic.ConfigStd.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decode row: %w", err)
	}
	return &r, nil
}

const timestampLayout = "2006-01-02T15:04:05.000000Z07:00"

func rawOrNull(s string) json.RawMessage {
	if s == "" || !json.Valid([]byte(s)) {
		return json.RawMessage("null")
	}
	return json.RawMessage(s)
}
