package persistence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRowDocument(t *testing.T) {
	row := &Row{
		EventID:    "evt",
		TraceID:    "trace",
		EventName:  "upload",
		Status:     "success",
		Timestamp:  time.Date(2025, 3, 1, 12, 0, 0, 500000000, time.UTC),
		DurationMs: 1.5,
		Payload:    `{"event_count":0}`,
	}

	data, err := row.Document()
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"event_id": "evt",
		"trace_id": "trace",
		"event_name": "upload",
		"status": "success",
		"timestamp": "2025-03-01T12:00:00.500000Z",
		"duration_ms": 1.5,
		"payload": {"event_count": 0},
		"context": null
	}`, string(data))
}

func TestEncodeDecodeRow(t *testing.T) {
	row := &Row{
		EventID:   "evt",
		TraceID:   "trace",
		Timestamp: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
		Payload:   `{"a":1}`,
	}

	data, err := EncodeRow(row)
	require.NoError(t, err)

	decoded, err := DecodeRow(data)
	require.NoError(t, err)
	assert.Equal(t, row.TraceID, decoded.TraceID)
	assert.True(t, row.Timestamp.Equal(decoded.Timestamp))
	assert.Equal(t, row.Payload, decoded.Payload)

	_, err = DecodeRow([]byte("not json"))
	assert.Error(t, err)
}
