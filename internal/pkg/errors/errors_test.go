package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTelemetryErrorIs(t *testing.T) {
	cause := New("connection refused")
	err := PersistenceFailure("insert", "abc", cause)

	assert.True(t, Is(err, ErrPersistenceFailure))
	assert.False(t, Is(err, ErrContextUnavailable))
	assert.True(t, Is(err, cause))

	wrapped := fmt.Errorf("sink: %w", err)
	assert.True(t, Is(wrapped, ErrPersistenceFailure))
	assert.Equal(t, KindPersistenceFailure, KindOf(wrapped))
}

func TestTelemetryErrorMessage(t *testing.T) {
	tests := []struct {
		name     string
		err      *TelemetryError
		expected string
	}{
		{
			name:     "full",
			err:      PersistenceFailure("insert", "abc", New("timeout")),
			expected: "PERSISTENCE_FAILURE insert [abc]: timeout",
		},
		{
			name:     "no trace",
			err:      ProtocolViolation("end_group", "", "no open group"),
			expected: "PROTOCOL_VIOLATION end_group: no open group",
		},
		{
			name:     "kind only",
			err:      &TelemetryError{Kind: KindContextUnavailable},
			expected: "CONTEXT_UNAVAILABLE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestTelemetryErrorFields(t *testing.T) {
	err := ContextUnavailable("persist", "abc", New("no scope"))
	assert.Len(t, err.Fields(), 4)
	assert.Len(t, (&TelemetryError{Kind: KindProtocolViolation}).Fields(), 1)
}

func TestKindOfPlainError(t *testing.T) {
	assert.Equal(t, Kind(""), KindOf(New("plain")))
}

func TestGetStatusCode(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, GetStatusCode(NotFound("trace")))
	assert.Equal(t, http.StatusBadRequest, GetStatusCode(fmt.Errorf("wrap: %w", BadRequest("bad"))))
	assert.Equal(t, http.StatusInternalServerError, GetStatusCode(New("boom")))
}
