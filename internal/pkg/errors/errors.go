package errors

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// Kind classifies a telemetry failure
type Kind string

// Telemetry error kinds
const (
	KindContextUnavailable    Kind = "CONTEXT_UNAVAILABLE"
	KindPersistenceFailure    Kind = "PERSISTENCE_FAILURE"
	KindSerializationFallback Kind = "SERIALIZATION_FALLBACK"
	KindProtocolViolation     Kind = "PROTOCOL_VIOLATION"
)

// Sentinels matched by TelemetryError.Is
var (
	ErrContextUnavailable    = &TelemetryError{Kind: KindContextUnavailable}
	ErrPersistenceFailure    = &TelemetryError{Kind: KindPersistenceFailure}
	ErrSerializationFallback = &TelemetryError{Kind: KindSerializationFallback}
	ErrProtocolViolation     = &TelemetryError{Kind: KindProtocolViolation}
)

// TelemetryError is a classified failure inside the observability path
type TelemetryError struct {
	Kind    Kind
	Op      string
	TraceID string
	Err     error
}

// Error implements the error interface
func (e *TelemetryError) Error() string {
	msg := string(e.Kind)
	if e.Op != "" {
		msg += " " + e.Op
	}
	if e.TraceID != "" {
		msg += " [" + e.TraceID + "]"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error
func (e *TelemetryError) Unwrap() error {
	return e.Err
}

// Is reports whether target is a TelemetryError of the same kind
func (e *TelemetryError) Is(target error) bool {
	t, ok := target.(*TelemetryError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Fields renders the error as structured log fields
func (e *TelemetryError) Fields() []zap.Field {
	fields := []zap.Field{zap.String("error_kind", string(e.Kind))}
	if e.Op != "" {
		fields = append(fields, zap.String("op", e.Op))
	}
	if e.TraceID != "" {
		fields = append(fields, zap.String("trace_id", e.TraceID))
	}
	if e.Err != nil {
		fields = append(fields, zap.Error(e.Err))
	}
	return fields
}

// Telemetry creates a new TelemetryError
func Telemetry(kind Kind, op, traceID string, err error) *TelemetryError {
	return &TelemetryError{Kind: kind, Op: op, TraceID: traceID, Err: err}
}

// ContextUnavailable creates a context unavailable error
func ContextUnavailable(op, traceID string, err error) *TelemetryError {
	return Telemetry(KindContextUnavailable, op, traceID, err)
}

// PersistenceFailure creates a persistence failure error
func PersistenceFailure(op, traceID string, err error) *TelemetryError {
	return Telemetry(KindPersistenceFailure, op, traceID, err)
}

// SerializationFallback creates a serialization fallback error
func SerializationFallback(op, traceID string, err error) *TelemetryError {
	return Telemetry(KindSerializationFallback, op, traceID, err)
}

// ProtocolViolation creates a protocol violation error
func ProtocolViolation(op, traceID string, format string, args ...any) *TelemetryError {
	return Telemetry(KindProtocolViolation, op, traceID, fmt.Errorf(format, args...))
}

// KindOf returns the kind of a telemetry error, or "" if err is not one
func KindOf(err error) Kind {
	var te *TelemetryError
	if errors.As(err, &te) {
		return te.Kind
	}
	return ""
}

// Is checks if an error is of a specific type
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As attempts to convert an error to a specific type
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// New returns a plain error with the given text
func New(text string) error {
	return errors.New(text)
}
