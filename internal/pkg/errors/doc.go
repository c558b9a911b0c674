// Package errors provides the error taxonomy of the telemetry pipeline.
//
// This package defines:
//   - TelemetryError, the classified failure of an observability operation
//   - Kind sentinels usable with errors.Is
//   - AppError for the HTTP surface with status code mapping
//
// # Kinds
//
//   - ContextUnavailable: no request scope is active; persistence is skipped
//   - PersistenceFailure: the storage write failed or timed out
//   - SerializationFallback: a value was replaced with a placeholder
//   - ProtocolViolation: an end call had no active counterpart
//
// Telemetry errors are only ever logged. They are never returned to the code
// being observed.
//
// # Usage
//
//	err := errors.Telemetry(errors.KindPersistenceFailure, "insert", traceID, cause)
//	if errors.Is(err, errors.ErrPersistenceFailure) {
//	    // count it
//	}
package errors
