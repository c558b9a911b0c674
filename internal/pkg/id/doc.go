// Package id provides identifier generation for the telemetry pipeline.
//
// This package generates:
//   - W3C-compliant trace IDs (32 hex characters)
//   - UUID v4 event identifiers
//
// # Performance
//
// Trace ID generation uses sync.Pool to minimize allocations in hot paths.
// All functions are safe for concurrent use.
//
// # Uniqueness
//
// Trace IDs are drawn from crypto/rand. If the system random source fails,
// a fallback combines the wall clock with a process-wide sequence number so
// IDs stay distinct for the lifetime of the process.
package id
