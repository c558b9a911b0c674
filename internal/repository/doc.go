// Package repository contains the storage collaborators finalized traces are
// written to.
//
// Each subpackage implements persistence.Store for one backend:
//   - clickhouse: the trace_events MergeTree table
//   - postgres: the trace_events table with JSONB payload and context
//   - redis: an append-only stream, one entry per trace
//   - objectstore: one JSON object per trace in a MinIO bucket
//
// Stores perform exactly one write per Insert call and never retry.
// All implementations are safe for concurrent use; connection pools are
// managed at the database layer.
package repository
