// Package domain contains the records produced by the tracing pipeline.
//
// A TraceEvent is the finalized projection of one trace: identity, label,
// status, timing and the normalized payload and context trees. It is built
// once when a trace ends and handed by value to persistence, so no code path
// can observe it changing.
//
// TraceNote is a single sub-event recorded against a trace while it is
// active. PersistOutcome names the terminal state of a persistence attempt.
package domain
