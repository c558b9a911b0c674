// Package requestscope carries the ambient request scope through a
// context.Context and answers whether one is active.
//
// The scope is installed by the HTTP middleware for every served request.
// Code running at startup, in tests or in detached goroutines has no scope,
// which is how the persistence path learns that a side-effecting write is not
// safe.
package requestscope

import (
	"context"
	"errors"
	"time"
)

// ErrNoScope is returned when no request scope is active
var ErrNoScope = errors.New("no active request scope")

type contextKey int

const scopeKey contextKey = iota

// Scope describes the request currently being served
type Scope struct {
	RequestID string
	Method    string
	Path      string
	StartedAt time.Time
}

// With returns a child context carrying the scope
func With(ctx context.Context, s *Scope) context.Context {
	return context.WithValue(ctx, scopeKey, s)
}

// From returns the active scope or ErrNoScope
func From(ctx context.Context) (*Scope, error) {
	if ctx == nil {
		return nil, ErrNoScope
	}
	s, ok := ctx.Value(scopeKey).(*Scope)
	if !ok || s == nil {
		return nil, ErrNoScope
	}
	return s, nil
}

// RequestID returns the request id of the active scope, or ""
func RequestID(ctx context.Context) string {
	if s, err := From(ctx); err == nil {
		return s.RequestID
	}
	return ""
}
