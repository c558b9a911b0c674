package requestscope

import (
	"context"
	"fmt"
)

// Provider exposes the ambient request scope
type Provider interface {
	Current(ctx context.Context) (*Scope, error)
}

// ProviderFunc adapts a function to a Provider
type ProviderFunc func(ctx context.Context) (*Scope, error)

// Current implements Provider
func (f ProviderFunc) Current(ctx context.Context) (*Scope, error) {
	return f(ctx)
}

// ContextProvider reads the scope installed by With
type ContextProvider struct{}

// Current implements Provider
func (ContextProvider) Current(ctx context.Context) (*Scope, error) {
	return From(ctx)
}

// Guard is a cheap synchronous probe for an active request scope.
// Check never panics and performs no I/O of its own.
type Guard struct {
	provider Provider
}

// NewGuard creates a guard over the provider; nil selects ContextProvider
func NewGuard(p Provider) *Guard {
	if p == nil {
		p = ContextProvider{}
	}
	return &Guard{provider: p}
}

// Check returns the active scope, or an error if none is available
func (g *Guard) Check(ctx context.Context) (scope *Scope, err error) {
	defer func() {
		if r := recover(); r != nil {
			scope, err = nil, fmt.Errorf("scope probe panicked: %v", r)
		}
	}()

	scope, err = g.provider.Current(ctx)
	if err != nil {
		return nil, err
	}
	if scope == nil {
		return nil, ErrNoScope
	}
	return scope, nil
}

// Available reports whether a request scope is active
func (g *Guard) Available(ctx context.Context) bool {
	_, err := g.Check(ctx)
	return err == nil
}
