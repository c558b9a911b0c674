// Package persistence writes finalized traces to a storage collaborator.
//
// Every write is a single, detached, deadline-bounded attempt. Nothing in this
// package returns an error to the code that ended the trace: skipped and
// failed writes are logged locally and counted.
package persistence

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/campaignforge/telemetry/internal/domain"
	"github.com/campaignforge/telemetry/internal/pkg/errors"
	"github.com/campaignforge/telemetry/internal/pkg/metrics"
	"github.com/campaignforge/telemetry/internal/requestscope"
	"github.com/campaignforge/telemetry/internal/serialize"
)

// Store accepts one row per call. Implementations must be safe for
// concurrent use and should honor ctx.
type Store interface {
	Insert(ctx context.Context, row *Row) error
}

// OutcomeFunc observes the terminal state of each persistence attempt.
// err is nil unless the outcome is PERSIST_SKIPPED or PERSIST_FAILED.
type OutcomeFunc func(event domain.TraceEvent, outcome domain.PersistOutcome, err error)

// Options configures an Adapter
type Options struct {
	// Sink names the store in logs and metrics
	Sink         string
	WriteTimeout time.Duration
	OnOutcome    OutcomeFunc
}

// Counts is a snapshot of terminal outcomes since start
type Counts struct {
	Persisted int64 `json:"persisted"`
	Skipped   int64 `json:"skipped"`
	Failed    int64 `json:"failed"`
	InFlight  int64 `json:"in_flight"`
}

// Adapter is the fire-and-forget bridge between finalized traces and a Store
type Adapter struct {
	store      Store
	guard      *requestscope.Guard
	serializer *serialize.Serializer
	log        *zap.Logger
	opts       Options

	wg        sync.WaitGroup
	persisted atomic.Int64
	skipped   atomic.Int64
	failed    atomic.Int64
	inFlight  atomic.Int64
}

// New creates an adapter. A nil guard checks for a scope installed with
// requestscope.With.
func New(store Store, guard *requestscope.Guard, s *serialize.Serializer, log *zap.Logger, opts Options) *Adapter {
	if guard == nil {
		guard = requestscope.NewGuard(nil)
	}
	if s == nil {
		s = serialize.New(serialize.DefaultOptions())
	}
	if log == nil {
		log = zap.NewNop()
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 2 * time.Second
	}
	if opts.Sink == "" {
		opts.Sink = "unknown"
	}

	return &Adapter{
		store:      store,
		guard:      guard,
		serializer: s,
		log:        log.With(zap.String("sink", opts.Sink)),
		opts:       opts,
	}
}

// Persist schedules a single write of the event and returns immediately.
// The write is skipped when ctx carries no request scope.
func (a *Adapter) Persist(ctx context.Context, event domain.TraceEvent) {
	if _, err := a.guard.Check(ctx); err != nil {
		a.finish(event, domain.PersistOutcomeSkipped,
			errors.ContextUnavailable("persist", event.TraceID, err))
		return
	}

	row, fallbacks := ToRow(event, a.serializer)
	if len(fallbacks) > 0 {
		metrics.RecordSerializationFallbacks(len(fallbacks))
		err := errors.SerializationFallback("persist", event.TraceID,
			fmt.Errorf("%d value(s) replaced, first at %s: %s", len(fallbacks), fallbacks[0].Path, fallbacks[0].Reason))
		a.log.Warn("serialization fallback", err.Fields()...)
	}

	a.wg.Add(1)
	a.inFlight.Add(1)
	go func() {
		defer a.wg.Done()
		defer a.inFlight.Add(-1)

		if err := a.write(ctx, row); err != nil {
			a.finish(event, domain.PersistOutcomeFailed, errors.PersistenceFailure("persist", event.TraceID, err))
			return
		}
		a.finish(event, domain.PersistOutcomePersisted, nil)
	}()
}

// write performs the single insert. The deadline is enforced here as well,
// so a store that ignores ctx is abandoned rather than waited on.
func (a *Adapter) write(parent context.Context, row *Row) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), a.opts.WriteTimeout)
	defer cancel()

	start := time.Now()
	defer func() { metrics.RecordSinkWrite(a.opts.Sink, time.Since(start)) }()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("store panicked: %v", r)
			}
		}()
		done <- a.store.Insert(ctx, row)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("write abandoned after %s: %w", a.opts.WriteTimeout, ctx.Err())
	}
}

func (a *Adapter) finish(event domain.TraceEvent, outcome domain.PersistOutcome, err error) {
	switch outcome {
	case domain.PersistOutcomePersisted:
		a.persisted.Add(1)
		a.log.Debug("trace persisted", zap.String("trace_id", event.TraceID))
	case domain.PersistOutcomeSkipped:
		a.skipped.Add(1)
		a.log.Warn("persistence skipped, trace kept local", fieldsOf(err)...)
	case domain.PersistOutcomeFailed:
		a.failed.Add(1)
		a.log.Error("persistence failure", fieldsOf(err)...)
	}
	metrics.RecordPersist(a.opts.Sink, outcome.MetricLabel())

	if a.opts.OnOutcome != nil {
		func() {
			defer func() {
				if r := recover(); r != nil {
					a.log.Error("outcome hook panicked", zap.Any("panic", r))
				}
			}()
			a.opts.OnOutcome(event, outcome, err)
		}()
	}
}

// Wait blocks until every scheduled write has reached a terminal outcome
func (a *Adapter) Wait() {
	a.wg.Wait()
}

// Drain waits for in-flight writes until ctx is done
func (a *Adapter) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("drain persistence: %d write(s) still in flight: %w", a.inFlight.Load(), ctx.Err())
	}
}

// Counts returns the outcome counters
func (a *Adapter) Counts() Counts {
	return Counts{
		Persisted: a.persisted.Load(),
		Skipped:   a.skipped.Load(),
		Failed:    a.failed.Load(),
		InFlight:  a.inFlight.Load(),
	}
}

// Sink returns the configured sink name
func (a *Adapter) Sink() string {
	return a.opts.Sink
}

func fieldsOf(err error) []zap.Field {
	var te *errors.TelemetryError
	if errors.As(err, &te) {
		return te.Fields()
	}
	return []zap.Field{zap.Error(err)}
}
