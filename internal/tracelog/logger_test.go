package tracelog

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/campaignforge/telemetry/internal/domain"
	"github.com/campaignforge/telemetry/internal/requestscope"
	"github.com/campaignforge/telemetry/internal/serialize"
)

type recordingPersister struct {
	mu     sync.Mutex
	events []domain.TraceEvent
}

func (p *recordingPersister) Persist(_ context.Context, event domain.TraceEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *recordingPersister) all() []domain.TraceEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.TraceEvent(nil), p.events...)
}

type panickingPersister struct{}

func (panickingPersister) Persist(context.Context, domain.TraceEvent) {
	panic("sink exploded")
}

func newTestLogger(t *testing.T, p Persister) (*Logger, *observer.ObservedLogs, *fakeClock) {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	clock := newFakeClock()
	l := New(zap.New(core), p, Options{
		ServiceName:       "campaignforge",
		MaxEventsPerTrace: 100,
		SessionTTL:        time.Minute,
		Clock:             clock,
	})
	return l, logs, clock
}

func TestEndTracePersistsOneRecord(t *testing.T) {
	p := &recordingPersister{}
	l, _, clock := newTestLogger(t, p)
	ctx := requestscope.With(context.Background(), &requestscope.Scope{RequestID: "req-42"})

	traceID := l.StartTrace(ctx, "upload")
	require.NotEmpty(t, traceID)

	clock.Advance(10 * time.Millisecond)
	l.TraceEvent(ctx, traceID, "validated", map[string]any{"files": 3})
	clock.Advance(15 * time.Millisecond)
	l.TraceEvent(ctx, traceID, "stored")
	clock.Advance(25 * time.Millisecond)
	l.EndTrace(ctx, traceID)

	events := p.all()
	require.Len(t, events, 1)
	ev := events[0]

	assert.Equal(t, traceID, ev.TraceID)
	assert.Equal(t, "upload", ev.EventName)
	assert.Equal(t, domain.EventStatusSuccess, ev.Status)
	assert.Equal(t, 50.0, ev.DurationMs)
	assert.Equal(t, clock.Now(), ev.Timestamp)
	assert.NotEmpty(t, ev.EventID)

	payload, ok := ev.Payload.(map[string]any)
	require.True(t, ok)
	notes := payload["events"].([]any)
	require.Len(t, notes, 2)
	first := notes[0].(map[string]any)
	assert.Equal(t, "validated", first["message"])
	assert.Equal(t, 10.0, first["offset_ms"])
	assert.Equal(t, map[string]any{"files": int64(3)}, first["data"])
	_, hasData := notes[1].(map[string]any)["data"]
	assert.False(t, hasData)
	assert.Equal(t, int64(2), payload["event_count"])
	assert.Equal(t, int64(0), payload["dropped_events"])

	traceCtx := ev.Context.(map[string]any)
	assert.Equal(t, "campaignforge", traceCtx["service"])
	assert.Equal(t, "req-42", traceCtx["request_id"])
	assert.Equal(t, "upload", traceCtx["label"])

	assert.Equal(t, 0, l.ActiveTraces())
}

func TestSecondEndTraceIsNoOp(t *testing.T) {
	p := &recordingPersister{}
	l, logs, _ := newTestLogger(t, p)
	ctx := context.Background()

	traceID := l.StartTrace(ctx, "job")
	l.EndTrace(ctx, traceID)
	l.EndTrace(ctx, traceID)

	assert.Len(t, p.all(), 1)
	violations := logs.FilterMessage("protocol violation").All()
	require.Len(t, violations, 1)
	assert.Equal(t, zapcore.WarnLevel, violations[0].Level)
	assert.Equal(t, traceID, violations[0].ContextMap()["trace_id"])
}

func TestConcurrentEndTracePersistsOnce(t *testing.T) {
	p := &recordingPersister{}
	l, _, _ := newTestLogger(t, p)
	ctx := context.Background()
	traceID := l.StartTrace(ctx, "race")

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.EndTrace(ctx, traceID)
		}()
	}
	wg.Wait()

	assert.Len(t, p.all(), 1)
}

func TestUnknownTraceIsIgnored(t *testing.T) {
	p := &recordingPersister{}
	l, logs, _ := newTestLogger(t, p)

	assert.NotPanics(t, func() {
		l.TraceEvent(context.Background(), "nope", "orphan")
		l.EndTrace(context.Background(), "nope")
		l.FailTrace(context.Background(), "", errors.New("boom"))
	})
	assert.Empty(t, p.all())
	assert.Equal(t, 3, logs.FilterMessage("protocol violation").Len())
}

func TestFailTraceRecordsError(t *testing.T) {
	p := &recordingPersister{}
	l, _, _ := newTestLogger(t, p)

	traceID := l.StartTrace(context.Background(), "import")
	l.FailTrace(context.Background(), traceID, errors.New("upstream timeout"))

	events := p.all()
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventStatusError, events[0].Status)
	assert.Equal(t, "upstream timeout", events[0].Payload.(map[string]any)["error"])
}

func TestPersisterPanicIsContained(t *testing.T) {
	l, logs, _ := newTestLogger(t, panickingPersister{})

	assert.NotPanics(t, func() {
		traceID := l.StartTrace(context.Background(), "job")
		l.EndTrace(context.Background(), traceID)
	})
	failures := logs.FilterMessage("persistence failure").All()
	require.Len(t, failures, 1)
	assert.Equal(t, "PERSISTENCE_FAILURE", failures[0].ContextMap()["error_kind"])
}

func TestNilPersisterKeepsTracesLocal(t *testing.T) {
	l, logs, _ := newTestLogger(t, nil)
	traceID := l.StartTrace(context.Background(), "local")
	l.EndTrace(context.Background(), traceID)

	assert.Equal(t, 1, logs.FilterMessage("trace ended").Len())
}

func TestTraceEventWithUnserializableData(t *testing.T) {
	p := &recordingPersister{}
	l, logs, _ := newTestLogger(t, p)
	ctx := context.Background()

	type node struct {
		Name string `json:"name"`
		Next *node  `json:"next"`
	}
	n := &node{Name: "loop"}
	n.Next = n

	traceID := l.StartTrace(ctx, "cyclic")
	l.TraceEvent(ctx, traceID, "graph", n, make(chan int))
	l.EndTrace(ctx, traceID)

	require.Len(t, p.all(), 1)
	assert.Equal(t, 1, logs.FilterMessage("serialization fallback").Len())

	note := p.all()[0].Payload.(map[string]any)["events"].([]any)[0].(map[string]any)
	data := note["data"].([]any)
	assert.Equal(t, serialize.PlaceholderCircular, data[0].(map[string]any)["next"])
	assert.Contains(t, data[1], "[unserializable")
}

func TestTraceEventSnapshotsData(t *testing.T) {
	p := &recordingPersister{}
	l, _, _ := newTestLogger(t, p)
	ctx := context.Background()

	data := map[string]any{"count": 1}
	traceID := l.StartTrace(ctx, "snapshot")
	l.TraceEvent(ctx, traceID, "before", data)
	data["count"] = 2
	l.EndTrace(ctx, traceID)

	note := p.all()[0].Payload.(map[string]any)["events"].([]any)[0].(map[string]any)
	assert.Equal(t, map[string]any{"count": int64(1)}, note["data"])
}

func TestGroups(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := New(zap.New(core), nil, Options{Indent: true})

	ctx := l.StartGroup(context.Background(), "checkout")
	ctx = l.StartGroup(ctx, "payment")
	l.Info(ctx, "charged", map[string]any{"amount": 12})
	ctx = l.EndGroup(ctx)
	ctx = l.EndGroup(ctx)
	ctx = l.EndGroup(ctx)

	assert.Equal(t, 0, GroupDepth(ctx))

	charged := logs.FilterMessage("    charged").All()
	require.Len(t, charged, 1)
	fields := charged[0].ContextMap()
	assert.Equal(t, "checkout/payment", fields["group"])
	assert.Equal(t, int64(2), fields["depth"])

	assert.Equal(t, 1, logs.FilterMessage("protocol violation").Len())
	assert.Equal(t, 1, logs.FilterMessage("  ◂ payment").Len())
	assert.Equal(t, 1, logs.FilterMessage("◂ checkout").Len())

	var messages []string
	for _, entry := range logs.All() {
		if entry.Message != "protocol violation" {
			messages = append(messages, entry.Message)
		}
	}
	assert.Equal(t, []string{
		"▸ checkout",
		"  ▸ payment",
		"    charged",
		"  ◂ payment",
		"◂ checkout",
	}, messages)
	assert.Equal(t, "protocol violation", logs.All()[len(logs.All())-1].Message)
}

func TestTraceCarriesGroupPath(t *testing.T) {
	p := &recordingPersister{}
	l, _, _ := newTestLogger(t, p)

	ctx := l.StartGroup(context.Background(), "sync")
	traceID := l.StartTrace(ctx, "fetch")
	l.EndTrace(ctx, traceID)

	assert.Equal(t, "sync", p.all()[0].Context.(map[string]any)["group"])
}

func TestLogLevels(t *testing.T) {
	l, logs, _ := newTestLogger(t, nil)
	ctx := context.Background()

	l.Info(ctx, "info")
	l.Warn(ctx, "warn")
	l.Error(ctx, "error", errors.New("cause"))
	l.Success(ctx, "done")
	l.Trace(ctx, "detail", "a", "b")

	entries := logs.All()
	require.Len(t, entries, 5)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, zapcore.ErrorLevel, entries[2].Level)
	assert.Equal(t, zapcore.InfoLevel, entries[3].Level)
	assert.Equal(t, "success", entries[3].ContextMap()["outcome"])
	assert.Equal(t, zapcore.DebugLevel, entries[4].Level)
	assert.Equal(t, "cause", entries[2].ContextMap()["meta"])
}

func TestSweepEvictsAbandonedTraces(t *testing.T) {
	p := &recordingPersister{}
	l, logs, clock := newTestLogger(t, p)
	ctx := context.Background()

	stale := l.StartTrace(ctx, "stale")
	clock.Advance(2 * time.Minute)
	live := l.StartTrace(ctx, "live")

	assert.Equal(t, 1, l.Sweep())
	assert.Equal(t, 1, logs.FilterMessage("abandoned traces evicted").Len())

	l.EndTrace(ctx, stale)
	l.EndTrace(ctx, live)
	require.Len(t, p.all(), 1)
	assert.Equal(t, live, p.all()[0].TraceID)
}

func TestRunStopsWithContext(t *testing.T) {
	l, _, _ := newTestLogger(t, nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		l.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
