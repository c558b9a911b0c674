// Package tracelog is the tracing and logging API used by application code.
//
// A Logger correlates hierarchical events under a trace id and writes
// finished traces to a Persister without ever affecting the caller:
//
//	traceID := log.StartTrace(ctx, "upload")
//	log.TraceEvent(ctx, traceID, "validated", map[string]any{"files": 3})
//	log.EndTrace(ctx, traceID)
//
// Groups nest human-readable log output and are carried by the context:
//
//	ctx = log.StartGroup(ctx, "import")
//	defer func() { ctx = log.EndGroup(ctx) }()
//
// No method returns an error or panics. Misuse such as ending an unknown trace
// is logged as a warning and otherwise ignored.
package tracelog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/campaignforge/telemetry/internal/domain"
	"github.com/campaignforge/telemetry/internal/pkg/errors"
	"github.com/campaignforge/telemetry/internal/pkg/id"
	"github.com/campaignforge/telemetry/internal/pkg/metrics"
	"github.com/campaignforge/telemetry/internal/requestscope"
	"github.com/campaignforge/telemetry/internal/serialize"
)

// Persister receives finalized traces. Persist must return promptly.
type Persister interface {
	Persist(ctx context.Context, event domain.TraceEvent)
}

// Options configures a Logger
type Options struct {
	ServiceName       string
	MaxEventsPerTrace int
	// SessionTTL is the age after which Run evicts a trace that was never ended
	SessionTTL time.Duration
	// Indent prefixes messages with two spaces per open group
	Indent     bool
	Serializer *serialize.Serializer
	Clock      Clock
}

// Logger is the public tracing API. It is safe for concurrent use.
type Logger struct {
	log        *zap.Logger
	sessions   *Manager
	persister  Persister
	serializer *serialize.Serializer
	clock      Clock
	opts       Options
}

// New creates a Logger. A nil persister keeps traces local-only.
func New(log *zap.Logger, persister Persister, opts Options) *Logger {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock{}
	}
	if opts.Serializer == nil {
		opts.Serializer = serialize.New(serialize.DefaultOptions())
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 10 * time.Minute
	}

	return &Logger{
		log:        log,
		sessions:   NewManager(opts.Clock, opts.MaxEventsPerTrace),
		persister:  persister,
		serializer: opts.Serializer,
		clock:      opts.Clock,
		opts:       opts,
	}
}

// StartTrace begins a new trace and returns its id
func (l *Logger) StartTrace(ctx context.Context, label string) (traceID string) {
	defer l.recoverInternal("start_trace")

	traceID, start := l.sessions.Start(label, requestscope.RequestID(ctx), GroupPath(ctx))
	metrics.SetActiveSessions(l.sessions.Active())

	l.line(ctx, zap.DebugLevel, "trace started",
		zap.String("trace_id", traceID),
		zap.String("label", label),
		zap.Time("start_time", start),
	)
	return traceID
}

// TraceEvent records a timestamped sub-event on an active trace. data is
// optional; several values are recorded as a list.
func (l *Logger) TraceEvent(ctx context.Context, traceID, message string, data ...any) {
	defer l.recoverInternal("trace_event")

	tree := l.normalize(ctx, "trace_event", traceID, collapse(data))
	if !l.sessions.Note(traceID, message, tree) {
		l.violation(ctx, "trace_event", traceID, "trace is not active (unknown or already ended)")
		return
	}

	l.line(ctx, zap.DebugLevel, message, zap.String("trace_id", traceID))
}

// EndTrace finalizes a trace with status success and hands it to the
// persister. It returns without waiting for the write.
func (l *Logger) EndTrace(ctx context.Context, traceID string) {
	defer l.recoverInternal("end_trace")
	l.end(ctx, traceID, domain.EventStatusSuccess, nil)
}

// FailTrace finalizes a trace with status error, recording cause in the payload
func (l *Logger) FailTrace(ctx context.Context, traceID string, cause error) {
	defer l.recoverInternal("fail_trace")
	l.end(ctx, traceID, domain.EventStatusError, cause)
}

func (l *Logger) end(ctx context.Context, traceID string, status domain.EventStatus, cause error) {
	s, ok := l.sessions.Finalize(traceID)
	if !ok {
		l.violation(ctx, "end_trace", traceID, "trace is not active (unknown or already ended)")
		return
	}
	metrics.SetActiveSessions(l.sessions.Active())

	event := l.project(s, status, cause)

	fields := []zap.Field{
		zap.String("trace_id", traceID),
		zap.String("label", s.label),
		zap.Float64("duration_ms", event.DurationMs),
		zap.String("status", string(status)),
	}
	if cause != nil {
		fields = append(fields, zap.Error(cause))
	}
	l.line(ctx, zap.InfoLevel, "trace ended", fields...)

	if l.persister != nil {
		l.persist(ctx, event)
	}
}

// project builds the immutable persistence record of a finalized session
func (l *Logger) project(s *finalized, status domain.EventStatus, cause error) domain.TraceEvent {
	events := make([]any, 0, len(s.notes))
	for _, n := range s.notes {
		note := map[string]any{
			"message":   n.Message,
			"timestamp": n.Time.Format(time.RFC3339Nano),
			"offset_ms": n.OffsetMs,
		}
		if n.Data != nil {
			note["data"] = n.Data
		}
		events = append(events, note)
	}

	payload := map[string]any{
		"events":         events,
		"event_count":    int64(len(s.notes)),
		"dropped_events": int64(s.dropped),
	}
	if cause != nil {
		payload["error"] = cause.Error()
	}

	traceContext := map[string]any{
		"label":      s.label,
		"service":    l.opts.ServiceName,
		"start_time": s.startTime.Format(time.RFC3339Nano),
		"end_time":   s.endTime.Format(time.RFC3339Nano),
	}
	if s.requestID != "" {
		traceContext["request_id"] = s.requestID
	}
	if s.group != "" {
		traceContext["group"] = s.group
	}

	return domain.TraceEvent{
		EventID:    id.NewEventID(),
		TraceID:    s.id,
		EventName:  s.label,
		Status:     status,
		Timestamp:  s.endTime,
		DurationMs: elapsedMs(s.startTime, s.endTime),
		Payload:    payload,
		Context:    traceContext,
	}
}

// persist hands off to the persister, containing any panic it raises
func (l *Logger) persist(ctx context.Context, event domain.TraceEvent) {
	defer func() {
		if r := recover(); r != nil {
			err := errors.PersistenceFailure("persist", event.TraceID, fmt.Errorf("persister panicked: %v", r))
			l.log.Error("persistence failure", err.Fields()...)
		}
	}()
	l.persister.Persist(ctx, event)
}

// StartGroup opens a nested group and returns the context carrying it
func (l *Logger) StartGroup(ctx context.Context, label string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	defer l.recoverInternal("start_group")

	next, f := pushFrame(ctx, label)
	l.line(ctx, zap.InfoLevel, "▸ "+label, zap.String("group_event", "start"), zap.Int("group_depth", f.depth))
	return next
}

// EndGroup closes the innermost group. With no open group it warns and
// returns ctx unchanged.
func (l *Logger) EndGroup(ctx context.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	defer l.recoverInternal("end_group")

	next, f, ok := popFrame(ctx)
	if !ok {
		l.violation(ctx, "end_group", "", "no open group")
		return ctx
	}
	l.line(next, zap.InfoLevel, "◂ "+f.label, zap.String("group_event", "end"), zap.Int("group_depth", f.depth))
	return next
}

// Info logs an informational message
func (l *Logger) Info(ctx context.Context, msg string, meta ...any) {
	defer l.recoverInternal("info")
	l.line(ctx, zap.InfoLevel, msg, l.metaField(ctx, meta)...)
}

// Warn logs a warning
func (l *Logger) Warn(ctx context.Context, msg string, meta ...any) {
	defer l.recoverInternal("warn")
	l.line(ctx, zap.WarnLevel, msg, l.metaField(ctx, meta)...)
}

// Error logs an error
func (l *Logger) Error(ctx context.Context, msg string, meta ...any) {
	defer l.recoverInternal("error")
	l.line(ctx, zap.ErrorLevel, msg, l.metaField(ctx, meta)...)
}

// Success logs a completed step at info level
func (l *Logger) Success(ctx context.Context, msg string, meta ...any) {
	defer l.recoverInternal("success")
	fields := append([]zap.Field{zap.String("outcome", "success")}, l.metaField(ctx, meta)...)
	l.line(ctx, zap.InfoLevel, msg, fields...)
}

// Trace logs a fine-grained diagnostic at debug level
func (l *Logger) Trace(ctx context.Context, msg string, meta ...any) {
	defer l.recoverInternal("trace")
	l.line(ctx, zap.DebugLevel, msg, l.metaField(ctx, meta)...)
}

// ActiveTraces returns the number of traces started but not ended
func (l *Logger) ActiveTraces() int {
	return l.sessions.Active()
}

// Run evicts abandoned traces until ctx is done
func (l *Logger) Run(ctx context.Context) {
	interval := l.opts.SessionTTL / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Sweep()
		}
	}
}

// Sweep evicts traces older than the session TTL without persisting them
func (l *Logger) Sweep() int {
	evicted := l.sessions.Sweep(l.opts.SessionTTL)
	if len(evicted) == 0 {
		return 0
	}
	metrics.RecordAbandoned(len(evicted))
	metrics.SetActiveSessions(l.sessions.Active())
	l.log.Warn("abandoned traces evicted",
		zap.Strings("trace_ids", evicted),
		zap.Duration("session_ttl", l.opts.SessionTTL),
	)
	return len(evicted)
}

func (l *Logger) line(ctx context.Context, level zapcore.Level, msg string, fields ...zap.Field) {
	ce := l.log.Check(level, l.indent(ctx, msg))
	if ce == nil {
		return
	}
	ce.Write(append(fields, l.scopeFields(ctx)...)...)
}

func (l *Logger) indent(ctx context.Context, msg string) string {
	if !l.opts.Indent {
		return msg
	}
	return strings.Repeat("  ", GroupDepth(ctx)) + msg
}

func (l *Logger) scopeFields(ctx context.Context) []zap.Field {
	var fields []zap.Field
	if f := currentFrame(ctx); f != nil {
		fields = append(fields, zap.String("group", f.path()), zap.Int("depth", f.depth))
	}
	if rid := requestscope.RequestID(ctx); rid != "" {
		fields = append(fields, zap.String("request_id", rid))
	}
	return fields
}

func (l *Logger) metaField(ctx context.Context, meta []any) []zap.Field {
	v := collapse(meta)
	if v == nil {
		return nil
	}
	return []zap.Field{zap.Any("meta", l.normalize(ctx, "log", "", v))}
}

func (l *Logger) normalize(ctx context.Context, op, traceID string, v any) any {
	if v == nil {
		return nil
	}
	tree, fallbacks := l.serializer.Normalize(v)
	if len(fallbacks) > 0 {
		metrics.RecordSerializationFallbacks(len(fallbacks))
		err := errors.SerializationFallback(op, traceID, fmt.Errorf("%d value(s) replaced, first at %s: %s",
			len(fallbacks), fallbacks[0].Path, fallbacks[0].Reason))
		l.log.Warn("serialization fallback", append(err.Fields(), l.scopeFields(ctx)...)...)
	}
	return tree
}

func (l *Logger) violation(ctx context.Context, op, traceID, reason string) {
	metrics.RecordProtocolViolation(op)
	err := errors.ProtocolViolation(op, traceID, "%s", reason)
	l.log.Warn("protocol violation", append(err.Fields(), l.scopeFields(ctx)...)...)
}

// recoverInternal keeps a bug in this package from reaching the caller
func (l *Logger) recoverInternal(op string) {
	if r := recover(); r != nil {
		l.log.Error("tracelog internal panic", zap.String("op", op), zap.Any("panic", r))
	}
}

// collapse turns variadic optional data into a single value
func collapse(values []any) any {
	switch len(values) {
	case 0:
		return nil
	case 1:
		return values[0]
	default:
		return values
	}
}
