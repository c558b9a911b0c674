package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/campaignforge/telemetry/internal/persistence"
)

// TypeTraceEvent is the task type for a finalized trace awaiting storage
const TypeTraceEvent = "telemetry:trace_event"

// NewTraceEventTask creates a trace event task. Tasks are never retried.
func NewTraceEventTask(row *persistence.Row) (*asynq.Task, error) {
	data, err := persistence.EncodeRow(row)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal trace event payload: %w", err)
	}
	return asynq.NewTask(TypeTraceEvent, data, asynq.MaxRetry(0), asynq.Timeout(30*time.Second)), nil
}

// Enqueuer is the subset of asynq.Client used to hand off tasks
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// QueueStore implements persistence.Store by enqueuing each row for the
// worker process.
type QueueStore struct {
	client Enqueuer
	queue  string
}

// NewQueueStore creates a queue-backed store
func NewQueueStore(client Enqueuer, queue string) *QueueStore {
	if queue == "" {
		queue = DefaultQueue
	}
	return &QueueStore{client: client, queue: queue}
}

// Insert implements persistence.Store
func (s *QueueStore) Insert(ctx context.Context, row *persistence.Row) error {
	task, err := NewTraceEventTask(row)
	if err != nil {
		return err
	}
	if _, err := s.client.EnqueueContext(ctx, task, asynq.Queue(s.queue)); err != nil {
		return fmt.Errorf("failed to enqueue trace event: %w", err)
	}
	return nil
}

// TraceEventWorker writes queued trace events to the backing store
type TraceEventWorker struct {
	logger *zap.Logger
	store  persistence.Store
}

// NewTraceEventWorker creates a new trace event worker
func NewTraceEventWorker(logger *zap.Logger, store persistence.Store) *TraceEventWorker {
	return &TraceEventWorker{logger: logger, store: store}
}

// ProcessTask processes a trace event task
func (w *TraceEventWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	row, err := persistence.DecodeRow(t.Payload())
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	if err := w.store.Insert(ctx, row); err != nil {
		w.logger.Error("failed to store trace event",
			zap.String("trace_id", row.TraceID),
			zap.String("event_name", row.EventName),
			zap.Error(err),
		)
		return fmt.Errorf("failed to store trace event: %w", err)
	}

	w.logger.Debug("trace event stored",
		zap.String("trace_id", row.TraceID),
		zap.String("event_name", row.EventName),
	)
	return nil
}
