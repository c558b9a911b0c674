package tracelog

import (
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/campaignforge/telemetry/internal/domain"
	"github.com/campaignforge/telemetry/internal/pkg/id"
)

const shardCount = 32

type sessionStatus uint8

const (
	statusActive sessionStatus = iota
	statusFinalized
)

// session is one live trace. It is only touched while its shard lock is held.
type session struct {
	id        string
	label     string
	startTime time.Time
	requestID string
	group     string
	status    sessionStatus
	notes     []domain.TraceNote
	dropped   int
}

type shard struct {
	mu       sync.Mutex
	sessions map[string]*session
}

// Manager is the concurrency-safe table of live traces keyed by trace id.
// There is no notion of a "current" trace; every call addresses a session
// explicitly.
type Manager struct {
	shards   [shardCount]shard
	clock    Clock
	newID    func() string
	maxNotes int
	active   atomic.Int64
}

// NewManager creates a session table. maxNotes bounds the notes kept per trace.
func NewManager(clock Clock, maxNotes int) *Manager {
	if clock == nil {
		clock = SystemClock{}
	}
	if maxNotes <= 0 {
		maxNotes = 1000
	}
	m := &Manager{clock: clock, newID: id.NewTraceID, maxNotes: maxNotes}
	for i := range m.shards {
		m.shards[i].sessions = make(map[string]*session)
	}
	return m
}

func (m *Manager) shardFor(traceID string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(traceID))
	return &m.shards[h.Sum32()%shardCount]
}

// Start registers a new active session and returns its id
func (m *Manager) Start(label, requestID, group string) (string, time.Time) {
	start := m.clock.Now()
	for {
		traceID := m.newID()
		sh := m.shardFor(traceID)

		sh.mu.Lock()
		if _, taken := sh.sessions[traceID]; taken {
			sh.mu.Unlock()
			continue
		}
		sh.sessions[traceID] = &session{
			id:        traceID,
			label:     label,
			startTime: start,
			requestID: requestID,
			group:     group,
			status:    statusActive,
		}
		sh.mu.Unlock()

		m.active.Add(1)
		return traceID, start
	}
}

// Note appends a sub-event to an active session, preserving call order.
// It reports false if the trace is unknown or already ended.
func (m *Manager) Note(traceID, message string, data any) bool {
	now := m.clock.Now()
	sh := m.shardFor(traceID)

	sh.mu.Lock()
	defer sh.mu.Unlock()

	s, ok := sh.sessions[traceID]
	if !ok || s.status != statusActive {
		return false
	}
	if len(s.notes) >= m.maxNotes {
		s.dropped++
		return true
	}
	s.notes = append(s.notes, domain.TraceNote{
		Message:  message,
		Time:     now,
		OffsetMs: elapsedMs(s.startTime, now),
		Data:     data,
	})
	return true
}

// finalized is the state of a session captured at the moment it ended
type finalized struct {
	session
	endTime time.Time
}

// Finalize ends an active session and evicts it from the table. Of any number
// of concurrent calls for the same id exactly one succeeds.
func (m *Manager) Finalize(traceID string) (*finalized, bool) {
	end := m.clock.Now()
	sh := m.shardFor(traceID)

	sh.mu.Lock()
	s, ok := sh.sessions[traceID]
	if !ok || s.status != statusActive {
		sh.mu.Unlock()
		return nil, false
	}
	s.status = statusFinalized
	delete(sh.sessions, traceID)
	sh.mu.Unlock()

	m.active.Add(-1)
	return &finalized{session: *s, endTime: end}, true
}

// Sweep evicts sessions started more than maxAge ago and returns their ids
func (m *Manager) Sweep(maxAge time.Duration) []string {
	cutoff := m.clock.Now().Add(-maxAge)

	var evicted []string
	for i := range m.shards {
		sh := &m.shards[i]
		sh.mu.Lock()
		for traceID, s := range sh.sessions {
			if s.startTime.Before(cutoff) {
				s.status = statusFinalized
				delete(sh.sessions, traceID)
				evicted = append(evicted, traceID)
			}
		}
		sh.mu.Unlock()
	}

	m.active.Add(-int64(len(evicted)))
	return evicted
}

// Active returns the number of live sessions
func (m *Manager) Active() int {
	return int(m.active.Load())
}
