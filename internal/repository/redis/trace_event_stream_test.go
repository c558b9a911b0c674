package redis

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/campaignforge/telemetry/internal/persistence"
)

type MockStreamAdder struct {
	mock.Mock
}

func (m *MockStreamAdder) XAdd(ctx context.Context, a *goredis.XAddArgs) *goredis.StringCmd {
	args := m.Called(ctx, a)
	cmd := goredis.NewStringCmd(ctx)
	if err := args.Error(0); err != nil {
		cmd.SetErr(err)
	} else {
		cmd.SetVal("1-0")
	}
	return cmd
}

func testRow() *persistence.Row {
	return &persistence.Row{
		EventID:    "evt",
		TraceID:    "trace",
		EventName:  "upload",
		Status:     "success",
		Timestamp:  time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
		DurationMs: 2.25,
		Payload:    "{}",
		Context:    "{}",
	}
}

func TestTraceEventStreamInsert(t *testing.T) {
	client := new(MockStreamAdder)
	client.On("XAdd", mock.Anything, mock.MatchedBy(func(a *goredis.XAddArgs) bool {
		values := a.Values.(map[string]interface{})
		return a.Stream == "events" && a.MaxLen == 100 && a.Approx &&
			values["event_name"] == "upload" && values["duration_ms"] == "2.25"
	})).Return(nil).Once()

	s := NewTraceEventStream(client, "events", 100)
	require.NoError(t, s.Insert(context.Background(), testRow()))
	client.AssertExpectations(t)
}

func TestTraceEventStreamDefaults(t *testing.T) {
	client := new(MockStreamAdder)
	client.On("XAdd", mock.Anything, mock.MatchedBy(func(a *goredis.XAddArgs) bool {
		return a.Stream == DefaultStream && a.MaxLen == 0 && !a.Approx
	})).Return(nil).Once()

	s := NewTraceEventStream(client, "", 0)
	require.NoError(t, s.Insert(context.Background(), testRow()))
	client.AssertExpectations(t)
}

func TestTraceEventStreamError(t *testing.T) {
	client := new(MockStreamAdder)
	client.On("XAdd", mock.Anything, mock.Anything).Return(errors.New("READONLY")).Once()

	s := NewTraceEventStream(client, "events", 0)
	err := s.Insert(context.Background(), testRow())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "READONLY")
}

func TestTraceEventStreamIntegration(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_HOST")
	if addr == "" {
		t.Skip("Skipping integration test: REDIS_TEST_HOST not set")
	}

	client := goredis.NewClient(&goredis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })
	ctx := context.Background()

	stream := "test:trace_events:" + time.Now().Format("150405.000")
	t.Cleanup(func() { client.Del(ctx, stream) })

	s := NewTraceEventStream(client, stream, 1000)
	require.NoError(t, s.Insert(ctx, testRow()))

	entries, err := client.XRange(ctx, stream, "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "upload", entries[0].Values["event_name"])
}
