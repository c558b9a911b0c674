package id

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("entropy exhausted")
}

func TestNewTraceID(t *testing.T) {
	t.Run("is valid W3C format", func(t *testing.T) {
		assert.True(t, ValidateTraceID(NewTraceID()))
	})

	t.Run("concurrent IDs are distinct", func(t *testing.T) {
		const workers, perWorker = 16, 500

		var mu sync.Mutex
		seen := make(map[string]struct{}, workers*perWorker)

		var wg sync.WaitGroup
		for w := 0; w < workers; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				local := make([]string, 0, perWorker)
				for i := 0; i < perWorker; i++ {
					local = append(local, NewTraceID())
				}
				mu.Lock()
				for _, id := range local {
					seen[id] = struct{}{}
				}
				mu.Unlock()
			}()
		}
		wg.Wait()

		assert.Len(t, seen, workers*perWorker)
	})

	t.Run("fallback stays distinct and valid", func(t *testing.T) {
		orig := randReader
		randReader = failingReader{}
		t.Cleanup(func() { randReader = orig })

		a, b := NewTraceID(), NewTraceID()
		require.True(t, ValidateTraceID(a))
		require.True(t, ValidateTraceID(b))
		assert.NotEqual(t, a, b)
	})
}

func TestValidateTraceID(t *testing.T) {
	tests := []struct {
		name  string
		id    string
		valid bool
	}{
		{"valid", "4bf92f3577b34da6a3ce929d0e0e4736", true},
		{"too short", "4bf92f3577b34da6", false},
		{"not hex", "zzf92f3577b34da6a3ce929d0e0e4736", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, ValidateTraceID(tt.id))
		})
	}
}

func TestNewEventID(t *testing.T) {
	assert.True(t, ValidateUUID(NewEventID()))
	assert.NotEqual(t, NewEventID(), NewEventID())
}
