package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit(t *testing.T) {
	t.Cleanup(func() {
		require.NoError(t, Init(Config{Level: "info", Format: "json"}))
	})

	t.Run("debug level enables IsDebug", func(t *testing.T) {
		require.NoError(t, Init(Config{Level: "debug", Format: "console"}))
		assert.True(t, IsDebug())
		assert.NotNil(t, Log)
		assert.NotNil(t, Sugar)
	})

	t.Run("invalid level falls back to info", func(t *testing.T) {
		require.NoError(t, Init(Config{Level: "loud", Format: "json"}))
		assert.False(t, IsDebug())
	})
}

func TestNewDoesNotReplaceGlobal(t *testing.T) {
	before := Log
	l := New(Config{Level: "warn", Format: "json"})
	assert.NotNil(t, l)
	assert.Same(t, before, Log)
}
