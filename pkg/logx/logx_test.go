package logx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerWritesToRing(t *testing.T) {
	logger := NewLogger("test-component")
	logger.Info("hello %s", "world")

	entries := RecentEntries()
	require.NotEmpty(t, entries)

	last := entries[len(entries)-1]
	assert.Equal(t, "test-component", last.Component)
	assert.Equal(t, "INFO", last.Level)
	assert.Equal(t, "hello world", last.Message)
}

func TestDebugSuppressedByDefault(t *testing.T) {
	SetDebug(false)
	logger := NewLogger("quiet")

	before := len(RecentEntries())
	logger.Debug("should not appear")
	assert.Equal(t, before, len(RecentEntries()))
}

func TestDebugEnabledGlobally(t *testing.T) {
	SetDebug(true)
	defer SetDebug(false)

	logger := NewLogger("loud")
	before := len(RecentEntries())
	logger.Debug("should appear")
	assert.Equal(t, before+1, len(RecentEntries()))
}

func TestDomainFiltering(t *testing.T) {
	SetDebug(true)
	defer SetDebug(false)

	debugMu.Lock()
	debugConfig.Domains = map[string]bool{"executor": true}
	debugMu.Unlock()
	defer func() {
		debugMu.Lock()
		debugConfig.Domains = nil
		debugMu.Unlock()
	}()

	assert.True(t, IsDebugEnabledForDomain("executor"))
	assert.False(t, IsDebugEnabledForDomain("llm"))
}

func TestWrapNilError(t *testing.T) {
	assert.NoError(t, Wrap(nil, "context"))
}

func TestWrapError(t *testing.T) {
	err := Errorf("boom %d", 1)
	wrapped := Wrap(err, "outer")
	require.Error(t, wrapped)
	assert.Contains(t, wrapped.Error(), "outer: boom 1")
}
