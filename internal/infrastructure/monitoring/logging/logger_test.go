package logging

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest/observer"
	"go.uber.org/zap/zapcore"
)

func newObservedLogger(level zapcore.Level) (Logger, *observer.ObservedLogs) {
	core, logs := observer.New(level)
	return NewLoggerFromCore(core), logs
}

func TestNewLoggerJSON(t *testing.T) {
	l, err := NewLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, l)
}

func TestNewLoggerConsole(t *testing.T) {
	l, err := NewLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, l)
}

func TestNewLoggerDefaults(t *testing.T) {
	// Empty config must still produce a working logger (info/json/stdout).
	l, err := NewLogger(LogConfig{})
	require.NoError(t, err)
	assert.NotNil(t, l)
}

func TestLevelFiltering(t *testing.T) {
	l, logs := newObservedLogger(zapcore.InfoLevel)

	l.Debug("suppressed")
	l.Info("kept")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "kept", logs.All()[0].Message)
}

func TestFieldConversion(t *testing.T) {
	l, logs := newObservedLogger(zapcore.DebugLevel)

	l.Info("fields",
		String("port", "map ta phut"),
		Int("k", 10),
		Int64("grt", 4626),
		Float64("confidence", 0.83),
		Bool("shifting", true),
		Duration("took", 120*time.Millisecond),
		Err(errors.New("boom")),
		Err(nil),
	)

	require.Equal(t, 1, logs.Len())
	ctx := logs.All()[0].ContextMap()
	assert.Equal(t, "map ta phut", ctx["port"])
	assert.Equal(t, int64(4626), ctx["grt"])
	assert.Equal(t, true, ctx["shifting"])
	assert.Equal(t, "boom", ctx["error"])
}

func TestWithAddsPersistentFields(t *testing.T) {
	l, logs := newObservedLogger(zapcore.DebugLevel)

	child := l.With(String("request_id", "req-1"))
	child.Info("one")
	child.Warn("two")
	l.Info("parent untouched")

	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, "req-1", entries[0].ContextMap()["request_id"])
	assert.Equal(t, "req-1", entries[1].ContextMap()["request_id"])
	assert.NotContains(t, entries[2].ContextMap(), "request_id")
}

func TestNamed(t *testing.T) {
	l, logs := newObservedLogger(zapcore.DebugLevel)

	l.Named("engine").Info("hello")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "engine", logs.All()[0].LoggerName)
}

func TestNopLogger(t *testing.T) {
	l := NewNopLogger()
	// Must not panic and must be chainable.
	l.With(String("a", "b")).Named("x").Info("discarded")
}

func TestDefaultLogger(t *testing.T) {
	orig := Default()
	defer SetDefault(orig)

	l, _ := newObservedLogger(zapcore.DebugLevel)
	SetDefault(l)
	assert.Equal(t, l, Default())

	// nil is ignored.
	SetDefault(nil)
	assert.Equal(t, l, Default())
}
