package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLogger_Environments(t *testing.T) {
	for _, env := range []string{"prod", "staging", "local", "dev", "docker", "test", "PROD"} {
		l, err := NewLogger(env, Options{})
		require.NoError(t, err, env)
		assert.NotNil(t, l)
	}
}

func TestNewLogger_UnknownEnv(t *testing.T) {
	_, err := NewLogger("moon", Options{})
	assert.Error(t, err)
}

func TestNewLogger_LevelOverride(t *testing.T) {
	l, err := NewLogger("prod", Options{Level: "debug"})
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zapcore.DebugLevel))

	_, err = NewLogger("prod", Options{Level: "loud"})
	assert.Error(t, err)
}

func TestNewLogger_TestEnvQuiet(t *testing.T) {
	l, err := NewLogger("test", Options{})
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zapcore.WarnLevel))
	assert.True(t, l.Core().Enabled(zapcore.ErrorLevel))
}

func TestForScope(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	ForScope(zap.New(core), "abc123").Info("hello")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "abc123", logs.All()[0].ContextMap()["scope"])

	assert.NotNil(t, ForScope(nil, "x"))
}

func TestNewLogger_Format(t *testing.T) {
	for _, format := range []string{"json", "console"} {
		l, err := NewLogger("dev", Options{Format: format})
		require.NoError(t, err, format)
		assert.NotNil(t, l)
	}
	_, err := NewLogger("dev", Options{Format: "xml"})
	assert.Error(t, err)
}

func TestCollection(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	zap.New(core).Info("dropped", Collection("abc123_orders"))

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "abc123_orders", logs.All()[0].ContextMap()["collection"])
}

func TestFromContextOr(t *testing.T) {
	fallback := zap.NewExample()
	assert.Same(t, fallback, FromContextOr(context.Background(), fallback))
	assert.NotNil(t, FromContextOr(context.Background(), nil))

	scoped := zap.NewExample()
	ctx := ContextWithLogger(context.Background(), scoped)
	assert.Same(t, scoped, FromContextOr(ctx, fallback))
}
