package zaplogger

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/Zhima-Mochi/krishi-prebook/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLoggerWithCarriesFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := Wrap(zap.New(core))

	child := log.With(observability.F("request_id", "r-1"))
	child.Info("http_access", observability.F("status", 200))

	entries := logs.All()
	require.Len(t, entries, 1)
	ctx := entries[0].ContextMap()
	assert.Equal(t, "http_access", entries[0].Message)
	assert.Equal(t, "r-1", ctx["request_id"])
	assert.EqualValues(t, 200, ctx["status"])
}

func TestLoggerEncodesErrors(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	Wrap(zap.New(core)).Warn("cart_mirror_failed", observability.F("error", errors.New("boom")))

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "boom", logs.All()[0].ContextMap()["error"])
}

func TestNewCreatesLogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "app.log")

	l, err := New(Options{Service: "krishi-prebook", Env: "test", LogFile: path})
	require.NoError(t, err)
	l.Info("started")
	_ = l.Sync()

	assert.FileExists(t, path)
}
