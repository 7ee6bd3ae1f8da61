package utils

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLogger_WritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "server.log")

	logger, err := NewLogger(LoggerConfig{Level: "debug", OutputPath: path, Format: "json", Service: "emission-workflow"})
	require.NoError(t, err)

	logger.Info("case opened", zap.String("folio", "EM-2026-000001"))
	require.NoError(t, logger.Sync())

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), `"folio":"EM-2026-000001"`)
	assert.Contains(t, string(content), `"service":"emission-workflow"`)
}

func TestNewLogger_UnknownLevelFallsBackToInfo(t *testing.T) {
	logger, err := NewLogger(LoggerConfig{Level: "verbose", OutputPath: "stderr"})
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.DebugLevel))
	assert.True(t, logger.Core().Enabled(zapcore.InfoLevel))
}

func TestKVLogger(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	kv := NewKVLogger(zap.New(core))

	kv.Info("Case opened", "folio", "EM-2026-000001", "opened", 3)
	kv.Error("Notification failed", "error", errors.New("rate limited"), 42, "skipped", "dangling")

	entries := logs.All()
	require.Len(t, entries, 2)

	fields := entries[0].ContextMap()
	assert.Equal(t, "EM-2026-000001", fields["folio"])
	assert.EqualValues(t, 3, fields["opened"])

	fields = entries[1].ContextMap()
	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
	assert.Equal(t, "rate limited", fields["error"])
	assert.Contains(t, fields, "dangling")
	assert.Len(t, fields, 2)
}

func TestKVLogger_NilLogger(t *testing.T) {
	assert.NotPanics(t, func() {
		NewKVLogger(nil).Info("ignored", "k", "v")
	})
}
