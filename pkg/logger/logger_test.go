package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"autoqa/backend/internal/config"
)

func TestNew_JSONConsole(t *testing.T) {
	var buf bytes.Buffer
	l := New(config.LoggerConfig{Level: "info", Format: "json", ServiceName: "autoqa"}, zapcore.AddSync(&buf))

	l.Debug("hidden")
	l.Info("Recording started", zap.String("session_id", "abc"))
	require.NoError(t, l.Sync())

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "autoqa", entry["logger"])
	assert.Equal(t, "Recording started", entry["msg"])
	assert.Equal(t, "abc", entry["session_id"])
	assert.NotContains(t, buf.String(), "hidden")
}

func TestNew_InvalidLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	l := New(config.LoggerConfig{Level: "chatty", Format: "console"}, zapcore.AddSync(&buf))

	l.Debug("hidden")
	l.Info("shown")
	require.NoError(t, l.Sync())

	assert.Contains(t, buf.String(), "shown")
	assert.NotContains(t, buf.String(), "hidden")
}

func TestNew_FileCore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "autoqa.log")
	var buf bytes.Buffer
	l := New(config.LoggerConfig{Level: "warn", Format: "console", File: path, MaxSize: 1}, zapcore.AddSync(&buf))

	l.Warn("disk is filling up")
	require.NoError(t, l.Sync())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"msg":"disk is filling up"`)
	assert.Contains(t, buf.String(), "disk is filling up")
}

func TestL_BeforeInit(t *testing.T) {
	assert.NotNil(t, L())
}
