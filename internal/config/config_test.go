package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Server.Mode)
	assert.False(t, cfg.Database.Enabled)
	assert.False(t, cfg.Chrome.HeadlessMode)
	assert.Equal(t, 30*time.Second, cfg.Chrome.LoadTimeout)
	assert.Equal(t, "recordings", cfg.Recorder.OutputDir)
	assert.Equal(t, 100.0, cfg.Recorder.ScrollThreshold)
	assert.Equal(t, 20, cfg.Recorder.RecentLimit)
	assert.Equal(t, 168*time.Hour, cfg.Retention.MaxAge)
	assert.Equal(t, "info", cfg.Logger.Level)
}

func TestLoadConfig_EnvironmentOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_ENABLED", "true")
	t.Setenv("DB_NAME", "recordings")
	t.Setenv("CHROME_HEADLESS", "true")
	t.Setenv("RECORDER_SCROLL_THRESHOLD", "250")
	t.Setenv("RETENTION_MAX_AGE", "24h")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.True(t, cfg.Database.Enabled)
	assert.Equal(t, "recordings", cfg.Database.Database)
	assert.True(t, cfg.Chrome.HeadlessMode)
	assert.Equal(t, 250.0, cfg.Recorder.ScrollThreshold)
	assert.Equal(t, 24*time.Hour, cfg.Retention.MaxAge)
}

func TestLoadConfig_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "autoqa.yaml")
	content := `
server:
  port: "7000"
recorder:
  output_dir: /var/lib/autoqa
  selector_repair: true
log:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "7000", cfg.Server.Port)
	assert.Equal(t, "/var/lib/autoqa", cfg.Recorder.OutputDir)
	assert.True(t, cfg.Recorder.SelectorRepair)
	assert.Equal(t, "debug", cfg.Logger.Level)
	assert.Equal(t, "exports", cfg.Recorder.ExportDir)
}

func TestLoadConfig_MissingExplicitFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestLoadConfig_Invalid(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("RECORDER_SCROLL_THRESHOLD", "0")

	_, err := LoadConfig("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scroll_threshold")
}

func TestGetDSN(t *testing.T) {
	cfg := &Config{Database: DatabaseConfig{
		Host: "localhost", Port: "3306", Username: "qa", Password: "secret", Database: "autoqa", Charset: "utf8mb4",
	}}
	assert.Equal(t, "qa:secret@tcp(localhost:3306)/autoqa?charset=utf8mb4&parseTime=True&loc=Local", cfg.GetDSN())
}
