package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "group.com.SaebyeokD", cfg.Suite)
	assert.Equal(t, "Asia/Seoul", cfg.Timezone)
	assert.Equal(t, "ko", cfg.Locale)
	assert.Equal(t, "0 * * * *", cfg.RefreshCron)
	assert.Equal(t, 15, cfg.Widget.TimelineMinutes)
	assert.Equal(t, 15*time.Minute, cfg.TimelinePolicy())
	assert.True(t, cfg.NotificationsAuthorized())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestLoadNormalizesPartialFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yml := "data_dir: " + dir + "\nlocale: fr\nwidget:\n  listen: 0.0.0.0:9000\nnotifications:\n  permission: denied\n"
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, dir, cfg.DataDir)
	assert.Equal(t, filepath.Join(dir, "shared"), cfg.SharedDir)
	assert.Equal(t, filepath.Join(dir, "dday.db"), cfg.DatabasePath())
	assert.Equal(t, "ko", cfg.Locale)
	assert.Equal(t, "http://0.0.0.0:9000", cfg.ReloadEndpoint())
	assert.False(t, cfg.NotificationsAuthorized())
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, Save(path, &Config{DataDir: dir, Locale: "ko"}))

	t.Setenv("DDAY_LOCALE", "en")
	t.Setenv("DDAY_WIDGET_RELOAD_URL", "http://widgets.local:7000")
	t.Setenv("DDAY_LOG_LEVEL", "DEBUG")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "en", cfg.Locale)
	assert.Equal(t, "http://widgets.local:7000", cfg.ReloadEndpoint())
	assert.Equal(t, "DEBUG", cfg.LogLevel)

	// env values are not persisted
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "widgets.local")
}

func TestSaveRejectsEmptyInput(t *testing.T) {
	assert.Error(t, Save("", DefaultConfig()))
	assert.Error(t, Save(filepath.Join(t.TempDir(), "c.yaml"), nil))
}

func TestLocationFallsBack(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Timezone = "Not/AZone"
	loc, err := cfg.Location()
	assert.Error(t, err)
	assert.Equal(t, time.Local, loc)
}
