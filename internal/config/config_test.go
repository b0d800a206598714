package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_DefaultsAndEnvExpansion(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("TECHSCHED_TEST_TOKEN", "secret-token")

	path := writeFile(t, dir, "config.yaml", `
database:
  path: `+filepath.Join(dir, "db", "bookings.db")+`
notifications:
  telegram:
    bot_token: ${TECHSCHED_TEST_TOKEN}
    chat_ids: [42]
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "secret-token", cfg.Notifications.Telegram.BotToken)
	assert.Equal(t, []int64{42}, cfg.Notifications.Telegram.ChatIDs)
	assert.Equal(t, ":8000", cfg.HTTP.Address)
	assert.Equal(t, 8090, cfg.Monitoring.HealthCheckPort)
	assert.Equal(t, "techsched.events", cfg.Events.NATS.SubjectPrefix)
	assert.Equal(t, "configs/technicians.yaml", cfg.TechniciansPath)
	assert.DirExists(t, filepath.Join(dir, "db"))
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestConfig_Durations(t *testing.T) {
	var cfg Config
	assert.Equal(t, 24*time.Hour, cfg.BackupInterval())
	assert.Equal(t, 14*24*time.Hour, cfg.BackupRetention())

	cfg.Backup.IntervalHours = 6
	cfg.Backup.RetentionDays = 2
	cfg.Redis.CacheTTLSeconds = 30
	assert.Equal(t, 6*time.Hour, cfg.BackupInterval())
	assert.Equal(t, 48*time.Hour, cfg.BackupRetention())
	assert.Equal(t, 30*time.Second, cfg.CacheTTL())
}

func TestConfig_Location(t *testing.T) {
	var cfg Config
	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, time.Local, loc)

	cfg.Database.Timezone = "UTC"
	loc, err = cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "UTC", loc.String())

	cfg.Database.Timezone = "Nowhere/Invalid"
	_, err = cfg.Location()
	assert.Error(t, err)
}
