package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	t.Setenv("ACTIVABLE_DATA_DIR", t.TempDir())

	cfg := Default()
	assert.Equal(t, DriverSQLite, cfg.DBDriver)
	assert.Equal(t, DBPath(), cfg.DBDSN)
	assert.Equal(t, 4, cfg.MaxConns)
	assert.Equal(t, DefaultBatchSize, cfg.RemoveBatchSize)
	assert.Equal(t, DefaultSlowOperation, cfg.SlowOperation)
	assert.Equal(t, zerolog.InfoLevel, cfg.Level())
}

func TestLoadFile_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv("ACTIVABLE_DATA_DIR", t.TempDir())

	cfg, err := LoadFile(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadFile_Settings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
  "ACTIVABLE_DB_DRIVER": "postgres",
  "ACTIVABLE_DB_DSN": "postgres://localhost/activable",
  "ACTIVABLE_MAX_CONNS": 12,
  "ACTIVABLE_LOG_LEVEL": "debug",
  "ACTIVABLE_REMOVE_BATCH_SIZE": 25,
  "ACTIVABLE_SLOW_OPERATION_MS": 250,
  "ACTIVABLE_MAINTENANCE_ENABLED": true,
  "ACTIVABLE_MAINTENANCE_INTERVAL_HOURS": 6,
  "ACTIVABLE_SESSION_RETENTION_DAYS": 30,
  "SOMETHING_ELSE": true
}`), 0600))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, DriverPostgres, cfg.DBDriver)
	assert.Equal(t, "postgres://localhost/activable", cfg.DBDSN)
	assert.Equal(t, 12, cfg.MaxConns)
	assert.Equal(t, zerolog.DebugLevel, cfg.Level())
	assert.Equal(t, 25, cfg.RemoveBatchSize)
	assert.Equal(t, 250*time.Millisecond, cfg.SlowOperation)
	assert.True(t, cfg.MaintenanceEnabled)
	assert.Equal(t, 6, cfg.MaintenanceIntervalHours)
	assert.Equal(t, 30, cfg.SessionRetentionDays)
}

func TestLoadFile_InvalidValuesIgnored(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
  "ACTIVABLE_DB_DRIVER": "oracle",
  "ACTIVABLE_MAX_CONNS": -3,
  "ACTIVABLE_LOG_LEVEL": "loud"
}`), 0600))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, DriverSQLite, cfg.DBDriver)
	assert.Equal(t, 4, cfg.MaxConns)
	assert.Equal(t, zerolog.InfoLevel, cfg.Level())
}

func TestLoadFile_MalformedFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, os.WriteFile(path, []byte(`{not json`), 0600))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, DriverSQLite, cfg.DBDriver)
}

func TestLoadFile_EnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"ACTIVABLE_MAX_CONNS": 12}`), 0600))

	t.Setenv("ACTIVABLE_DB_DRIVER", "postgres")
	t.Setenv("DATABASE_DSN", "postgres://env/db")
	t.Setenv("ACTIVABLE_MAX_CONNS", "2")
	t.Setenv("ACTIVABLE_REMOVE_BATCH_SIZE", "7")
	t.Setenv("ACTIVABLE_SLOW_OPERATION_MS", "40")
	t.Setenv("ACTIVABLE_MAINTENANCE_ENABLED", "true")
	t.Setenv("ACTIVABLE_MAINTENANCE_INTERVAL_HOURS", "3")
	t.Setenv("ACTIVABLE_SESSION_RETENTION_DAYS", "14")

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, DriverPostgres, cfg.DBDriver)
	assert.Equal(t, "postgres://env/db", cfg.DBDSN)
	assert.Equal(t, 2, cfg.MaxConns)
	assert.Equal(t, 7, cfg.RemoveBatchSize)
	assert.Equal(t, 40*time.Millisecond, cfg.SlowOperation)
	assert.True(t, cfg.MaintenanceEnabled)
	assert.Equal(t, 3, cfg.MaintenanceIntervalHours)
	assert.Equal(t, 14, cfg.SessionRetentionDays)
}

func TestEnsureAll(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	t.Setenv("ACTIVABLE_DATA_DIR", dir)

	require.NoError(t, EnsureAll())
	_, err := os.Stat(SettingsPath())
	require.NoError(t, err)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.MaxConns)
	assert.Equal(t, 100, cfg.RemoveBatchSize)

	// An existing file is kept.
	require.NoError(t, os.WriteFile(SettingsPath(), []byte(`{"ACTIVABLE_MAX_CONNS": 9}`), 0600))
	require.NoError(t, EnsureSettings())
	cfg, err = Load()
	require.NoError(t, err)
	assert.Equal(t, 9, cfg.MaxConns)
}
