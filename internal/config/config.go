// Package config provides configuration management for activable.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

const (
	// DriverPostgres selects the PostgreSQL GORM driver.
	DriverPostgres = "postgres"
	// DriverSQLite selects the embedded SQLite GORM driver.
	DriverSQLite = "sqlite"

	// DefaultBatchSize is the number of rows loaded per query by mass removals.
	DefaultBatchSize = 100

	// DefaultSlowOperation is the threshold above which store operations are logged.
	DefaultSlowOperation = 100 * time.Millisecond
)

// Config holds the application configuration.
type Config struct {
	// Database settings
	DBDriver string `json:"db_driver"` // "postgres" or "sqlite"
	DBDSN    string `json:"db_dsn"`    // PostgreSQL DSN or SQLite file path
	MaxConns int    `json:"max_conns"`

	// Logging
	LogLevel string `json:"log_level"` // zerolog level name

	// Removal settings
	RemoveBatchSize int           `json:"remove_batch_size"`
	SlowOperation   time.Duration `json:"slow_operation"`

	// Maintenance settings
	MaintenanceEnabled       bool `json:"maintenance_enabled"`
	MaintenanceIntervalHours int  `json:"maintenance_interval_hours"`
	SessionRetentionDays     int  `json:"session_retention_days"` // 0 keeps sessions forever
}

// DataDir returns the data directory path (~/.activable).
func DataDir() string {
	if dir := os.Getenv("ACTIVABLE_DATA_DIR"); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".activable")
}

// DBPath returns the default SQLite database file path.
func DBPath() string {
	return filepath.Join(DataDir(), "activable.db")
}

// SettingsPath returns the settings file path.
func SettingsPath() string {
	return filepath.Join(DataDir(), "settings.json")
}

// EnsureDataDir creates the data directory if it doesn't exist.
func EnsureDataDir() error {
	return os.MkdirAll(DataDir(), 0750)
}

// EnsureSettings creates a default settings file if it doesn't exist.
func EnsureSettings() error {
	path := SettingsPath()

	if _, err := os.Stat(path); err == nil {
		return nil
	}

	defaultSettings := `{
  "ACTIVABLE_DB_DRIVER": "sqlite",
  "ACTIVABLE_MAX_CONNS": 4,
  "ACTIVABLE_LOG_LEVEL": "info",
  "ACTIVABLE_REMOVE_BATCH_SIZE": 100
}
`
	return os.WriteFile(path, []byte(defaultSettings), 0600)
}

// EnsureAll ensures all required directories and files exist.
func EnsureAll() error {
	if err := EnsureDataDir(); err != nil {
		return err
	}
	return EnsureSettings()
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		DBDriver:        DriverSQLite,
		DBDSN:           DBPath(),
		MaxConns:        4,
		LogLevel:        "info",
		RemoveBatchSize: DefaultBatchSize,
		SlowOperation:   DefaultSlowOperation,

		MaintenanceEnabled:       false,
		MaintenanceIntervalHours: 24,
		SessionRetentionDays:     0,
	}
}

// Load loads configuration from the settings file, merging with defaults and
// then applying environment overrides.
func Load() (*Config, error) {
	return LoadFile(SettingsPath())
}

// LoadFile loads configuration from path, merging with defaults and then
// applying environment overrides. A missing file yields the defaults.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	if err == nil {
		// Load settings into a map to preserve unknown fields
		var settings map[string]interface{}
		if err := json.Unmarshal(data, &settings); err == nil {
			applySettings(cfg, settings)
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

func applySettings(cfg *Config, settings map[string]interface{}) {
	if v, ok := settings["ACTIVABLE_DB_DRIVER"].(string); ok && validDriver(v) {
		cfg.DBDriver = v
	}
	if v, ok := settings["ACTIVABLE_DB_DSN"].(string); ok && v != "" {
		cfg.DBDSN = v
	}
	if v, ok := settings["ACTIVABLE_MAX_CONNS"].(float64); ok && v > 0 {
		cfg.MaxConns = int(v)
	}
	if v, ok := settings["ACTIVABLE_LOG_LEVEL"].(string); ok && v != "" {
		cfg.LogLevel = v
	}
	if v, ok := settings["ACTIVABLE_REMOVE_BATCH_SIZE"].(float64); ok && v > 0 {
		cfg.RemoveBatchSize = int(v)
	}
	if v, ok := settings["ACTIVABLE_SLOW_OPERATION_MS"].(float64); ok && v > 0 {
		cfg.SlowOperation = time.Duration(v) * time.Millisecond
	}
	if v, ok := settings["ACTIVABLE_MAINTENANCE_ENABLED"].(bool); ok {
		cfg.MaintenanceEnabled = v
	}
	if v, ok := settings["ACTIVABLE_MAINTENANCE_INTERVAL_HOURS"].(float64); ok && v > 0 {
		cfg.MaintenanceIntervalHours = int(v)
	}
	if v, ok := settings["ACTIVABLE_SESSION_RETENTION_DAYS"].(float64); ok && v >= 0 {
		cfg.SessionRetentionDays = int(v)
	}
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("ACTIVABLE_DB_DRIVER"); validDriver(v) {
		cfg.DBDriver = v
	}
	if v := os.Getenv("DATABASE_DSN"); v != "" {
		cfg.DBDSN = v
	}
	if v := os.Getenv("ACTIVABLE_DB_DSN"); v != "" {
		cfg.DBDSN = v
	}
	if v, err := strconv.Atoi(os.Getenv("ACTIVABLE_MAX_CONNS")); err == nil && v > 0 {
		cfg.MaxConns = v
	}
	if v := os.Getenv("ACTIVABLE_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v, err := strconv.Atoi(os.Getenv("ACTIVABLE_REMOVE_BATCH_SIZE")); err == nil && v > 0 {
		cfg.RemoveBatchSize = v
	}
	if v, err := strconv.Atoi(os.Getenv("ACTIVABLE_SLOW_OPERATION_MS")); err == nil && v > 0 {
		cfg.SlowOperation = time.Duration(v) * time.Millisecond
	}
	if v, err := strconv.ParseBool(os.Getenv("ACTIVABLE_MAINTENANCE_ENABLED")); err == nil {
		cfg.MaintenanceEnabled = v
	}
	if v, err := strconv.Atoi(os.Getenv("ACTIVABLE_MAINTENANCE_INTERVAL_HOURS")); err == nil && v > 0 {
		cfg.MaintenanceIntervalHours = v
	}
	if v, err := strconv.Atoi(os.Getenv("ACTIVABLE_SESSION_RETENTION_DAYS")); err == nil && v >= 0 {
		cfg.SessionRetentionDays = v
	}
}

func validDriver(v string) bool {
	return v == DriverPostgres || v == DriverSQLite
}

// Level returns the configured zerolog level, falling back to info.
func (c *Config) Level() zerolog.Level {
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(c.LogLevel)))
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return level
}
