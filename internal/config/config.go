package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Storage drivers.
const (
	DriverFile   = "file"
	DriverSQLite = "sqlite"
)

// StorageConfig selects where the schedule snapshot is persisted.
type StorageConfig struct {
	// Driver is "file" (JSON document) or "sqlite".
	Driver string `yaml:"driver" json:"driver"`
	// Path is a directory for the file driver and a database file for sqlite.
	Path string `yaml:"path" json:"path"`
}

// ExportConfig controls ICS export.
type ExportConfig struct {
	// CalendarName is written as X-WR-CALNAME.
	CalendarName string `yaml:"calendar_name" json:"calendar_name"`
	// DurationMinutes is the length of timed stream events.
	DurationMinutes int `yaml:"duration_minutes" json:"duration_minutes"`
}

// BackupConfig controls periodic snapshot backups during `watch`.
type BackupConfig struct {
	// Cron is a standard 5-field cron expression. Empty disables backups.
	Cron string `yaml:"cron" json:"cron"`
	Dir  string `yaml:"dir" json:"dir"`
	// Keep is how many backup files survive pruning.
	Keep int `yaml:"keep" json:"keep"`
}

// MetricsConfig controls the Prometheus textfile written after each command.
type MetricsConfig struct {
	// Textfile, if set, is the .prom file path for node_exporter's textfile collector.
	Textfile string `yaml:"textfile" json:"textfile"`
}

// Config is the top-level application configuration.
type Config struct {
	// Timezone is the IANA zone used to interpret dates typed on the command
	// line and to render templates without a display zone. "Local" means the
	// host zone.
	Timezone string `yaml:"timezone" json:"timezone"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	Storage StorageConfig `yaml:"storage" json:"storage"`
	Export  ExportConfig  `yaml:"export" json:"export"`
	Backup  BackupConfig  `yaml:"backup" json:"backup"`
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`
}

// DefaultDataDir returns the directory holding persisted state, under the
// user's config dir when it can be determined.
func DefaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil && dir != "" {
		return filepath.Join(dir, "streamsched")
	}
	return "./var/streamsched"
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	return filepath.Join(DefaultDataDir(), "config.yaml")
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	dataDir := DefaultDataDir()
	return &Config{
		Timezone: "Local",
		LogLevel: "info",
		Storage: StorageConfig{
			Driver: DriverFile,
			Path:   dataDir,
		},
		Export: ExportConfig{
			CalendarName:    "Stream schedule",
			DurationMinutes: 120,
		},
		Backup: BackupConfig{
			Cron: "",
			Dir:  filepath.Join(dataDir, "backups"),
			Keep: 24,
		},
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	def := DefaultConfig()

	if strings.TrimSpace(c.Timezone) == "" {
		c.Timezone = def.Timezone
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		c.LogLevel = def.LogLevel
	}

	switch c.Storage.Driver {
	case DriverFile, DriverSQLite:
	default:
		// Unknown driver; fall back to the JSON file store.
		c.Storage.Driver = DriverFile
	}
	if c.Storage.Path == "" {
		c.Storage.Path = def.Storage.Path
		if c.Storage.Driver == DriverSQLite {
			c.Storage.Path = filepath.Join(def.Storage.Path, "schedule.db")
		}
	}

	if c.Export.CalendarName == "" {
		c.Export.CalendarName = def.Export.CalendarName
	}
	if c.Export.DurationMinutes <= 0 {
		c.Export.DurationMinutes = def.Export.DurationMinutes
	}

	if c.Backup.Dir == "" {
		c.Backup.Dir = def.Backup.Dir
	}
	if c.Backup.Keep <= 0 {
		c.Backup.Keep = def.Backup.Keep
	}
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes the given configuration to path atomically (temp file in the
// same directory, then rename) with 0600 permissions.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return WriteFileAtomic(path, data, ".streamsched-config-*.tmp")
}

func (c *Config) Save(path string) error {
	return Save(path, c)
}

// WriteFileAtomic writes data to path through a temp file matching pattern,
// creating the parent directory (0700) when needed.
func WriteFileAtomic(path string, data []byte, pattern string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
