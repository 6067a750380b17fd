// Package config loads and saves the watcher's YAML configuration file,
// following the same DefaultConfig/LoadConfig/Save pattern as the teacher's
// internal/node.Config.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the ledger watcher.
type Config struct {
	// Ledger points at the read-only Primary Ledger Store.
	Ledger LedgerConfig `yaml:"ledger"`

	// Projection owns the Projection Store file this process writes.
	Projection ProjectionConfig `yaml:"projection"`

	// Watcher tunes the catch-up/follow/mempool loops.
	Watcher WatcherConfig `yaml:"watcher"`

	// Metrics configures the Prometheus HTTP endpoint.
	Metrics MetricsConfig `yaml:"metrics"`

	// Logging holds logging settings.
	Logging LoggingConfig `yaml:"logging"`
}

// LedgerConfig points at the Primary Ledger Store.
type LedgerConfig struct {
	// Path is the SQLite file path of the Primary Ledger Store.
	Path string `yaml:"path"`
}

// ProjectionConfig owns the Projection Store.
type ProjectionConfig struct {
	// Path is the SQLite file path of the Projection Store.
	Path string `yaml:"path"`

	// MigrationLockTimeout bounds how long to wait for the schema_lock
	// advisory lock before breaking it (§5, §7).
	MigrationLockTimeout time.Duration `yaml:"migration_lock_timeout"`
}

// WatcherConfig tunes the background loops (§4.3-§4.6).
type WatcherConfig struct {
	// FollowInterval is how often the steady-state loop reconciles and
	// catches up once initial catch-up has finished.
	FollowInterval time.Duration `yaml:"follow_interval"`

	// MempoolInterval is how often the mempool projection is rebuilt.
	MempoolInterval time.Duration `yaml:"mempool_interval"`

	// SkipListSize bounds the mempool uniqueness skip list (§9).
	SkipListSize int `yaml:"skip_list_size"`

	// CatchupProgressEvery is loaded and saved but not passed to the
	// watcher; setting it does not change how often catch-up logs progress.
	CatchupProgressEvery int64 `yaml:"catchup_progress_every"`
}

// MetricsConfig configures the Prometheus HTTP endpoint.
type MetricsConfig struct {
	// ListenAddr is the address /metrics is served on, empty disables it.
	ListenAddr string `yaml:"listen_addr"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the log level (debug, info, warn, error).
	Level string `yaml:"level"`

	// File is loaded and saved but not read by watchd: logs always go to
	// stderr.
	File string `yaml:"file"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Ledger: LedgerConfig{
			Path: "ledger.db",
		},
		Projection: ProjectionConfig{
			Path:                 "projection.db",
			MigrationLockTimeout: 30 * time.Second,
		},
		Watcher: WatcherConfig{
			FollowInterval:       10 * time.Second,
			MempoolInterval:      5 * time.Second,
			SkipListSize:         4096,
			CatchupProgressEvery: 1000,
		},
		Metrics: MetricsConfig{
			ListenAddr: ":9191",
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "",
		},
	}
}

// ConfigFileName is the default config file name.
const ConfigFileName = "watchd.yaml"

// LoadConfig loads configuration from a YAML file under dataDir. If the
// file doesn't exist, it creates one with default values.
func LoadConfig(dataDir string) (*Config, error) {
	expandedDir := expandPath(dataDir)
	configPath := filepath.Join(expandedDir, ConfigFileName)

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := DefaultConfig()
		if err := cfg.Save(configPath); err != nil {
			return nil, fmt.Errorf("config: write default: %w", err)
		}
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", configPath, err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", configPath, err)
	}
	return cfg, nil
}

// Save writes the configuration to a YAML file, creating its directory if
// needed.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("config: create directory: %w", err)
		}
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}

	header := []byte("# ledger-watcher configuration\n# Generated automatically on first run\n\n")
	data = append(header, data...)

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

// ConfigPath returns the full path to the config file for the given data
// directory.
func ConfigPath(dataDir string) string {
	return filepath.Join(expandPath(dataDir), ConfigFileName)
}

func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[1:])
	}
	return path
}
