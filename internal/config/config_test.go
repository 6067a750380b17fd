package config

import (
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Ledger.Path != "ledger.db" {
		t.Errorf("expected default ledger path ledger.db, got %s", cfg.Ledger.Path)
	}
	if cfg.Projection.Path != "projection.db" {
		t.Errorf("expected default projection path projection.db, got %s", cfg.Projection.Path)
	}
	if cfg.Projection.MigrationLockTimeout != 30*time.Second {
		t.Errorf("expected 30s migration lock timeout, got %s", cfg.Projection.MigrationLockTimeout)
	}
	if cfg.Watcher.FollowInterval != 10*time.Second {
		t.Errorf("expected 10s follow interval, got %s", cfg.Watcher.FollowInterval)
	}
	if cfg.Watcher.MempoolInterval != 5*time.Second {
		t.Errorf("expected 5s mempool interval, got %s", cfg.Watcher.MempoolInterval)
	}
	if cfg.Watcher.SkipListSize != 4096 {
		t.Errorf("expected skip list size 4096, got %d", cfg.Watcher.SkipListSize)
	}
	if cfg.Metrics.ListenAddr != ":9191" {
		t.Errorf("expected default metrics addr :9191, got %s", cfg.Metrics.ListenAddr)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("expected default log level info, got %s", cfg.Logging.Level)
	}
}

func TestLoadConfigWritesDefaultOnFirstRun(t *testing.T) {
	dir := t.TempDir()

	cfg, err := LoadConfig(dir)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Ledger.Path != "ledger.db" {
		t.Errorf("expected default ledger path, got %s", cfg.Ledger.Path)
	}

	configPath := filepath.Join(dir, ConfigFileName)
	loaded, err := LoadConfig(dir)
	if err != nil {
		t.Fatalf("second LoadConfig: %v", err)
	}
	if loaded.Projection.Path != cfg.Projection.Path {
		t.Errorf("config did not round-trip: got %s, want %s", loaded.Projection.Path, cfg.Projection.Path)
	}
	if got := ConfigPath(dir); got != configPath {
		t.Errorf("ConfigPath mismatch: got %s, want %s", got, configPath)
	}
}

func TestLoadConfigRoundTripsOverrides(t *testing.T) {
	dir := t.TempDir()

	cfg := DefaultConfig()
	cfg.Ledger.Path = "/var/lib/ledger/primary.db"
	cfg.Watcher.MempoolInterval = 2 * time.Second
	cfg.Logging.Level = "debug"

	configPath := filepath.Join(dir, ConfigFileName)
	if err := cfg.Save(configPath); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := LoadConfig(dir)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if loaded.Ledger.Path != cfg.Ledger.Path {
		t.Errorf("ledger path: got %s, want %s", loaded.Ledger.Path, cfg.Ledger.Path)
	}
	if loaded.Watcher.MempoolInterval != cfg.Watcher.MempoolInterval {
		t.Errorf("mempool interval: got %s, want %s", loaded.Watcher.MempoolInterval, cfg.Watcher.MempoolInterval)
	}
	if loaded.Logging.Level != cfg.Logging.Level {
		t.Errorf("log level: got %s, want %s", loaded.Logging.Level, cfg.Logging.Level)
	}
}

func TestExpandPath(t *testing.T) {
	if got := expandPath("/abs/path"); got != "/abs/path" {
		t.Errorf("expandPath should leave absolute paths untouched, got %s", got)
	}
}
