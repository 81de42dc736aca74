// ABOUTME: Configuration management for skim: data paths and sync tuning knobs
// ABOUTME: Reads JSON from the XDG config directory with sensible zero-config defaults

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/harper/skim/internal/storage"
)

// Config stores skim configuration. Every field is optional; the zero
// config is fully usable.
type Config struct {
	// DataDir is the root directory for data storage; skim.db lives here.
	// Supports ~ expansion. Defaults to ~/.local/share/skim.
	DataDir string `json:"data_dir,omitempty"`

	// FetchTimeoutSeconds bounds one feed fetch. Defaults to 30.
	FetchTimeoutSeconds int `json:"fetch_timeout_seconds,omitempty"`

	// SyncWorkers bounds concurrent feed syncs during a bulk pass. Defaults to 5.
	SyncWorkers int `json:"sync_workers,omitempty"`

	// EventBuffer sizes event subscription channels. Defaults to 64.
	EventBuffer int `json:"event_buffer,omitempty"`
}

const dbFilename = "skim.db"

// GetDataDir returns the configured data directory with ~ expanded,
// defaulting to the standard XDG data directory.
func (c *Config) GetDataDir() string {
	if c.DataDir == "" {
		return defaultDataDir()
	}
	return ExpandPath(c.DataDir)
}

// GetFetchTimeout returns the per-fetch timeout as a duration.
func (c *Config) GetFetchTimeout() time.Duration {
	if c.FetchTimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.FetchTimeoutSeconds) * time.Second
}

// GetSyncWorkers returns the bulk-sync concurrency bound.
func (c *Config) GetSyncWorkers() int {
	if c.SyncWorkers <= 0 {
		return 5
	}
	return c.SyncWorkers
}

// GetEventBuffer returns the subscription channel buffer size.
func (c *Config) GetEventBuffer() int {
	if c.EventBuffer <= 0 {
		return 64
	}
	return c.EventBuffer
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) string {
	if path == "" {
		return ""
	}
	if path == "~" {
		home, _ := os.UserHomeDir()
		return home
	}
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}

// OpenStorage opens the SQLite store under the configured data directory.
func (c *Config) OpenStorage() (storage.Store, error) {
	dataDir := c.GetDataDir()
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return storage.NewSQLiteStore(filepath.Join(dataDir, dbFilename))
}

// GetConfigPath returns the config file path.
func GetConfigPath() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, _ := os.UserHomeDir()
		configDir = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(configDir, "skim", "config.json")
}

// Load reads config from disk. A missing file yields the default config.
func Load() (*Config, error) {
	path := GetConfigPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}

// Save writes config to disk, creating the config directory if needed.
func (c *Config) Save() error {
	path := GetConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// defaultDataDir returns the standard XDG data directory for skim.
func defaultDataDir() string {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, _ := os.UserHomeDir()
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, "skim")
}
