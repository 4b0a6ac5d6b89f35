// Package config handles loading and saving solvetrack configuration.
//
// Configuration follows the XDG Base Directory specification:
//   - Config:  ~/.config/stk/config.yaml
//   - Data:    ~/.local/share/stk/ (progress ledger, source files)
//   - State:   ~/.local/state/stk/ (prefs: pinned lists, recents)
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LimitsConfig bounds the computation pipeline.
type LimitsConfig struct {
	FetchConcurrency   int `yaml:"fetch_concurrency,omitempty"`   // Source fetches per scope (default 3)
	ComputeConcurrency int `yaml:"compute_concurrency,omitempty"` // Scope computations in flight (default 2)
}

// Config is the top-level configuration for stk.
type Config struct {
	DatasetPath string       `yaml:"dataset_path,omitempty"` // Dataset definition file
	SourceRoot  string       `yaml:"source_root,omitempty"`  // Directory holding source files
	DataDir     string       `yaml:"data_dir,omitempty"`     // Overrides the XDG data dir
	Limits      LimitsConfig `yaml:"limits,omitempty"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Limits: LimitsConfig{
			FetchConcurrency:   3,
			ComputeConcurrency: 2,
		},
	}
}

// ConfigDir returns the XDG config directory for stk.
func ConfigDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "stk")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "stk")
}

// DataDir returns the XDG data directory for stk.
func DataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "stk")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".local", "share", "stk")
}

// StateDir returns the XDG state directory for stk.
func StateDir() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, "stk")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".local", "state", "stk")
}

// ConfigPath returns the full path to config.yaml.
func ConfigPath() string {
	dir := ConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "config.yaml")
}

// Load reads the config file from the XDG config directory.
// Returns DefaultConfig if the file doesn't exist.
func Load() (Config, error) {
	path := ConfigPath()
	if path == "" {
		return DefaultConfig(), nil
	}
	return LoadFrom(path)
}

// LoadFrom reads config from a specific path.
// Returns DefaultConfig if the file doesn't exist.
func LoadFrom(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}

	cfg.DatasetPath = expandHome(cfg.DatasetPath)
	cfg.SourceRoot = expandHome(cfg.SourceRoot)
	cfg.DataDir = expandHome(cfg.DataDir)

	if cfg.Limits.FetchConcurrency <= 0 {
		cfg.Limits.FetchConcurrency = 3
	}
	if cfg.Limits.ComputeConcurrency <= 0 {
		cfg.Limits.ComputeConcurrency = 2
	}

	return cfg, nil
}

// Save writes the config to the XDG config directory.
func Save(cfg Config) error {
	path := ConfigPath()
	if path == "" {
		return fmt.Errorf("cannot determine config directory")
	}
	return SaveTo(cfg, path)
}

// SaveTo writes the config to a specific path.
func SaveTo(cfg Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

// ResolvedDataDir returns the configured data dir, falling back to the XDG
// default.
func (c Config) ResolvedDataDir() string {
	if c.DataDir != "" {
		return c.DataDir
	}
	return DataDir()
}

// LedgerPath returns the path of the SQLite ledger database.
func (c Config) LedgerPath() string {
	return filepath.Join(c.ResolvedDataDir(), "solvetrack.db")
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
