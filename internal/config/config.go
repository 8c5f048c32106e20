// Package config loads pagelens configuration from .pagelens/config.yaml
// with environment-variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"pagelens/internal/gather"

	"gopkg.in/yaml.v3"
)

// Config holds all pagelens configuration.
type Config struct {
	Gather  gather.Config `yaml:"gather"`
	Store   StoreConfig   `yaml:"store"`
	Logging LoggingConfig `yaml:"logging"`
}

// StoreConfig configures the run archive.
type StoreConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// LoggingConfig configures categorized file logging. Mirrored by the logging
// package, which re-reads the config file to avoid a circular import.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Categories map[string]bool `yaml:"categories"`
	Level      string          `yaml:"level"`
}

// DefaultConfig returns the default configuration rooted at workspace.
func DefaultConfig(workspace string) Config {
	return Config{
		Gather: gather.DefaultConfig(),
		Store: StoreConfig{
			DatabasePath: filepath.Join(workspace, ".pagelens", "runs.db"),
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// ConfigFile returns the path of the config file under workspace.
func ConfigFile(workspace string) string {
	return filepath.Join(workspace, ".pagelens", "config.yaml")
}

// Load reads configuration from workspace, applying defaults for anything
// unset and environment overrides last. A missing config file is not an
// error.
func Load(workspace string) (Config, error) {
	cfg := DefaultConfig(workspace)

	data, err := os.ReadFile(ConfigFile(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Store.DatabasePath == "" {
		cfg.Store.DatabasePath = DefaultConfig(workspace).Store.DatabasePath
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes the configuration to workspace.
func Save(workspace string, cfg Config) error {
	path := ConfigFile(workspace)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// applyEnvOverrides applies PAGELENS_* environment variables on top of the
// loaded configuration.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("PAGELENS_CHROME_BIN"); v != "" {
		c.Gather.ChromeBin = v
	}
	if v := os.Getenv("PAGELENS_DEBUGGER_URL"); v != "" {
		c.Gather.DebuggerURL = v
	}
	if v := os.Getenv("PAGELENS_DB_PATH"); v != "" {
		c.Store.DatabasePath = v
	}
	switch os.Getenv("PAGELENS_HEADLESS") {
	case "1", "true", "yes":
		c.Gather.Headless = true
	case "0", "false", "no":
		c.Gather.Headless = false
	}
}
