// Package config loads Wrangler configuration from an optional YAML file,
// overridden by environment variables, following the same two-layer pattern
// as the gateway config loader this package is descended from.
package config

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

const defaultConfigPath = "/etc/turtle-wrangler/config.yaml"

// Config holds all configuration for the Wrangler server.
type Config struct {
	// DBPath is the filesystem path to the SQLite database file. Created if
	// missing. This is the only setting spec.md requires (via the DB env
	// var); everything else below is an ambient addition.
	DBPath string `yaml:"db_path"`

	// TurtleAddr is the address the turtle WebSocket acceptor binds to.
	TurtleAddr string `yaml:"turtle_addr"`

	// ClientAddr is the address the client TCP acceptor binds to.
	ClientAddr string `yaml:"client_addr"`

	// StatusAddr is the address the ambient HTTP status endpoint binds to.
	// Empty disables the status endpoint entirely.
	StatusAddr string `yaml:"status_addr"`

	// LogLevel controls the slog handler's minimum level.
	LogLevel string `yaml:"log_level"`
}

// DefaultConfig returns a Config populated with spec.md's mandated defaults.
func DefaultConfig() *Config {
	return &Config{
		TurtleAddr: "0.0.0.0:8080",
		ClientAddr: "0.0.0.0:8081",
		LogLevel:   "info",
	}
}

// Load loads configuration from an optional YAML file and overrides with
// environment variables. Environment variables take precedence. DBPath is
// mandatory per spec.md §6.1 and its absence is a fatal configuration error.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	configPath := defaultConfigPath
	if envPath := os.Getenv("WRANGLER_CONFIG_PATH"); envPath != "" {
		configPath = envPath
	}

	if err := loadConfigFile(cfg, configPath); err != nil {
		slog.Warn("could not load config file, using defaults and env vars",
			"path", configPath,
			"error", err,
		)
	} else {
		slog.Info("loaded config file", "path", configPath)
	}

	applyEnvOverrides(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func loadConfigFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DB"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("WRANGLER_TURTLE_ADDR"); v != "" {
		cfg.TurtleAddr = v
	}
	if v := os.Getenv("WRANGLER_CLIENT_ADDR"); v != "" {
		cfg.ClientAddr = v
	}
	if v := os.Getenv("WRANGLER_STATUS_ADDR"); v != "" {
		cfg.StatusAddr = v
	}
	if v := os.Getenv("WRANGLER_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
}

func validate(cfg *Config) error {
	if cfg.DBPath == "" {
		return fmt.Errorf("database path is required (set DB)")
	}
	if cfg.TurtleAddr == "" {
		return fmt.Errorf("turtle listen address must not be empty")
	}
	if cfg.ClientAddr == "" {
		return fmt.Errorf("client listen address must not be empty")
	}
	return nil
}
