// Package config loads server configuration from YAML with environment
// variable overrides. All fields have working defaults, so the server runs
// with no config file at all.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the full server configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Scanner  ScannerConfig  `yaml:"scanner"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Port                int `yaml:"port"`
	ReadTimeoutSeconds  int `yaml:"read_timeout_seconds"`
	WriteTimeoutSeconds int `yaml:"write_timeout_seconds"`
	IdleTimeoutSeconds  int `yaml:"idle_timeout_seconds"`
}

// DatabaseConfig holds the SQLite path. Use ":memory:" for an in-memory
// database.
type DatabaseConfig struct {
	Path string `yaml:"path"`
	Seed bool   `yaml:"seed"`
}

// ScannerConfig holds the expiry scanner settings. WindowHours widens the
// daily [00:00, 00:00+N) processing window; raising it to 24 lets the
// scanner act at any time of day, which is handy in development.
type ScannerConfig struct {
	Enabled         bool `yaml:"enabled"`
	IntervalSeconds int  `yaml:"interval_seconds"`
	WindowHours     int  `yaml:"window_hours"`
}

// LoggingConfig holds log settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:                8080,
			ReadTimeoutSeconds:  15,
			WriteTimeoutSeconds: 15,
			IdleTimeoutSeconds:  60,
		},
		Database: DatabaseConfig{
			Path: "carins.db",
			Seed: true,
		},
		Scanner: ScannerConfig{
			Enabled:         true,
			IntervalSeconds: 300,
			WindowHours:     1,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads the YAML file at path, applies environment overrides (CARINS_*),
// and validates the result. The file is decoded on top of Default(), so
// absent fields keep their defaults while explicit values, including false
// and zero, are kept as written.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// applyEnvOverrides applies CARINS_SECTION_FIELD environment variables on
// top of the file values.
func applyEnvOverrides(cfg *Config) {
	if val := os.Getenv("CARINS_SERVER_PORT"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Server.Port = i
		}
	}
	if val := os.Getenv("CARINS_DATABASE_PATH"); val != "" {
		cfg.Database.Path = val
	}
	if val := os.Getenv("CARINS_SCANNER_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Scanner.Enabled = b
		}
	}
	if val := os.Getenv("CARINS_SCANNER_INTERVAL_SECONDS"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Scanner.IntervalSeconds = i
		}
	}
	if val := os.Getenv("CARINS_SCANNER_WINDOW_HOURS"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Scanner.WindowHours = i
		}
	}
	if val := os.Getenv("CARINS_LOGGING_LEVEL"); val != "" {
		cfg.Logging.Level = val
	}
}

// Validate checks the configuration for values the server cannot run with.
func Validate(cfg *Config) error {
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", cfg.Server.Port)
	}
	if cfg.Database.Path == "" {
		return fmt.Errorf("database.path must not be empty")
	}
	if cfg.Scanner.IntervalSeconds <= 0 {
		return fmt.Errorf("scanner.interval_seconds must be positive, got %d", cfg.Scanner.IntervalSeconds)
	}
	if cfg.Scanner.WindowHours < 1 || cfg.Scanner.WindowHours > 24 {
		return fmt.Errorf("scanner.window_hours must be between 1 and 24, got %d", cfg.Scanner.WindowHours)
	}
	return nil
}
