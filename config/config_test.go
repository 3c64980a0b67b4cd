package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "carins.db", cfg.Database.Path)
	assert.True(t, cfg.Database.Seed)
	assert.True(t, cfg.Scanner.Enabled)
	assert.Equal(t, 300, cfg.Scanner.IntervalSeconds)
	assert.Equal(t, 1, cfg.Scanner.WindowHours)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	require.NoError(t, Validate(cfg))
}

func TestLoad(t *testing.T) {
	path := writeConfigFile(t, `
server:
  port: 9090
database:
  path: /tmp/test.db
scanner:
  interval_seconds: 60
  window_hours: 24
logging:
  level: debug
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "/tmp/test.db", cfg.Database.Path)
	assert.Equal(t, 60, cfg.Scanner.IntervalSeconds)
	assert.Equal(t, 24, cfg.Scanner.WindowHours)
	assert.Equal(t, "debug", cfg.Logging.Level)

	// Unset fields fall back to defaults.
	assert.Equal(t, 15, cfg.Server.ReadTimeoutSeconds)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoad_EnvOverridesWin(t *testing.T) {
	path := writeConfigFile(t, `
server:
  port: 9090
scanner:
  interval_seconds: 60
`)

	t.Setenv("CARINS_SERVER_PORT", "7070")
	t.Setenv("CARINS_SCANNER_INTERVAL_SECONDS", "120")
	t.Setenv("CARINS_SCANNER_WINDOW_HOURS", "6")
	t.Setenv("CARINS_LOGGING_LEVEL", "warn")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, 120, cfg.Scanner.IntervalSeconds)
	assert.Equal(t, 6, cfg.Scanner.WindowHours)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoad_ExplicitScannerDisableSurvives(t *testing.T) {
	// enabled: false with no interval must stay disabled; absent fields still
	// pick up their defaults.
	path := writeConfigFile(t, `
scanner:
  enabled: false
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.False(t, cfg.Scanner.Enabled)
	assert.Equal(t, 300, cfg.Scanner.IntervalSeconds)
	assert.Equal(t, 1, cfg.Scanner.WindowHours)
}

func TestLoad_ExplicitSeedDisableSurvives(t *testing.T) {
	path := writeConfigFile(t, `
database:
  path: /tmp/test.db
  seed: false
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.False(t, cfg.Database.Seed)
	assert.Equal(t, "/tmp/test.db", cfg.Database.Path)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := writeConfigFile(t, "server: [unclosed")
	_, err := Load(path)
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port too low", func(c *Config) { c.Server.Port = 0 }},
		{"port too high", func(c *Config) { c.Server.Port = 70000 }},
		{"empty db path", func(c *Config) { c.Database.Path = "" }},
		{"negative interval", func(c *Config) { c.Scanner.IntervalSeconds = -1 }},
		{"window hours zero", func(c *Config) { c.Scanner.WindowHours = 0 }},
		{"window hours too large", func(c *Config) { c.Scanner.WindowHours = 25 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, Validate(cfg))
		})
	}
}
