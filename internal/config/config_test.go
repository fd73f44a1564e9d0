package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvIntValid(t *testing.T) {
	t.Setenv("TEST_INT", "42")
	v, err := envInt("TEST_INT", 0)
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestEnvIntFallback(t *testing.T) {
	// TEST_INT_MISSING is not set.
	v, err := envInt("TEST_INT_MISSING", 99)
	require.NoError(t, err)
	assert.Equal(t, 99, v)
}

func TestEnvIntInvalid(t *testing.T) {
	t.Setenv("TEST_INT_BAD", "abc")
	_, err := envInt("TEST_INT_BAD", 0)
	require.Error(t, err)
	assert.Equal(t, `TEST_INT_BAD="abc" is not a valid integer`, err.Error())
}

func TestEnvBoolInvalid(t *testing.T) {
	t.Setenv("TEST_BOOL_BAD", "maybe")
	_, err := envBool("TEST_BOOL_BAD", false)
	require.Error(t, err)
	assert.Equal(t, `TEST_BOOL_BAD="maybe" is not a valid boolean`, err.Error())
}

func TestEnvDurationInvalid(t *testing.T) {
	t.Setenv("TEST_DUR_BAD", "five-seconds")
	_, err := envDuration("TEST_DUR_BAD", 0)
	require.Error(t, err)
	assert.Equal(t, `TEST_DUR_BAD="five-seconds" is not a valid duration`, err.Error())
}

func TestLoadSucceedsWithDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8090", cfg.BaseURL)
	assert.Equal(t, 500*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, 30*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, 8090, cfg.DevPort)
	assert.Equal(t, "kanshi", cfg.ServiceName)
	assert.NotEmpty(t, cfg.PrefsPath)
	assert.Equal(t, slog.LevelInfo, cfg.SlogLevel())
}

func TestLoadReadsOverrides(t *testing.T) {
	t.Setenv("KANSHI_BASE_URL", "https://runs.example.com")
	t.Setenv("KANSHI_POLL_INTERVAL", "2s")
	t.Setenv("KANSHI_PREFS_PATH", "/tmp/prefs.db")
	t.Setenv("OTEL_EXPORTER_OTLP_INSECURE", "true")
	t.Setenv("KANSHI_LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "https://runs.example.com", cfg.BaseURL)
	assert.Equal(t, 2*time.Second, cfg.PollInterval)
	assert.Equal(t, "/tmp/prefs.db", cfg.PrefsPath)
	assert.True(t, cfg.OTELInsecure)
	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())
}

func TestLoadFailsOnMultipleInvalid(t *testing.T) {
	t.Setenv("KANSHI_DEV_PORT", "abc")
	t.Setenv("KANSHI_POLL_INTERVAL", "soon")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `KANSHI_DEV_PORT="abc"`)
	assert.Contains(t, err.Error(), `KANSHI_POLL_INTERVAL="soon"`)
}

func TestValidate(t *testing.T) {
	base, err := Load()
	require.NoError(t, err)

	cases := map[string]func(*Config){
		"relative base url": func(c *Config) { c.BaseURL = "localhost:8090" },
		"zero poll":         func(c *Config) { c.PollInterval = 0 },
		"negative timeout":  func(c *Config) { c.HTTPTimeout = -time.Second },
		"port out of range": func(c *Config) { c.DevPort = 70000 },
		"unknown log level": func(c *Config) { c.LogLevel = "chatty" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := base
			mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	lvl, err := ParseLogLevel("WARN")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, lvl)

	_, err = ParseLogLevel("verbose")
	assert.Error(t, err)
}
