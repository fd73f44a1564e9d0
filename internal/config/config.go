// Package config loads and validates configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the CLI, the MCP server, and the
// development backend.
type Config struct {
	// Run service settings.
	BaseURL     string
	APIKey      string
	HTTPTimeout time.Duration

	// Log streaming.
	PollInterval time.Duration

	// Local preferences database.
	PrefsPath string

	// Development backend.
	DevPort    int
	DevFixture string // YAML file of runs to seed; empty seeds the built-in demo.

	// OTEL settings.
	OTELEndpoint string
	OTELInsecure bool
	ServiceName  string

	LogLevel string
}

// Load reads configuration from environment variables with defaults.
// Every malformed variable is reported, not just the first.
func Load() (Config, error) {
	var errs []error
	str := envStr
	integer := func(key string, def int) int {
		v, err := envInt(key, def)
		errs = append(errs, err)
		return v
	}
	boolean := func(key string, def bool) bool {
		v, err := envBool(key, def)
		errs = append(errs, err)
		return v
	}
	duration := func(key string, def time.Duration) time.Duration {
		v, err := envDuration(key, def)
		errs = append(errs, err)
		return v
	}

	cfg := Config{
		BaseURL:      str("KANSHI_BASE_URL", "http://localhost:8090"),
		APIKey:       str("KANSHI_API_KEY", ""),
		HTTPTimeout:  duration("KANSHI_HTTP_TIMEOUT", 30*time.Second),
		PollInterval: duration("KANSHI_POLL_INTERVAL", 500*time.Millisecond),
		PrefsPath:    str("KANSHI_PREFS_PATH", defaultPrefsPath()),
		DevPort:      integer("KANSHI_DEV_PORT", 8090),
		DevFixture:   str("KANSHI_DEV_FIXTURE", ""),
		OTELEndpoint: str("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTELInsecure: boolean("OTEL_EXPORTER_OTLP_INSECURE", false),
		ServiceName:  str("OTEL_SERVICE_NAME", "kanshi"),
		LogLevel:     str("KANSHI_LOG_LEVEL", "info"),
	}

	if err := errors.Join(errs...); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that the loaded values are usable.
func (c Config) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if c.BaseURL == "" || err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("config: KANSHI_BASE_URL must be an absolute URL, got %q", c.BaseURL)
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("config: KANSHI_HTTP_TIMEOUT must be positive")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("config: KANSHI_POLL_INTERVAL must be positive")
	}
	if c.DevPort < 1 || c.DevPort > 65535 {
		return fmt.Errorf("config: KANSHI_DEV_PORT must be between 1 and 65535, got %d", c.DevPort)
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return fmt.Errorf("config: KANSHI_LOG_LEVEL: %w", err)
	}
	return nil
}

// SlogLevel returns the configured log level. Validate has already rejected
// unknown names, so this falls back to info only for unvalidated configs.
func (c Config) SlogLevel() slog.Level {
	lvl, err := ParseLogLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// ParseLogLevel maps debug, info, warn, and error to slog levels.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

func defaultPrefsPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(".kanshi", "prefs.db")
	}
	return filepath.Join(dir, "kanshi", "prefs.db")
}

func envStr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal, fmt.Errorf("%s=%q is not a valid integer", key, v)
	}
	return n, nil
}

func envBool(key string, defaultVal bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal, fmt.Errorf("%s=%q is not a valid boolean", key, v)
	}
	return b, nil
}

func envDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal, fmt.Errorf("%s=%q is not a valid duration", key, v)
	}
	return d, nil
}
