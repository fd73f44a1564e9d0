package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ashita-ai/kanshi/internal/client"
	"github.com/ashita-ai/kanshi/internal/config"
	"github.com/ashita-ai/kanshi/internal/prefs"
	"github.com/ashita-ai/kanshi/internal/render"
	"github.com/ashita-ai/kanshi/internal/telemetry"
)

// app carries what every subcommand needs once the root has initialised.
type app struct {
	cfg      config.Config
	logger   *slog.Logger
	out      io.Writer
	shutdown telemetry.Shutdown

	// Persistent flags.
	baseURL string
	apiKey  string
	jsonOut bool
	theme   string
}

func newApp() *app {
	return &app{logger: slog.Default()}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "kanshi",
		Short:         "Compare executor runs and follow their output",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.baseURL, "base-url", "", "run service URL (default $KANSHI_BASE_URL)")
	pf.StringVar(&a.apiKey, "api-key", "", "run service API key (default $KANSHI_API_KEY)")
	pf.BoolVar(&a.jsonOut, "json", false, "print JSON instead of styled text")
	pf.StringVar(&a.theme, "theme", "", "colour theme: auto, light or dark (default from prefs)")

	root.AddCommand(
		newCompareCmd(a),
		newLogsCmd(a),
		newCancelCmd(a),
		newPatchCmd(a),
		newPrefsCmd(a),
		newMCPCmd(a),
		newDevServerCmd(a),
	)
	return root
}

func (a *app) init(cmd *cobra.Command) error {
	// Load .env file if present (non-fatal; most environments won't have one).
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if a.baseURL != "" {
		cfg.BaseURL = a.baseURL
	}
	if a.apiKey != "" {
		cfg.APIKey = a.apiKey
	}
	a.cfg = cfg
	a.out = cmd.OutOrStdout()

	// stdout carries command output and the MCP stdio transport, so logs go
	// to stderr.
	a.logger = slog.New(slog.NewJSONHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(a.logger)

	shutdown, err := telemetry.Init(cmd.Context(), telemetry.Config{
		Endpoint:    cfg.OTELEndpoint,
		ServiceName: cfg.ServiceName,
		Version:     version,
		Insecure:    cfg.OTELInsecure,
	})
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	a.shutdown = shutdown
	return nil
}

func (a *app) close() {
	if a.shutdown == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.shutdown(ctx); err != nil {
		a.logger.Warn("telemetry shutdown", "error", err)
	}
}

func (a *app) client() (*client.Client, error) {
	return client.New(client.Config{
		BaseURL: a.cfg.BaseURL,
		APIKey:  a.cfg.APIKey,
		Timeout: a.cfg.HTTPTimeout,
		Version: version,
	})
}

// openPrefs opens the preferences database. Callers that can run without
// preferences use loadPrefs or openPrefsOptional instead.
func (a *app) openPrefs(ctx context.Context) (*prefs.Store, error) {
	return prefs.Open(ctx, a.cfg.PrefsPath, a.logger)
}

// openPrefsOptional returns nil, after logging, when the database cannot be
// opened.
func (a *app) openPrefsOptional(ctx context.Context) *prefs.Store {
	store, err := a.openPrefs(ctx)
	if err != nil {
		a.logger.Warn("preferences unavailable", "path", a.cfg.PrefsPath, "error", err)
		return nil
	}
	return store
}

// loadPrefs returns the saved preferences, or the defaults when they cannot
// be read.
func (a *app) loadPrefs(ctx context.Context) prefs.Preferences {
	store := a.openPrefsOptional(ctx)
	if store == nil {
		return prefs.Defaults()
	}
	defer func() { _ = store.Close() }()

	p, err := store.Load(ctx)
	if err != nil {
		a.logger.Warn("preferences unreadable", "error", err)
		return prefs.Defaults()
	}
	return p
}

// printer picks the --theme flag over the saved theme.
func (a *app) printer(p prefs.Preferences) *render.Printer {
	theme := a.theme
	if theme == "" {
		theme = p.Theme
	}
	return render.New(a.out, theme)
}

func (a *app) writeJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}

// pollInterval resolves the log poll interval: the saved preference when one
// was set, otherwise the configured value.
func (a *app) pollInterval(ctx context.Context, store *prefs.Store) time.Duration {
	if store == nil {
		return a.cfg.PollInterval
	}
	if _, err := store.Get(ctx, prefs.KeyPollInterval); err != nil {
		if !errors.Is(err, prefs.ErrNotFound) {
			a.logger.Warn("poll interval preference unreadable", "error", err)
		}
		return a.cfg.PollInterval
	}
	p, err := store.Load(ctx)
	if err != nil {
		return a.cfg.PollInterval
	}
	return p.PollInterval
}
