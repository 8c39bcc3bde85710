// Package internal provides the App struct that wires all components of the
// recall review dashboard together and initializes the CLI layer.
package internal

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/text/language"

	"github.com/valter-silva-au/recall-review/internal/api"
	"github.com/valter-silva-au/recall-review/internal/cli"
	"github.com/valter-silva-au/recall-review/internal/core"
	"github.com/valter-silva-au/recall-review/internal/datasync"
	"github.com/valter-silva-au/recall-review/internal/integration"
	"github.com/valter-silva-au/recall-review/internal/observability"
	"github.com/valter-silva-au/recall-review/internal/query"
	"github.com/valter-silva-au/recall-review/pkg/models"
)

// HomeEnv names the environment variable that overrides the data directory.
const HomeEnv = "RRD_HOME"

// mockLatency is how long the built-in sample API takes to answer, so the
// dashboard's loading states are visible.
const mockLatency = 150 * time.Millisecond

// Options are the command-line overrides applied on top of the config file.
type Options struct {
	Mock   bool
	APIURL string
	Debug  bool
}

// App holds all service dependencies of the dashboard.
type App struct {
	BasePath string

	// Configuration
	ConfigMgr core.ConfigurationManager
	Config    *models.GlobalConfig

	// Data layer
	Client api.Client
	Store  *core.Store
	Cache  *query.Cache
	Syncer *datasync.Syncer

	// Integration services
	Player integration.Player

	// Observability
	EventLog    observability.EventLog
	AlertEngine observability.AlertEngine
	MetricsCalc observability.MetricsCalculator
	Notifier    observability.Notifier
}

// NewApp creates and wires all components. basePath is the directory holding
// .rrdconfig, the event log and the dashboard log file.
func NewApp(basePath string, opts Options) (*App, error) {
	app := &App{BasePath: basePath}

	level := slog.LevelWarn
	if opts.Debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	// --- Configuration ---
	app.ConfigMgr = core.NewConfigurationManager(basePath)
	cfg, err := app.ConfigMgr.LoadGlobalConfig()
	if err != nil {
		return nil, err
	}
	if opts.Mock {
		cfg.API.Mock = true
	}
	if opts.APIURL != "" {
		cfg.API.BaseURL = opts.APIURL
	}
	if err := app.ConfigMgr.ValidateConfig(cfg); err != nil {
		return nil, err
	}
	app.Config = cfg

	// --- Data layer ---
	if cfg.API.Mock {
		app.Client = api.NewMockClient(mockLatency)
		slog.Debug("using built-in sample data")
	} else {
		app.Client = api.NewHTTPClient(api.Options{
			BaseURL:           cfg.API.BaseURL,
			Timeout:           cfg.API.Timeout,
			ValidateResponses: cfg.API.ValidateResponses,
		})
		slog.Debug("using evaluation service", "base_url", cfg.API.BaseURL)
	}

	// Both were validated above.
	filter, _ := core.ParseGradeFilter(cfg.Display.DefaultGradeFilter)
	sortBy, _ := core.ParseSortBy(cfg.Display.DefaultSort)
	app.Store = core.NewStore(core.StoreOptions{
		Locale:      language.Make(cfg.Display.Locale),
		FilterGrade: filter,
		SortBy:      sortBy,
	})
	app.Cache = query.New()

	// --- Observability ---
	if cfg.Observability.Enabled {
		if err := os.MkdirAll(basePath, 0o750); err == nil {
			app.EventLog, err = observability.NewJSONLEventLog(filepath.Join(basePath, "events.jsonl"))
			if err != nil {
				// Non-fatal: run without the event log.
				slog.Warn("event log disabled", "error", err)
				app.EventLog = nil
			}
		}
	}

	app.Syncer = datasync.New(datasync.Options{
		Client:    app.Client,
		Store:     app.Store,
		Cache:     app.Cache,
		EventLog:  app.EventLog,
		Intervals: datasync.IntervalsFromConfig(cfg.Polling),
		ExportDir: cfg.Export.Dir,
	})

	if app.EventLog != nil {
		store := app.Store
		app.AlertEngine = observability.NewAlertEngine(app.EventLog, func() []models.Task {
			return store.Snapshot().Tasks
		}, observability.AlertThresholdsFromConfig(cfg.Notifications.Alerts))
		app.MetricsCalc = observability.NewMetricsCalculator(app.EventLog)
	}
	if cfg.Notifications.Enabled && cfg.Notifications.Slack.WebhookURL != "" {
		app.Notifier = observability.NewSlackNotifier(cfg.Notifications.Slack.WebhookURL)
	}

	// --- Integration services ---
	app.Player = integration.NewPlayer(cfg.Player, nil)

	// --- Wire CLI package-level variables ---
	cli.Config = cfg
	cli.Syncer = app.Syncer
	cli.Player = app.Player
	cli.LogPath = filepath.Join(basePath, "rrd.log")
	cli.AlertEngine = app.AlertEngine
	cli.MetricsCalc = app.MetricsCalc
	cli.Notifier = app.Notifier

	return app, nil
}

// Close stops the audio player and releases the event log file handle. It is
// safe to call on an App whose EventLog is nil.
func (a *App) Close() error {
	if a.Player != nil {
		_ = a.Player.Stop()
	}
	if a.EventLog != nil {
		if err := a.EventLog.Close(); err != nil {
			return fmt.Errorf("closing event log: %w", err)
		}
	}
	return nil
}

// ResolveBasePath determines the data directory. RRD_HOME wins; otherwise the
// nearest directory at or above the working directory that holds a
// .rrdconfig file; otherwise ~/.rrd.
func ResolveBasePath() string {
	if home := os.Getenv(HomeEnv); home != "" {
		return home
	}
	if dir, err := os.Getwd(); err == nil {
		for {
			if hasConfig(dir) {
				return dir
			}
			parent := filepath.Dir(dir)
			if parent == dir {
				break
			}
			dir = parent
		}
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".rrd")
	}
	return "."
}

func hasConfig(dir string) bool {
	for _, name := range []string{core.ConfigFileName, core.ConfigFileName + ".yaml", core.ConfigFileName + ".yml"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			return true
		}
	}
	return false
}
