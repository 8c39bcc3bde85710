// Package core contains the business logic for the recall review dashboard,
// including the task/report store, annotation matching, priority ranking,
// playback state, and configuration.
package core

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
	"golang.org/x/text/language"

	"github.com/valter-silva-au/recall-review/pkg/models"
)

// ConfigFileName is the name (without extension) of the global config file.
const ConfigFileName = ".rrdconfig"

// EnvPrefix is the prefix for environment overrides, e.g. RRD_API_BASE_URL.
const EnvPrefix = "RRD"

// ConfigurationManager defines the interface for loading and validating
// configuration from the global .rrdconfig file and the environment.
type ConfigurationManager interface {
	LoadGlobalConfig() (*models.GlobalConfig, error)
	ValidateConfig(cfg *models.GlobalConfig) error
}

// viperConfigManager implements ConfigurationManager using Viper for
// reading YAML configuration files.
type viperConfigManager struct {
	// basePath is the root directory where .rrdconfig resides.
	basePath string
}

// NewConfigurationManager creates a new ConfigurationManager that reads
// configuration files relative to basePath.
func NewConfigurationManager(basePath string) ConfigurationManager {
	return &viperConfigManager{basePath: basePath}
}

// DefaultGlobalConfig returns a GlobalConfig populated with the defaults the
// evaluation service is tuned for.
func DefaultGlobalConfig() *models.GlobalConfig {
	return &models.GlobalConfig{
		API: models.APIConfig{
			BaseURL: "http://localhost:8000",
			Timeout: 30 * time.Second,
		},
		Polling: models.PollingConfig{
			TaskListInterval:   10 * time.Second,
			TaskStatusInterval: 5 * time.Second,
			HealthInterval:     30 * time.Second,
			HealthRetries:      3,
			ReportStaleTime:    60 * time.Second,
		},
		Display: models.DisplayConfig{
			Locale:             "zh-CN",
			DefaultSort:        string(SortByPriority),
			DefaultGradeFilter: string(FilterAll),
		},
		Export: models.ExportConfig{
			Dir: ".",
		},
		Notifications: models.NotificationConfig{
			Alerts: models.AlertConfig{
				PendingMinutes:   30,
				UnapprovedCHours: 24,
			},
		},
		Observability: models.ObservabilityConfig{
			Enabled: true,
		},
	}
}

func setDefaults(v *viper.Viper, cfg *models.GlobalConfig) {
	v.SetDefault("api.base_url", cfg.API.BaseURL)
	v.SetDefault("api.mock", cfg.API.Mock)
	v.SetDefault("api.timeout", cfg.API.Timeout)
	v.SetDefault("api.validate_responses", cfg.API.ValidateResponses)
	v.SetDefault("polling.task_list_interval", cfg.Polling.TaskListInterval)
	v.SetDefault("polling.task_status_interval", cfg.Polling.TaskStatusInterval)
	v.SetDefault("polling.health_interval", cfg.Polling.HealthInterval)
	v.SetDefault("polling.health_retries", cfg.Polling.HealthRetries)
	v.SetDefault("polling.report_stale_time", cfg.Polling.ReportStaleTime)
	v.SetDefault("display.locale", cfg.Display.Locale)
	v.SetDefault("display.default_sort", cfg.Display.DefaultSort)
	v.SetDefault("display.default_grade_filter", cfg.Display.DefaultGradeFilter)
	v.SetDefault("export.dir", cfg.Export.Dir)
	v.SetDefault("player.command", cfg.Player.Command)
	v.SetDefault("player.args", cfg.Player.Args)
	v.SetDefault("notifications.enabled", cfg.Notifications.Enabled)
	v.SetDefault("notifications.slack.webhook_url", cfg.Notifications.Slack.WebhookURL)
	v.SetDefault("notifications.alerts.pending_minutes", cfg.Notifications.Alerts.PendingMinutes)
	v.SetDefault("notifications.alerts.unapproved_c_hours", cfg.Notifications.Alerts.UnapprovedCHours)
	v.SetDefault("observability.enabled", cfg.Observability.Enabled)
}

// LoadGlobalConfig reads the .rrdconfig file from the base path using Viper.
// If the file does not exist, defaults are used. Environment variables with
// the RRD_ prefix override both.
func (cm *viperConfigManager) LoadGlobalConfig() (*models.GlobalConfig, error) {
	v := viper.New()
	v.SetConfigName(ConfigFileName)
	v.SetConfigType("yaml")
	v.AddConfigPath(cm.basePath)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v, DefaultGlobalConfig())

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading %s: %w", ConfigFileName, err)
		}
	}

	cfg := &models.GlobalConfig{}
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(cfg, hook); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", ConfigFileName, err)
	}
	return cfg, nil
}

// ValidateConfig checks the configuration for invalid values and returns a
// clear error message identifying every problem.
func (cm *viperConfigManager) ValidateConfig(cfg *models.GlobalConfig) error {
	if cfg == nil {
		return fmt.Errorf("configuration is nil")
	}

	var errs []string

	if !cfg.API.Mock {
		u, err := url.Parse(cfg.API.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Sprintf("api.base_url %q must be an absolute http(s) URL", cfg.API.BaseURL))
		}
	}
	if cfg.API.Timeout < 0 {
		errs = append(errs, fmt.Sprintf("api.timeout must be non-negative, got %s", cfg.API.Timeout))
	}

	intervals := []struct {
		key string
		d   time.Duration
	}{
		{"polling.task_list_interval", cfg.Polling.TaskListInterval},
		{"polling.task_status_interval", cfg.Polling.TaskStatusInterval},
		{"polling.health_interval", cfg.Polling.HealthInterval},
		{"polling.report_stale_time", cfg.Polling.ReportStaleTime},
	}
	for _, iv := range intervals {
		if iv.d <= 0 {
			errs = append(errs, fmt.Sprintf("%s must be positive, got %s", iv.key, iv.d))
		}
	}
	if cfg.Polling.HealthRetries < 0 {
		errs = append(errs, fmt.Sprintf("polling.health_retries must be non-negative, got %d", cfg.Polling.HealthRetries))
	}

	if _, err := language.Parse(cfg.Display.Locale); err != nil {
		errs = append(errs, fmt.Sprintf("display.locale %q is not a valid BCP 47 tag", cfg.Display.Locale))
	}
	if _, err := ParseSortBy(cfg.Display.DefaultSort); err != nil {
		errs = append(errs, fmt.Sprintf(
			"display.default_sort %q is invalid, must be one of: priority, created_at, student_name",
			cfg.Display.DefaultSort,
		))
	}
	if _, err := ParseGradeFilter(cfg.Display.DefaultGradeFilter); err != nil {
		errs = append(errs, fmt.Sprintf(
			"display.default_grade_filter %q is invalid, must be one of: ALL, A, B, C",
			cfg.Display.DefaultGradeFilter,
		))
	}

	if cfg.Player.Command != "" && !argsMention(cfg.Player.Args, "{url}") {
		errs = append(errs, "player.args must contain the {url} placeholder when player.command is set")
	}

	if cfg.Notifications.Alerts.PendingMinutes < 0 {
		errs = append(errs, "notifications.alerts.pending_minutes must be non-negative")
	}
	if cfg.Notifications.Alerts.UnapprovedCHours < 0 {
		errs = append(errs, "notifications.alerts.unapproved_c_hours must be non-negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func argsMention(args []string, placeholder string) bool {
	for _, a := range args {
		if strings.Contains(a, placeholder) {
			return true
		}
	}
	return false
}
