package models

import "time"

// APIConfig describes how to reach the evaluation service.
type APIConfig struct {
	BaseURL           string        `yaml:"base_url" mapstructure:"base_url"`
	Mock              bool          `yaml:"mock" mapstructure:"mock"`
	Timeout           time.Duration `yaml:"timeout" mapstructure:"timeout"`
	ValidateResponses bool          `yaml:"validate_responses" mapstructure:"validate_responses"`
}

// PollingConfig holds refresh cadences for the sync layer.
type PollingConfig struct {
	TaskListInterval   time.Duration `yaml:"task_list_interval" mapstructure:"task_list_interval"`
	TaskStatusInterval time.Duration `yaml:"task_status_interval" mapstructure:"task_status_interval"`
	HealthInterval     time.Duration `yaml:"health_interval" mapstructure:"health_interval"`
	HealthRetries      int           `yaml:"health_retries" mapstructure:"health_retries"`
	ReportStaleTime    time.Duration `yaml:"report_stale_time" mapstructure:"report_stale_time"`
}

// DisplayConfig holds dashboard presentation defaults.
type DisplayConfig struct {
	Locale             string `yaml:"locale" mapstructure:"locale"`
	DefaultSort        string `yaml:"default_sort" mapstructure:"default_sort"`
	DefaultGradeFilter string `yaml:"default_grade_filter" mapstructure:"default_grade_filter"`
}

// ExportConfig controls where exported spreadsheets are written.
type ExportConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// PlayerConfig describes an optional external audio player. Args may contain
// the {url} and {start} placeholders (start is in seconds).
type PlayerConfig struct {
	Command string   `yaml:"command" mapstructure:"command"`
	Args    []string `yaml:"args,omitempty" mapstructure:"args"`
}

// AlertConfig holds alert thresholds.
type AlertConfig struct {
	PendingMinutes   int `yaml:"pending_minutes" mapstructure:"pending_minutes"`
	UnapprovedCHours int `yaml:"unapproved_c_hours" mapstructure:"unapproved_c_hours"`
}

// SlackConfig holds the Slack webhook used for alert notifications.
type SlackConfig struct {
	WebhookURL string `yaml:"webhook_url" mapstructure:"webhook_url"`
}

// NotificationConfig groups alerting and notification settings.
type NotificationConfig struct {
	Enabled bool        `yaml:"enabled" mapstructure:"enabled"`
	Slack   SlackConfig `yaml:"slack" mapstructure:"slack"`
	Alerts  AlertConfig `yaml:"alerts" mapstructure:"alerts"`
}

// ObservabilityConfig toggles the JSONL event log.
type ObservabilityConfig struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
}

// GlobalConfig holds system-wide settings read from .rrdconfig via Viper.
type GlobalConfig struct {
	API           APIConfig           `yaml:"api" mapstructure:"api"`
	Polling       PollingConfig       `yaml:"polling" mapstructure:"polling"`
	Display       DisplayConfig       `yaml:"display" mapstructure:"display"`
	Export        ExportConfig        `yaml:"export" mapstructure:"export"`
	Player        PlayerConfig        `yaml:"player" mapstructure:"player"`
	Notifications NotificationConfig  `yaml:"notifications" mapstructure:"notifications"`
	Observability ObservabilityConfig `yaml:"observability" mapstructure:"observability"`
}
