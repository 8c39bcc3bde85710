package core

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/valter-silva-au/recall-review/pkg/models"
)

// --- Helper ---

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

// --- LoadGlobalConfig tests ---

func TestLoadGlobalConfig_Defaults_WhenNoFile(t *testing.T) {
	dir := t.TempDir()
	cm := NewConfigurationManager(dir)

	cfg, err := cm.LoadGlobalConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.API.BaseURL != "http://localhost:8000" {
		t.Errorf("API.BaseURL = %q, want %q", cfg.API.BaseURL, "http://localhost:8000")
	}
	if cfg.API.Timeout != 30*time.Second {
		t.Errorf("API.Timeout = %s, want 30s", cfg.API.Timeout)
	}
	if cfg.Polling.TaskListInterval != 10*time.Second {
		t.Errorf("TaskListInterval = %s, want 10s", cfg.Polling.TaskListInterval)
	}
	if cfg.Polling.TaskStatusInterval != 5*time.Second {
		t.Errorf("TaskStatusInterval = %s, want 5s", cfg.Polling.TaskStatusInterval)
	}
	if cfg.Polling.HealthInterval != 30*time.Second {
		t.Errorf("HealthInterval = %s, want 30s", cfg.Polling.HealthInterval)
	}
	if cfg.Polling.HealthRetries != 3 {
		t.Errorf("HealthRetries = %d, want 3", cfg.Polling.HealthRetries)
	}
	if cfg.Polling.ReportStaleTime != 60*time.Second {
		t.Errorf("ReportStaleTime = %s, want 60s", cfg.Polling.ReportStaleTime)
	}
	if cfg.Display.Locale != "zh-CN" {
		t.Errorf("Display.Locale = %q, want zh-CN", cfg.Display.Locale)
	}
	if cfg.Display.DefaultSort != "priority" {
		t.Errorf("Display.DefaultSort = %q, want priority", cfg.Display.DefaultSort)
	}
	if cfg.Display.DefaultGradeFilter != "ALL" {
		t.Errorf("Display.DefaultGradeFilter = %q, want ALL", cfg.Display.DefaultGradeFilter)
	}
	if !cfg.Observability.Enabled {
		t.Error("Observability.Enabled = false, want true")
	}
	if cfg.API.Mock {
		t.Error("API.Mock = true, want false")
	}
}

func TestLoadGlobalConfig_ReadsRrdconfig(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".rrdconfig.yaml", `
api:
  base_url: https://eval.example.com
  timeout: 5s
polling:
  task_list_interval: 20s
display:
  locale: en-US
  default_sort: student_name
  default_grade_filter: C
player:
  command: mpv
  args: ["--start={start}", "{url}"]
notifications:
  enabled: true
  slack:
    webhook_url: https://hooks.slack.com/services/T000/B000/XXX
  alerts:
    pending_minutes: 15
`)

	cm := NewConfigurationManager(dir)
	cfg, err := cm.LoadGlobalConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.API.BaseURL != "https://eval.example.com" {
		t.Errorf("API.BaseURL = %q", cfg.API.BaseURL)
	}
	if cfg.API.Timeout != 5*time.Second {
		t.Errorf("API.Timeout = %s, want 5s", cfg.API.Timeout)
	}
	if cfg.Polling.TaskListInterval != 20*time.Second {
		t.Errorf("TaskListInterval = %s, want 20s", cfg.Polling.TaskListInterval)
	}
	// Keys absent from the file keep their defaults.
	if cfg.Polling.TaskStatusInterval != 5*time.Second {
		t.Errorf("TaskStatusInterval = %s, want default 5s", cfg.Polling.TaskStatusInterval)
	}
	if cfg.Display.Locale != "en-US" {
		t.Errorf("Display.Locale = %q, want en-US", cfg.Display.Locale)
	}
	if cfg.Display.DefaultSort != "student_name" {
		t.Errorf("Display.DefaultSort = %q", cfg.Display.DefaultSort)
	}
	if cfg.Player.Command != "mpv" || len(cfg.Player.Args) != 2 {
		t.Errorf("Player = %+v", cfg.Player)
	}
	if !cfg.Notifications.Enabled {
		t.Error("Notifications.Enabled = false, want true")
	}
	if cfg.Notifications.Alerts.PendingMinutes != 15 {
		t.Errorf("PendingMinutes = %d, want 15", cfg.Notifications.Alerts.PendingMinutes)
	}
	if cfg.Notifications.Alerts.UnapprovedCHours != 24 {
		t.Errorf("UnapprovedCHours = %d, want default 24", cfg.Notifications.Alerts.UnapprovedCHours)
	}
}

func TestLoadGlobalConfig_EnvOverride(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".rrdconfig.yaml", "api:\n  base_url: https://file.example.com\n")
	t.Setenv("RRD_API_BASE_URL", "https://env.example.com")
	t.Setenv("RRD_API_MOCK", "true")
	t.Setenv("RRD_POLLING_HEALTH_INTERVAL", "45s")

	cfg, err := NewConfigurationManager(dir).LoadGlobalConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.API.BaseURL != "https://env.example.com" {
		t.Errorf("API.BaseURL = %q, want env value", cfg.API.BaseURL)
	}
	if !cfg.API.Mock {
		t.Error("API.Mock = false, want true from env")
	}
	if cfg.Polling.HealthInterval != 45*time.Second {
		t.Errorf("HealthInterval = %s, want 45s", cfg.Polling.HealthInterval)
	}
}

func TestLoadGlobalConfig_MalformedYAML(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".rrdconfig.yaml", "api: [unclosed\n")

	_, err := NewConfigurationManager(dir).LoadGlobalConfig()
	if err == nil {
		t.Fatal("expected error for malformed YAML")
	}
	if !strings.Contains(err.Error(), ".rrdconfig") {
		t.Errorf("error should name the config file, got: %v", err)
	}
}

// --- ValidateConfig tests ---

func TestValidateConfig_Defaults(t *testing.T) {
	cm := NewConfigurationManager(t.TempDir())
	if err := cm.ValidateConfig(DefaultGlobalConfig()); err != nil {
		t.Errorf("defaults should validate, got: %v", err)
	}
}

func TestValidateConfig_Nil(t *testing.T) {
	cm := NewConfigurationManager(t.TempDir())
	if err := cm.ValidateConfig(nil); err == nil {
		t.Error("expected error for nil config")
	}
}

func TestValidateConfig_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *models.GlobalConfig)
		wantSub string
	}{
		{"relative url", func(c *models.GlobalConfig) { c.API.BaseURL = "localhost" }, "api.base_url"},
		{"zero list interval", func(c *models.GlobalConfig) { c.Polling.TaskListInterval = 0 }, "polling.task_list_interval"},
		{"negative retries", func(c *models.GlobalConfig) { c.Polling.HealthRetries = -1 }, "polling.health_retries"},
		{"bad locale", func(c *models.GlobalConfig) { c.Display.Locale = "not a locale!" }, "display.locale"},
		{"bad sort", func(c *models.GlobalConfig) { c.Display.DefaultSort = "grade" }, "display.default_sort"},
		{"bad grade", func(c *models.GlobalConfig) { c.Display.DefaultGradeFilter = "D" }, "display.default_grade_filter"},
		{"player without url", func(c *models.GlobalConfig) {
			c.Player.Command = "mpv"
			c.Player.Args = []string{"--start={start}"}
		}, "{url}"},
	}

	cm := NewConfigurationManager(t.TempDir())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultGlobalConfig()
			tt.mutate(cfg)
			err := cm.ValidateConfig(cfg)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("error %q should mention %q", err, tt.wantSub)
			}
		})
	}
}

func TestValidateConfig_MockSkipsURL(t *testing.T) {
	cfg := DefaultGlobalConfig()
	cfg.API.Mock = true
	cfg.API.BaseURL = ""
	if err := NewConfigurationManager(t.TempDir()).ValidateConfig(cfg); err != nil {
		t.Errorf("mock mode should not require a base URL, got: %v", err)
	}
}
