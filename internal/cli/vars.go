package cli

import (
	"github.com/valter-silva-au/recall-review/internal/datasync"
	"github.com/valter-silva-au/recall-review/internal/integration"
	"github.com/valter-silva-au/recall-review/internal/observability"
	"github.com/valter-silva-au/recall-review/pkg/models"
)

// Service instances, set during app initialization in app.go.
var (
	Config *models.GlobalConfig
	Syncer *datasync.Syncer
	Player integration.Player

	// LogPath is where the dashboard sends slog output while it owns the
	// terminal. Empty disables logging during the dashboard.
	LogPath string
)

// Observability service instances, set during app initialization in app.go.
var (
	AlertEngine observability.AlertEngine
	MetricsCalc observability.MetricsCalculator
	Notifier    observability.Notifier
)
