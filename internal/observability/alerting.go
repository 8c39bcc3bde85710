package observability

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/valter-silva-au/recall-review/pkg/models"
)

// AlertSeverity represents the urgency of an alert.
type AlertSeverity string

const (
	SeverityHigh   AlertSeverity = "high"
	SeverityMedium AlertSeverity = "medium"
	SeverityLow    AlertSeverity = "low"
)

// Alert conditions.
const (
	ConditionTaskFailed       = "task_failed"
	ConditionPendingTooLong   = "task_pending_too_long"
	ConditionUnapprovedCGrade = "c_grade_unapproved"
	ConditionHealthFailed     = "health_check_failed"
)

// alertNamespace scopes alert ids so the same condition on the same task
// always yields the same id.
var alertNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("rrd:alerts"))

// Alert represents a triggered alert condition.
type Alert struct {
	ID          string        `json:"id"`
	Condition   string        `json:"condition"`
	Severity    AlertSeverity `json:"severity"`
	TaskID      string        `json:"task_id,omitempty"`
	Message     string        `json:"message"`
	TriggeredAt time.Time     `json:"triggered_at"`
}

// AlertThresholds configures when alerts should fire. A non-positive value
// disables the corresponding check.
type AlertThresholds struct {
	PendingMinutes   int `yaml:"pending_minutes" json:"pending_minutes"`
	UnapprovedCHours int `yaml:"unapproved_c_hours" json:"unapproved_c_hours"`
}

// DefaultAlertThresholds returns sensible defaults for alert thresholds.
func DefaultAlertThresholds() AlertThresholds {
	return AlertThresholds{
		PendingMinutes:   30,
		UnapprovedCHours: 24,
	}
}

// AlertThresholdsFromConfig converts the configured alert section.
func AlertThresholdsFromConfig(cfg models.AlertConfig) AlertThresholds {
	return AlertThresholds{
		PendingMinutes:   cfg.PendingMinutes,
		UnapprovedCHours: cfg.UnapprovedCHours,
	}
}

// TaskSource returns the tasks currently known to the dashboard.
type TaskSource func() []models.Task

// AlertEngine evaluates alert conditions against the current tasks and the
// event log.
type AlertEngine interface {
	Evaluate() ([]Alert, error)
}

// alertEngine implements AlertEngine.
type alertEngine struct {
	eventLog   EventLog
	tasks      TaskSource
	thresholds AlertThresholds
	now        func() time.Time
}

// NewAlertEngine creates a new AlertEngine. eventLog may be nil, in which
// case the health check condition never fires.
func NewAlertEngine(eventLog EventLog, tasks TaskSource, thresholds AlertThresholds) AlertEngine {
	return &alertEngine{
		eventLog:   eventLog,
		tasks:      tasks,
		thresholds: thresholds,
		now:        time.Now,
	}
}

// Evaluate checks all alert conditions. Alerts are ordered by severity, then
// condition, then task id.
func (ae *alertEngine) Evaluate() ([]Alert, error) {
	now := ae.now().UTC()
	var tasks []models.Task
	if ae.tasks != nil {
		tasks = ae.tasks()
	}

	var alerts []Alert
	alerts = append(alerts, ae.checkFailedTasks(tasks, now)...)
	alerts = append(alerts, ae.checkPendingTasks(tasks, now)...)
	alerts = append(alerts, ae.checkUnapprovedCGrades(tasks, now)...)

	healthAlerts, err := ae.checkHealth(now)
	if err != nil {
		return nil, fmt.Errorf("checking health events: %w", err)
	}
	alerts = append(alerts, healthAlerts...)

	sort.SliceStable(alerts, func(i, j int) bool {
		a, b := alerts[i], alerts[j]
		if severityRank(a.Severity) != severityRank(b.Severity) {
			return severityRank(a.Severity) < severityRank(b.Severity)
		}
		if a.Condition != b.Condition {
			return a.Condition < b.Condition
		}
		return a.TaskID < b.TaskID
	})
	return alerts, nil
}

func newAlert(condition string, severity AlertSeverity, taskID, msg string, now time.Time) Alert {
	return Alert{
		ID:          uuid.NewSHA1(alertNamespace, []byte(condition+"/"+taskID)).String(),
		Condition:   condition,
		Severity:    severity,
		TaskID:      taskID,
		Message:     msg,
		TriggeredAt: now,
	}
}

// checkFailedTasks raises one alert per task the evaluation service gave up on.
func (ae *alertEngine) checkFailedTasks(tasks []models.Task, now time.Time) []Alert {
	var alerts []Alert
	for _, t := range tasks {
		if t.Status == models.StatusFailed {
			alerts = append(alerts, newAlert(ConditionTaskFailed, SeverityHigh, t.TaskID,
				fmt.Sprintf("evaluation of %s (%s) failed", t.TaskID, t.DisplayName()), now))
		}
	}
	return alerts
}

// checkPendingTasks looks for tasks still queued or processing past the threshold.
func (ae *alertEngine) checkPendingTasks(tasks []models.Task, now time.Time) []Alert {
	if ae.thresholds.PendingMinutes <= 0 {
		return nil
	}
	threshold := time.Duration(ae.thresholds.PendingMinutes) * time.Minute
	var alerts []Alert
	for _, t := range tasks {
		if !t.Status.IsActive() || t.CreatedAt.IsZero() {
			continue
		}
		if now.Sub(t.CreatedAt.Time) > threshold {
			alerts = append(alerts, newAlert(ConditionPendingTooLong, SeverityMedium, t.TaskID,
				fmt.Sprintf("task %s has been %s for more than %d minutes", t.TaskID, t.Status, ae.thresholds.PendingMinutes), now))
		}
	}
	return alerts
}

// checkUnapprovedCGrades looks for C-grade reports nobody has signed off.
// Age is measured from the report's creation time, falling back to the task's.
func (ae *alertEngine) checkUnapprovedCGrades(tasks []models.Task, now time.Time) []Alert {
	if ae.thresholds.UnapprovedCHours <= 0 {
		return nil
	}
	threshold := time.Duration(ae.thresholds.UnapprovedCHours) * time.Hour
	var alerts []Alert
	for _, t := range tasks {
		r := t.Result
		if r == nil || r.FinalGradeSuggestion != models.GradeC || r.IsApproved() {
			continue
		}
		created := r.CreatedAt
		if created.IsZero() {
			created = t.CreatedAt
		}
		if created.IsZero() {
			continue
		}
		if now.Sub(created.Time) > threshold {
			alerts = append(alerts, newAlert(ConditionUnapprovedCGrade, SeverityMedium, t.TaskID,
				fmt.Sprintf("C grade for %s has waited more than %d hours for review", t.DisplayName(), ae.thresholds.UnapprovedCHours), now))
		}
	}
	return alerts
}

// checkHealth fires when the most recent health check failed.
func (ae *alertEngine) checkHealth(now time.Time) ([]Alert, error) {
	if ae.eventLog == nil {
		return nil, nil
	}
	events, err := ae.eventLog.Read(EventFilter{Type: EventHealthChecked})
	if err != nil {
		return nil, err
	}
	last, found := LatestEvent(events)
	if !found {
		return nil, nil
	}
	if ok, _ := last.Data["ok"].(bool); ok {
		return nil, nil
	}
	msg := "evaluation service health check failed"
	if reason, _ := last.Data["error"].(string); reason != "" {
		msg += ": " + reason
	}
	return []Alert{newAlert(ConditionHealthFailed, SeverityHigh, "", msg, now)}, nil
}

func severityRank(s AlertSeverity) int {
	switch s {
	case SeverityHigh:
		return 0
	case SeverityMedium:
		return 1
	case SeverityLow:
		return 2
	default:
		return 3
	}
}
