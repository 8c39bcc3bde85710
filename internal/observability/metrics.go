package observability

import (
	"fmt"
	"time"
)

// Metrics holds review activity derived from the event log.
type Metrics struct {
	TaskSyncs          int            `json:"task_syncs" yaml:"task_syncs"`
	ReportsLoaded      int            `json:"reports_loaded" yaml:"reports_loaded"`
	EvaluationsCreated int            `json:"evaluations_created" yaml:"evaluations_created"`
	FeedbackSubmitted  int            `json:"feedback_submitted" yaml:"feedback_submitted"`
	GradeOverrides     int            `json:"grade_overrides" yaml:"grade_overrides"`
	FinalGrades        map[string]int `json:"final_grades" yaml:"final_grades"`
	Exports            int            `json:"exports" yaml:"exports"`
	TasksExported      int            `json:"tasks_exported" yaml:"tasks_exported"`
	HealthChecks       int            `json:"health_checks" yaml:"health_checks"`
	HealthFailures     int            `json:"health_failures" yaml:"health_failures"`
	APIErrors          int            `json:"api_errors" yaml:"api_errors"`
	EventCount         int            `json:"event_count" yaml:"event_count"`
	OldestEvent        *time.Time     `json:"oldest_event,omitempty" yaml:"oldest_event,omitempty"`
	NewestEvent        *time.Time     `json:"newest_event,omitempty" yaml:"newest_event,omitempty"`
}

// MetricsCalculator derives metrics from the event log.
type MetricsCalculator interface {
	Calculate(since time.Time) (*Metrics, error)
}

// metricsCalculator implements MetricsCalculator by reading from an EventLog.
type metricsCalculator struct {
	eventLog EventLog
}

// NewMetricsCalculator creates a new MetricsCalculator that reads from the given EventLog.
func NewMetricsCalculator(eventLog EventLog) MetricsCalculator {
	return &metricsCalculator{eventLog: eventLog}
}

// Calculate reads all events since the given time and aggregates them into metrics.
// A feedback event counts as an override when its final grade differs from
// the grade the AI suggested.
func (mc *metricsCalculator) Calculate(since time.Time) (*Metrics, error) {
	events, err := mc.eventLog.Read(EventFilter{Since: &since})
	if err != nil {
		return nil, fmt.Errorf("reading events for metrics: %w", err)
	}

	m := &Metrics{
		FinalGrades: make(map[string]int),
	}

	m.EventCount = len(events)

	for i, event := range events {
		if i == 0 {
			t := event.Time
			m.OldestEvent = &t
		}
		t := event.Time
		m.NewestEvent = &t

		switch event.Type {
		case EventTasksSynced:
			m.TaskSyncs++
		case EventReportLoaded:
			m.ReportsLoaded++
		case EventEvaluationCreated:
			m.EvaluationsCreated++
		case EventFeedbackSubmitted:
			m.FeedbackSubmitted++
			final, _ := event.Data["final_grade"].(string)
			suggested, _ := event.Data["suggested_grade"].(string)
			if final != "" {
				m.FinalGrades[final]++
			}
			if final != "" && suggested != "" && final != suggested {
				m.GradeOverrides++
			}
		case EventExportCompleted:
			m.Exports++
			m.TasksExported += intData(event.Data, "count")
		case EventHealthChecked:
			m.HealthChecks++
			if ok, _ := event.Data["ok"].(bool); !ok {
				m.HealthFailures++
			}
		case EventAPIError:
			m.APIErrors++
		}
	}

	return m, nil
}

// intData reads a numeric field that may have round-tripped through JSON.
func intData(data map[string]any, key string) int {
	switch v := data[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}
