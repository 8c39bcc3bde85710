package observability

import (
	"fmt"
	"testing"
	"time"

	"pgregory.net/rapid"

	"github.com/valter-silva-au/recall-review/pkg/models"
)

// genTasks generates tasks of every status with creation times up to a week
// before alertNow. Completed tasks carry a report with a random grade that
// may or may not be approved.
func genTasks(t *rapid.T) []models.Task {
	n := rapid.IntRange(0, 15).Draw(t, "numTasks")
	statuses := []models.TaskStatus{models.StatusPending, models.StatusProcessing, models.StatusCompleted, models.StatusFailed}

	tasks := make([]models.Task, 0, n)
	for i := 0; i < n; i++ {
		minutesAgo := rapid.IntRange(0, 7*24*60).Draw(t, fmt.Sprintf("minutesAgo_%d", i))
		task := models.Task{
			TaskID:    fmt.Sprintf("t%03d", i),
			StudentID: fmt.Sprintf("s%03d", i),
			Status:    rapid.SampledFrom(statuses).Draw(t, fmt.Sprintf("status_%d", i)),
			CreatedAt: ago(time.Duration(minutesAgo) * time.Minute),
		}
		if task.Status == models.StatusCompleted {
			r := &models.Report{
				TaskID:               task.TaskID,
				FinalGradeSuggestion: rapid.SampledFrom(models.Grades).Draw(t, fmt.Sprintf("grade_%d", i)),
			}
			if rapid.Bool().Draw(t, fmt.Sprintf("approved_%d", i)) {
				r.ApprovedAt = ago(time.Minute)
			}
			task.Result = r
		}
		tasks = append(tasks, task)
	}
	return tasks
}

// Feature: recall-review, Property 20: Pending Alert Threshold Monotonicity
// *For any* set of tasks, increasing PendingMinutes SHALL produce fewer or
// equal pending alerts.
func TestProperty20_PendingAlertThresholdMonotonicity(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		tasks := genTasks(rt)
		low := rapid.IntRange(1, 600).Draw(rt, "low")
		high := rapid.IntRange(low+1, 20000).Draw(rt, "high")

		alertsLow, err := newTestAlertEngine(nil, tasks, AlertThresholds{PendingMinutes: low}).Evaluate()
		if err != nil {
			rt.Fatalf("evaluating low threshold: %v", err)
		}
		alertsHigh, err := newTestAlertEngine(nil, tasks, AlertThresholds{PendingMinutes: high}).Evaluate()
		if err != nil {
			rt.Fatalf("evaluating high threshold: %v", err)
		}

		l := countAlertsByCondition(alertsLow, ConditionPendingTooLong)
		h := countAlertsByCondition(alertsHigh, ConditionPendingTooLong)
		if h > l {
			rt.Errorf("higher threshold (%dm) produced more pending alerts (%d) than lower (%dm, %d)", high, h, low, l)
		}
	})
}

// Feature: recall-review, Property 21: Unapproved C Alert Threshold Monotonicity
// *For any* set of tasks, increasing UnapprovedCHours SHALL produce fewer or
// equal unapproved C-grade alerts.
func TestProperty21_UnapprovedCAlertThresholdMonotonicity(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		tasks := genTasks(rt)
		low := rapid.IntRange(1, 48).Draw(rt, "low")
		high := rapid.IntRange(low+1, 400).Draw(rt, "high")

		alertsLow, _ := newTestAlertEngine(nil, tasks, AlertThresholds{UnapprovedCHours: low}).Evaluate()
		alertsHigh, _ := newTestAlertEngine(nil, tasks, AlertThresholds{UnapprovedCHours: high}).Evaluate()

		l := countAlertsByCondition(alertsLow, ConditionUnapprovedCGrade)
		h := countAlertsByCondition(alertsHigh, ConditionUnapprovedCGrade)
		if h > l {
			rt.Errorf("higher threshold (%dh) produced more C alerts (%d) than lower (%dh, %d)", high, h, low, l)
		}
	})
}

// Feature: recall-review, Property 22: Alert Soundness
// *For any* set of tasks, every alert SHALL reference a task whose state
// satisfies the alert's condition, and failed tasks SHALL each raise exactly
// one alert.
func TestProperty22_AlertSoundness(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		tasks := genTasks(rt)
		alerts, err := newTestAlertEngine(nil, tasks, DefaultAlertThresholds()).Evaluate()
		if err != nil {
			rt.Fatalf("evaluating alerts: %v", err)
		}

		byID := make(map[string]models.Task, len(tasks))
		failed := 0
		for _, task := range tasks {
			byID[task.TaskID] = task
			if task.Status == models.StatusFailed {
				failed++
			}
		}

		for _, a := range alerts {
			task, ok := byID[a.TaskID]
			if !ok {
				rt.Fatalf("alert %s references unknown task %q", a.Condition, a.TaskID)
			}
			switch a.Condition {
			case ConditionTaskFailed:
				if task.Status != models.StatusFailed {
					rt.Errorf("failed alert on %s with status %s", task.TaskID, task.Status)
				}
			case ConditionPendingTooLong:
				if !task.Status.IsActive() {
					rt.Errorf("pending alert on inactive task %s", task.TaskID)
				}
			case ConditionUnapprovedCGrade:
				if task.Result == nil || task.Result.FinalGradeSuggestion != models.GradeC || task.Result.IsApproved() {
					rt.Errorf("C alert on task %s that is not an unapproved C", task.TaskID)
				}
			}
		}
		if got := countAlertsByCondition(alerts, ConditionTaskFailed); got != failed {
			rt.Errorf("expected %d failed alerts, got %d", failed, got)
		}
	})
}

// Feature: recall-review, Property 23: Event Filter Time Range
// *For any* set of events with random timestamps, applying an EventFilter with
// Since and Until SHALL return only events with timestamps within [Since, Until].
func TestProperty23_EventFilterTimeRange(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		log := newTestEventLog(t)

		baseTime := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
		numEvents := rapid.IntRange(1, 20).Draw(rt, "numEvents")
		for i := 0; i < numEvents; i++ {
			hoursOffset := rapid.IntRange(0, 168).Draw(rt, fmt.Sprintf("hoursOffset_%d", i))
			event := Event{
				Time:    baseTime.Add(time.Duration(hoursOffset) * time.Hour),
				Level:   LevelInfo,
				Type:    EventTasksSynced,
				Message: fmt.Sprintf("event %d", i),
			}
			if err := log.Write(event); err != nil {
				rt.Fatalf("writing event: %v", err)
			}
		}

		sinceOffset := rapid.IntRange(0, 100).Draw(rt, "sinceOffset")
		untilOffset := rapid.IntRange(sinceOffset, 168).Draw(rt, "untilOffset")
		since := baseTime.Add(time.Duration(sinceOffset) * time.Hour)
		until := baseTime.Add(time.Duration(untilOffset) * time.Hour)

		filtered, err := log.Read(EventFilter{Since: &since, Until: &until})
		if err != nil {
			rt.Fatalf("reading filtered events: %v", err)
		}
		for _, event := range filtered {
			if event.Time.Before(since) || event.Time.After(until) {
				rt.Errorf("event at %v outside [%v, %v]", event.Time, since, until)
			}
		}
	})
}

// countAlertsByCondition counts alerts matching a specific condition string.
func countAlertsByCondition(alerts []Alert, condition string) int {
	count := 0
	for _, a := range alerts {
		if a.Condition == condition {
			count++
		}
	}
	return count
}
