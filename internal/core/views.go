package core

import (
	"errors"
	"fmt"
	"sort"

	"github.com/valter-silva-au/recall-review/pkg/models"
)

// ErrTaskNotFound is returned when a task id is not in the store.
var ErrTaskNotFound = errors.New("task not found")

// FilteredAndSortedTasks applies the state's grade filter and sort order.
// Tasks without a report are excluded by every filter except ALL. Sorting
// is stable, so equal keys keep their list order.
func FilteredAndSortedTasks(s State) []models.Task {
	out := make([]models.Task, 0, len(s.Tasks))
	for _, t := range s.Tasks {
		if matchesFilter(t, s.FilterGrade) {
			out = append(out, t)
		}
	}

	switch s.SortBy {
	case SortByCreatedAt:
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].CreatedAt.After(out[j].CreatedAt.Time)
		})
	case SortByStudentName:
		coll := NewNameCollator(s.Locale)
		sort.SliceStable(out, func(i, j int) bool {
			return coll.Less(out[i].DisplayName(), out[j].DisplayName())
		})
	default:
		sort.SliceStable(out, func(i, j int) bool {
			return TaskPriority(out[i]) > TaskPriority(out[j])
		})
	}
	return out
}

func matchesFilter(t models.Task, f GradeFilter) bool {
	if f == "" || f == FilterAll {
		return true
	}
	return t.Result != nil && string(t.Result.FinalGradeSuggestion) == string(f)
}

// TaskByID looks up a task. The error wraps ErrTaskNotFound.
func TaskByID(s State, id string) (models.Task, error) {
	for _, t := range s.Tasks {
		if t.TaskID == id {
			return t, nil
		}
	}
	return models.Task{}, fmt.Errorf("task %s: %w", id, ErrTaskNotFound)
}

// SelectedTask returns the selected task, if it is still in the list.
func SelectedTask(s State) (models.Task, bool) {
	if s.SelectedTaskID == "" {
		return models.Task{}, false
	}
	t, err := TaskByID(s, s.SelectedTaskID)
	return t, err == nil
}

// PendingTasksCount counts tasks still waiting on the evaluation service.
func PendingTasksCount(s State) int {
	n := 0
	for _, t := range s.Tasks {
		if t.Status.IsActive() {
			n++
		}
	}
	return n
}

// CompletedTasksCount counts tasks that are COMPLETED and teacher-approved.
// A graded report without approved_at does not count.
func CompletedTasksCount(s State) int {
	n := 0
	for _, t := range s.Tasks {
		if t.Status == models.StatusCompleted && t.IsApproved() {
			n++
		}
	}
	return n
}

// IsExpanded reports whether the card for id is expanded.
func IsExpanded(s State, id string) bool {
	return s.ExpandedCards[id]
}

// Stats are the dashboard header figures.
type Stats struct {
	Total    int `json:"total" yaml:"total"`
	Pending  int `json:"pending" yaml:"pending"`
	Approved int `json:"approved" yaml:"approved"`
}

// HeaderStats returns the visible task count alongside pending and approved
// totals over the whole list.
func HeaderStats(s State) Stats {
	return Stats{
		Total:    len(FilteredAndSortedTasks(s)),
		Pending:  PendingTasksCount(s),
		Approved: CompletedTasksCount(s),
	}
}

// CompletedTaskIDs returns the ids of COMPLETED tasks in the filtered view,
// in display order. These are the tasks an export covers.
func CompletedTaskIDs(s State) []string {
	var ids []string
	for _, t := range FilteredAndSortedTasks(s) {
		if t.Status == models.StatusCompleted {
			ids = append(ids, t.TaskID)
		}
	}
	return ids
}
