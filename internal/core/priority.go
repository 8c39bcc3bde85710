package core

import "github.com/valter-silva-au/recall-review/pkg/models"

// Tier is the three-level urgency indicator shown next to a task.
type Tier string

const (
	TierHigh   Tier = "high"
	TierMedium Tier = "medium"
	TierLow    Tier = "low"
)

const (
	highTierFloor   = 300
	mediumTierFloor = 200
)

// gradeWeight maps a grade to its urgency weight. Unknown grades weigh 0.
func gradeWeight(g models.Grade) int {
	switch g {
	case models.GradeA:
		return 1
	case models.GradeB:
		return 2
	case models.GradeC:
		return 3
	default:
		return 0
	}
}

// Priority returns the review urgency of a report: weight(grade)*100 plus
// the mistake count. Higher is more urgent.
func Priority(grade models.Grade, mistakeCount int) int {
	return gradeWeight(grade)*100 + mistakeCount
}

// TierFor buckets a priority score into a display tier.
func TierFor(priority int) Tier {
	switch {
	case priority >= highTierFloor:
		return TierHigh
	case priority >= mediumTierFloor:
		return TierMedium
	default:
		return TierLow
	}
}

// TaskPriority returns the priority of the task's attached report, or 0 when
// the task has no report yet.
func TaskPriority(t models.Task) int {
	if t.Result == nil {
		return 0
	}
	return Priority(t.Result.FinalGradeSuggestion, t.Result.MistakeCount)
}
