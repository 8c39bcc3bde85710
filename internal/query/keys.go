package query

// Query keys used by the sync layer. Every evaluation key starts with
// EvaluationsKey so the whole family can be invalidated at once.
var (
	EvaluationsKey = Key{"evaluations"}
	HealthKey      = Key{"health"}
)

// TasksKey names the task list query.
func TasksKey() Key {
	return Key{"evaluations", "tasks"}
}

// TaskKey names the single-task status query.
func TaskKey(id string) Key {
	return Key{"evaluations", "task", id}
}

// ReportKey names the report query of a task.
func ReportKey(id string) Key {
	return Key{"evaluations", "report", id}
}
