package models

// TaskStatus represents the lifecycle state of an evaluation task on the
// evaluation service.
type TaskStatus string

const (
	StatusPending    TaskStatus = "PENDING"
	StatusProcessing TaskStatus = "PROCESSING"
	StatusCompleted  TaskStatus = "COMPLETED"
	StatusFailed     TaskStatus = "FAILED"
)

// IsActive reports whether the task is still waiting on the evaluation service.
func (s TaskStatus) IsActive() bool {
	return s == StatusPending || s == StatusProcessing
}

// Task identifies one evaluation job. The client never creates or deletes
// tasks on its own; it only mirrors server state (plus one optimistic
// placeholder right after a successful create).
type Task struct {
	TaskID       string     `json:"task_id" yaml:"task_id"`
	StudentID    string     `json:"student_id" yaml:"student_id"`
	UnitID       string     `json:"unit_id" yaml:"unit_id"`
	SessionIndex int        `json:"session_index" yaml:"session_index"`
	AudioPath    string     `json:"audio_path" yaml:"audio_path"`
	Status       TaskStatus `json:"status" yaml:"status"`
	CreatedAt    Timestamp  `json:"created_at" yaml:"created_at"`
	UpdatedAt    Timestamp  `json:"updated_at" yaml:"updated_at"`
	Result       *Report    `json:"result,omitempty" yaml:"result,omitempty"`
}

// DisplayName returns the report's student name, falling back to the raw
// student id when no report is attached yet.
func (t Task) DisplayName() string {
	if t.Result != nil && t.Result.StudentName != "" {
		return t.Result.StudentName
	}
	return t.StudentID
}

// IsApproved reports whether a teacher has finalized feedback for the task.
func (t Task) IsApproved() bool {
	return t.Result != nil && t.Result.IsApproved()
}

// Clone returns a copy of the task that shares no mutable state with t.
func (t Task) Clone() Task {
	if t.Result != nil {
		r := t.Result.Clone()
		t.Result = &r
	}
	return t
}
