package models

import "io"

// TeacherFeedback approves or overrides a report's grade. It is write-only:
// the client keeps nothing of it after submission.
type TeacherFeedback struct {
	TaskID         string    `json:"task_id"`
	FinalGrade     Grade     `json:"final_grade"`
	TeacherComment string    `json:"teacher_comment"`
	ApprovedAt     Timestamp `json:"approved_at"`
}

// FeedbackResult is the evaluation service's answer to a feedback submission.
type FeedbackResult struct {
	Success bool `json:"success"`
}

// CreateEvaluationRequest submits a recorded session for evaluation.
type CreateEvaluationRequest struct {
	StudentID    string
	UnitID       string
	SessionIndex int
	AudioName    string
	Audio        io.Reader
}

// CreateEvaluationResponse acknowledges a new evaluation task.
type CreateEvaluationResponse struct {
	TaskID  string     `json:"task_id"`
	Status  TaskStatus `json:"status"`
	Message string     `json:"message"`
}

// ExportRequest asks the evaluation service for a spreadsheet of results.
type ExportRequest struct {
	TaskIDs []string `json:"task_ids"`
}

// HealthStatus is the evaluation service health response.
type HealthStatus struct {
	Status string `json:"status"`
}
