package models

import (
	"encoding/json"
	"testing"
	"time"
)

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"2025-03-01T08:30:00Z", time.Date(2025, 3, 1, 8, 30, 0, 0, time.UTC)},
		{"2025-03-01T16:30:00+08:00", time.Date(2025, 3, 1, 8, 30, 0, 0, time.UTC)},
		{"2025-03-01T08:30:00", time.Date(2025, 3, 1, 8, 30, 0, 0, time.UTC)},
		{"2025-03-01T08:30:00.250000", time.Date(2025, 3, 1, 8, 30, 0, 250000000, time.UTC)},
		{"2025-03-01 08:30:00", time.Date(2025, 3, 1, 8, 30, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		got, err := ParseTimestamp(tt.in)
		if err != nil {
			t.Errorf("ParseTimestamp(%q) error: %v", tt.in, err)
			continue
		}
		if !got.Equal(tt.want) {
			t.Errorf("ParseTimestamp(%q) = %s, want %s", tt.in, got.Time, tt.want)
		}
	}

	if _, err := ParseTimestamp("yesterday"); err == nil {
		t.Error("expected error for unsupported format")
	}
}

func TestTimestamp_JSON(t *testing.T) {
	var task Task
	data := `{"task_id":"t1","status":"PENDING","created_at":"2025-03-01T08:30:00.123456","updated_at":null}`
	if err := json.Unmarshal([]byte(data), &task); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if task.CreatedAt.IsZero() || task.CreatedAt.Nanosecond() != 123456000 {
		t.Errorf("CreatedAt = %s", task.CreatedAt.Time)
	}
	if !task.UpdatedAt.IsZero() {
		t.Errorf("UpdatedAt = %s, want zero", task.UpdatedAt.Time)
	}

	out, err := json.Marshal(task.UpdatedAt)
	if err != nil || string(out) != "null" {
		t.Errorf("zero timestamp marshals to %s, %v; want null", out, err)
	}
}

func TestReport_ApprovedAtOmittedWhenZero(t *testing.T) {
	out, err := json.Marshal(Report{TaskID: "t1"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(out, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := m["approved_at"]; ok {
		t.Errorf("approved_at should be omitted, got %s", out)
	}
}

func TestReport_HardErrorCountAndIssueTypes(t *testing.T) {
	r := Report{
		MistakeCount: 7,
		Annotations: []Annotation{
			{IssueType: IssueSelfCorrection},
			{IssueType: IssuePronunciationError},
			{IssueType: IssueWrongMeaning},
			{IssueType: IssueSelfCorrection},
			{IssueType: IssueType("NEW_KIND")},
		},
	}
	if got := r.HardErrorCount(); got != 2 {
		t.Errorf("HardErrorCount = %d, want 2", got)
	}
	if r.MistakeCount != 7 {
		t.Error("MistakeCount must stay the server value")
	}
	types := r.IssueTypes()
	want := []IssueType{IssueSelfCorrection, IssuePronunciationError, IssueWrongMeaning, "NEW_KIND"}
	if len(types) != len(want) {
		t.Fatalf("IssueTypes = %v, want %v", types, want)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Errorf("IssueTypes[%d] = %q, want %q", i, types[i], want[i])
		}
	}
	if IssueType("NEW_KIND").IsHardError() {
		t.Error("unknown issue types are soft")
	}
	if IssueType("NEW_KIND").Label() != "NEW_KIND" {
		t.Error("unknown issue type label should be the raw value")
	}
}

func TestTask_CloneIsDeep(t *testing.T) {
	orig := Task{TaskID: "t1", Result: &Report{StudentName: "x", Annotations: []Annotation{{DetectedText: "a"}}}}
	cp := orig.Clone()
	cp.Result.StudentName = "y"
	cp.Result.Annotations[0].DetectedText = "b"

	if orig.Result.StudentName != "x" || orig.Result.Annotations[0].DetectedText != "a" {
		t.Error("Clone shares report state with the original")
	}
}

func TestTask_DisplayName(t *testing.T) {
	if got := (Task{StudentID: "s1"}).DisplayName(); got != "s1" {
		t.Errorf("DisplayName = %q, want s1", got)
	}
	if got := (Task{StudentID: "s1", Result: &Report{StudentName: "李四"}}).DisplayName(); got != "李四" {
		t.Errorf("DisplayName = %q, want 李四", got)
	}
}

func TestTask_NumericTaskID(t *testing.T) {
	var task Task
	data := `{"task_id":42,"status":"COMPLETED","result":{"task_id":42,"student_name":"王五","final_grade_suggestion":"B"}}`
	if err := json.Unmarshal([]byte(data), &task); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if task.TaskID != "42" {
		t.Errorf("TaskID = %q, want 42", task.TaskID)
	}
	if task.Result == nil || task.Result.TaskID != "42" || task.Result.StudentName != "王五" {
		t.Errorf("Result = %+v", task.Result)
	}

	var resp CreateEvaluationResponse
	if err := json.Unmarshal([]byte(`{"task_id":"abc","status":"PENDING","message":"ok"}`), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.TaskID != "abc" || resp.Status != StatusPending {
		t.Errorf("resp = %+v", resp)
	}
}
