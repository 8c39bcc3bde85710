package models

// Grade is the letter grade suggested by the AI grader or set by a teacher.
type Grade string

const (
	GradeA Grade = "A"
	GradeB Grade = "B"
	GradeC Grade = "C"
)

// Grades lists valid grades from best to worst.
var Grades = []Grade{GradeA, GradeB, GradeC}

// Valid reports whether g is one of A, B or C.
func (g Grade) Valid() bool {
	return g == GradeA || g == GradeB || g == GradeC
}

// Report is the graded output of an evaluation task. A non-zero ApprovedAt
// means a teacher has submitted feedback for it.
type Report struct {
	TaskID               string       `json:"task_id" yaml:"task_id"`
	StudentID            string       `json:"student_id,omitempty" yaml:"student_id,omitempty"`
	StudentName          string       `json:"student_name" yaml:"student_name"`
	AudioURL             string       `json:"audio_url" yaml:"audio_url"`
	UnitID               string       `json:"unit_id" yaml:"unit_id"`
	SessionIndex         int          `json:"session_index" yaml:"session_index"`
	FinalGradeSuggestion Grade        `json:"final_grade_suggestion" yaml:"final_grade_suggestion"`
	MistakeCount         int          `json:"mistake_count" yaml:"mistake_count"`
	AISummaryComment     string       `json:"ai_summary_comment" yaml:"ai_summary_comment"`
	FullTranscription    string       `json:"full_transcription" yaml:"full_transcription"`
	Annotations          []Annotation `json:"annotations" yaml:"annotations"`
	Status               TaskStatus   `json:"status" yaml:"status"`
	CreatedAt            Timestamp    `json:"created_at,omitzero" yaml:"created_at,omitempty"`
	UpdatedAt            Timestamp    `json:"updated_at,omitzero" yaml:"updated_at,omitempty"`
	ApprovedAt           Timestamp    `json:"approved_at,omitzero" yaml:"approved_at,omitempty"`
}

// IsApproved reports whether the report carries an approval timestamp.
func (r Report) IsApproved() bool {
	return !r.ApprovedAt.IsZero()
}

// HardErrorCount counts score-impacting annotations. It is for display only;
// MistakeCount stays the server's number and is never replaced by this.
func (r Report) HardErrorCount() int {
	n := 0
	for _, a := range r.Annotations {
		if a.IssueType.IsHardError() {
			n++
		}
	}
	return n
}

// IssueTypes returns the distinct issue types of the report's annotations in
// first-seen order.
func (r Report) IssueTypes() []IssueType {
	seen := make(map[IssueType]bool, len(r.Annotations))
	var out []IssueType
	for _, a := range r.Annotations {
		if seen[a.IssueType] {
			continue
		}
		seen[a.IssueType] = true
		out = append(out, a.IssueType)
	}
	return out
}

// Clone returns a copy of the report with its own annotation slice.
func (r Report) Clone() Report {
	if r.Annotations != nil {
		anns := make([]Annotation, len(r.Annotations))
		copy(anns, r.Annotations)
		r.Annotations = anns
	}
	return r
}
