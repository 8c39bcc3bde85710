package models

// IssueType classifies an annotation. The set is fixed by the evaluation
// service; unknown values are kept verbatim and treated as soft flags.
type IssueType string

const (
	IssuePronunciationError     IssueType = "PRONUNCIATION_ERROR"
	IssueWrongMeaning           IssueType = "WRONG_MEANING"
	IssueIncomplete             IssueType = "INCOMPLETE"
	IssueArticulationUnclear    IssueType = "ARTICULATION_UNCLEAR"
	IssueHesitationOrTiming     IssueType = "HESITATION_OR_TIMING"
	IssueSelfCorrection         IssueType = "SELF_CORRECTION"
	IssueIncompleteAndExtraWord IssueType = "INCOMPLETE_AND_EXTRA_WORD"
)

// IssueTypes lists every known issue type.
var IssueTypes = []IssueType{
	IssuePronunciationError,
	IssueWrongMeaning,
	IssueIncomplete,
	IssueArticulationUnclear,
	IssueHesitationOrTiming,
	IssueSelfCorrection,
	IssueIncompleteAndExtraWord,
}

var issueLabels = map[IssueType]string{
	IssuePronunciationError:     "Pronunciation error",
	IssueWrongMeaning:           "Wrong meaning",
	IssueIncomplete:             "Incomplete answer",
	IssueArticulationUnclear:    "Unclear articulation",
	IssueHesitationOrTiming:     "Hesitation or timing",
	IssueSelfCorrection:         "Self-correction",
	IssueIncompleteAndExtraWord: "Incomplete with extra words",
}

// IsHardError reports whether the issue type is score-impacting.
func (t IssueType) IsHardError() bool {
	return t == IssuePronunciationError || t == IssueWrongMeaning
}

// Label returns a human-readable name, or the raw value for unknown types.
func (t IssueType) Label() string {
	if l, ok := issueLabels[t]; ok {
		return l
	}
	return string(t)
}

// Annotation is one flagged span of a transcription. Times are milliseconds
// relative to the start of the audio.
type Annotation struct {
	CardIndex      int       `json:"card_index" yaml:"card_index"`
	Question       string    `json:"question" yaml:"question"`
	ExpectedAnswer string    `json:"expected_answer" yaml:"expected_answer"`
	DetectedText   string    `json:"detected_text" yaml:"detected_text"`
	StartTime      int64     `json:"start_time" yaml:"start_time"`
	EndTime        int64     `json:"end_time" yaml:"end_time"`
	IssueType      IssueType `json:"issue_type" yaml:"issue_type"`
	Explanation    string    `json:"explanation" yaml:"explanation"`
}

// Contains reports whether positionMs falls inside the annotation's time span.
func (a Annotation) Contains(positionMs int64) bool {
	return positionMs >= a.StartTime && positionMs <= a.EndTime
}
