package core

import (
	"testing"

	"github.com/valter-silva-au/recall-review/pkg/models"
)

func ann(text string, start, end int64, issue models.IssueType) models.Annotation {
	return models.Annotation{DetectedText: text, StartTime: start, EndTime: end, IssueType: issue}
}

func joinSegments(segs []Segment) string {
	var s string
	for _, seg := range segs {
		s += seg.Text
	}
	return s
}

func TestMatchAnnotations_SingleMatch(t *testing.T) {
	a := ann("sharp", 4000, 9000, models.IssuePronunciationError)
	segs := MatchAnnotations("abc sharp def", []models.Annotation{a})

	if len(segs) != 3 {
		t.Fatalf("got %d segments, want 3: %+v", len(segs), segs)
	}
	if segs[0].Text != "abc " || segs[0].Highlighted() {
		t.Errorf("segment 0 = %+v, want plain %q", segs[0], "abc ")
	}
	if segs[1].Text != "sharp" || !segs[1].Highlighted() {
		t.Errorf("segment 1 = %+v, want highlighted %q", segs[1], "sharp")
	}
	if segs[1].Annotation.DetectedText != "sharp" || segs[1].Index != 0 {
		t.Errorf("segment 1 tagged with %+v (index %d)", segs[1].Annotation, segs[1].Index)
	}
	if segs[1].Start != 4 || segs[1].End != 9 {
		t.Errorf("segment 1 offsets = %d..%d, want 4..9", segs[1].Start, segs[1].End)
	}
	if segs[2].Text != " def" || segs[2].Highlighted() {
		t.Errorf("segment 2 = %+v, want plain %q", segs[2], " def")
	}
}

func TestMatchAnnotations_NoAnnotations(t *testing.T) {
	segs := MatchAnnotations("hello", nil)
	if len(segs) != 1 || segs[0].Text != "hello" || segs[0].Highlighted() {
		t.Errorf("got %+v, want one plain segment", segs)
	}
}

func TestMatchAnnotations_EmptyTranscript(t *testing.T) {
	segs := MatchAnnotations("", []models.Annotation{ann("x", 0, 1, models.IssueIncomplete)})
	if len(segs) != 0 {
		t.Errorf("got %+v, want no segments", segs)
	}
}

func TestMatchAnnotations_DropsEmptyAndMissing(t *testing.T) {
	anns := []models.Annotation{
		ann("", 0, 1, models.IssueIncomplete),
		ann("absent", 0, 1, models.IssueWrongMeaning),
		ann("cat", 0, 1, models.IssueSelfCorrection),
	}
	segs := MatchAnnotations("the cat sat", anns)

	hl := HighlightIndex(segs)
	if len(hl) != 1 {
		t.Fatalf("got %d highlighted segments, want 1", len(hl))
	}
	if segs[hl[0]].Index != 2 {
		t.Errorf("highlight index = %d, want 2", segs[hl[0]].Index)
	}
	if joinSegments(segs) != "the cat sat" {
		t.Errorf("round trip = %q", joinSegments(segs))
	}
}

func TestMatchAnnotations_OrderedByOffset(t *testing.T) {
	anns := []models.Annotation{
		ann("sat", 2000, 2500, models.IssueHesitationOrTiming),
		ann("the", 0, 300, models.IssueArticulationUnclear),
	}
	segs := MatchAnnotations("the cat sat", anns)

	hl := HighlightIndex(segs)
	if len(hl) != 2 {
		t.Fatalf("got %d highlights, want 2", len(hl))
	}
	if segs[hl[0]].Text != "the" || segs[hl[1]].Text != "sat" {
		t.Errorf("highlights out of order: %q, %q", segs[hl[0]].Text, segs[hl[1]].Text)
	}
}

func TestMatchAnnotations_FirstOccurrenceOnly(t *testing.T) {
	segs := MatchAnnotations("go go go", []models.Annotation{ann("go", 0, 100, models.IssueIncomplete)})
	if len(segs) != 2 {
		t.Fatalf("got %d segments, want 2", len(segs))
	}
	if segs[0].Start != 0 || !segs[0].Highlighted() {
		t.Errorf("first segment should be the highlight at offset 0, got %+v", segs[0])
	}
}

func TestMatchAnnotations_TieKeepsAnnotationOrder(t *testing.T) {
	anns := []models.Annotation{
		ann("cat", 100, 200, models.IssueWrongMeaning),
		ann("cat", 300, 400, models.IssueSelfCorrection),
	}
	segs := MatchAnnotations("a cat", anns)

	hl := HighlightIndex(segs)
	if len(hl) != 2 {
		t.Fatalf("got %d highlights, want 2", len(hl))
	}
	if segs[hl[0]].Index != 0 || segs[hl[1]].Index != 1 {
		t.Errorf("tie order = %d, %d; want 0, 1", segs[hl[0]].Index, segs[hl[1]].Index)
	}
	if segs[hl[0]].Text != "cat" || segs[hl[1]].Text != "" {
		t.Errorf("overlap texts = %q, %q; want %q, %q", segs[hl[0]].Text, segs[hl[1]].Text, "cat", "")
	}
	if joinSegments(segs) != "a cat" {
		t.Errorf("round trip = %q", joinSegments(segs))
	}
}

func TestMatchAnnotations_PartialOverlapClipped(t *testing.T) {
	anns := []models.Annotation{
		ann("abcd", 0, 100, models.IssueIncomplete),
		ann("cdef", 0, 100, models.IssueWrongMeaning),
	}
	segs := MatchAnnotations("abcdefg", anns)

	want := []struct {
		text string
		hl   bool
	}{
		{"abcd", true},
		{"ef", true},
		{"g", false},
	}
	if len(segs) != len(want) {
		t.Fatalf("got %d segments, want %d: %+v", len(segs), len(want), segs)
	}
	for i, w := range want {
		if segs[i].Text != w.text || segs[i].Highlighted() != w.hl {
			t.Errorf("segment %d = %q (highlighted=%v), want %q (%v)",
				i, segs[i].Text, segs[i].Highlighted(), w.text, w.hl)
		}
	}
}

func TestMatchAnnotations_ContainedOverlapKeepsCursor(t *testing.T) {
	anns := []models.Annotation{
		ann("abcd", 0, 100, models.IssueIncomplete),
		ann("bc", 200, 300, models.IssuePronunciationError),
	}
	segs := MatchAnnotations("abcdef", anns)

	if len(segs) != 3 {
		t.Fatalf("got %d segments, want 3: %+v", len(segs), segs)
	}
	// The contained match still gets its own highlighted segment, empty and
	// positioned at the cursor rather than back inside "abcd".
	inner := segs[1]
	if !inner.Highlighted() || inner.Index != 1 || inner.Text != "" || inner.Start != 4 || inner.End != 4 {
		t.Errorf("contained segment = %+v, want empty highlight of annotation 1 at 4", inner)
	}
	if got, ok := AnnotationForSegment(segs, 1); !ok || got.StartTime != 200 {
		t.Errorf("AnnotationForSegment = %+v, %v", got, ok)
	}
	if segs[2].Text != "ef" || segs[2].Highlighted() {
		t.Errorf("trailing segment = %+v", segs[2])
	}
	if joinSegments(segs) != "abcdef" {
		t.Errorf("round trip = %q", joinSegments(segs))
	}
}

func TestMatchAnnotations_MultibyteText(t *testing.T) {
	transcript := "我今天很开心"
	segs := MatchAnnotations(transcript, []models.Annotation{ann("很开", 0, 10, models.IssuePronunciationError)})
	if joinSegments(segs) != transcript {
		t.Errorf("round trip = %q", joinSegments(segs))
	}
	hl := HighlightIndex(segs)
	if len(hl) != 1 || segs[hl[0]].Text != "很开" {
		t.Errorf("highlight = %+v", segs)
	}
}

func TestAnnotationForSegment(t *testing.T) {
	a := ann("sharp", 4000, 9000, models.IssuePronunciationError)
	segs := MatchAnnotations("abc sharp def", []models.Annotation{a})

	got, ok := AnnotationForSegment(segs, 1)
	if !ok || got.StartTime != 4000 {
		t.Errorf("AnnotationForSegment(1) = %+v, %v", got, ok)
	}
	if _, ok := AnnotationForSegment(segs, 0); ok {
		t.Error("plain segment should not resolve to an annotation")
	}
	if _, ok := AnnotationForSegment(segs, 9); ok {
		t.Error("out-of-range index should not resolve")
	}
	if _, ok := AnnotationForSegment(segs, -1); ok {
		t.Error("negative index should not resolve")
	}
}

func TestActiveAnnotation(t *testing.T) {
	anns := []models.Annotation{
		ann("a", 1000, 3000, models.IssueIncomplete),
		ann("b", 2000, 2500, models.IssueWrongMeaning),
		ann("c", 5000, 6000, models.IssueSelfCorrection),
	}
	tests := []struct {
		pos  int64
		want int
	}{
		{0, -1},
		{1000, 0},
		{1500, 0},
		{2200, 1},
		{2800, 0},
		{4000, -1},
		{6000, 2},
	}
	for _, tt := range tests {
		if got := ActiveAnnotation(anns, tt.pos); got != tt.want {
			t.Errorf("ActiveAnnotation(%d) = %d, want %d", tt.pos, got, tt.want)
		}
	}
}
