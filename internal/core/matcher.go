package core

import (
	"sort"
	"strings"

	"github.com/valter-silva-au/recall-review/pkg/models"
)

// Segment is a contiguous run of transcript text. Highlighted segments carry
// the annotation whose detected text they show; Index is that annotation's
// position in the slice passed to MatchAnnotations, or -1 for plain text.
type Segment struct {
	Text       string
	Start      int
	End        int
	Annotation *models.Annotation
	Index      int
}

// Highlighted reports whether the segment belongs to an annotation.
func (s Segment) Highlighted() bool {
	return s.Annotation != nil
}

type match struct {
	offset int
	end    int
	index  int
}

// MatchAnnotations splits transcript into plain and highlighted segments.
// Each annotation is located at the first occurrence of its detected text;
// annotations with empty or absent text produce no segment. Matches are
// ordered by offset, ties keeping annotation order.
//
// Overlapping matches are neither merged nor prioritized. A match starting
// inside text already emitted still yields its own highlighted segment, but
// only with the part past the cursor (possibly empty), and the cursor never
// moves backwards. A renderer that repeats the full detected text for such a
// match would print the overlapped characters twice; here concatenating
// every segment's Text always reproduces transcript.
func MatchAnnotations(transcript string, annotations []models.Annotation) []Segment {
	matches := make([]match, 0, len(annotations))
	for i, a := range annotations {
		if a.DetectedText == "" {
			continue
		}
		off := strings.Index(transcript, a.DetectedText)
		if off < 0 {
			continue
		}
		matches = append(matches, match{offset: off, end: off + len(a.DetectedText), index: i})
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].offset < matches[j].offset
	})

	segments := make([]Segment, 0, 2*len(matches)+1)
	cursor := 0
	for _, m := range matches {
		if m.offset > cursor {
			segments = append(segments, plainSegment(transcript, cursor, m.offset))
		}
		start := max(m.offset, cursor)
		end := max(m.end, start)
		ann := annotations[m.index]
		segments = append(segments, Segment{
			Text:       transcript[start:end],
			Start:      start,
			End:        end,
			Annotation: &ann,
			Index:      m.index,
		})
		cursor = end
	}
	if cursor < len(transcript) {
		segments = append(segments, plainSegment(transcript, cursor, len(transcript)))
	}
	return segments
}

func plainSegment(transcript string, start, end int) Segment {
	return Segment{Text: transcript[start:end], Start: start, End: end, Index: -1}
}

// AnnotationForSegment resolves a click on segment i to its annotation. The
// second result is false for plain segments and out-of-range indexes.
func AnnotationForSegment(segments []Segment, i int) (models.Annotation, bool) {
	if i < 0 || i >= len(segments) || !segments[i].Highlighted() {
		return models.Annotation{}, false
	}
	return *segments[i].Annotation, true
}

// HighlightIndex returns the positions of highlighted segments, in order.
func HighlightIndex(segments []Segment) []int {
	var idx []int
	for i, s := range segments {
		if s.Highlighted() {
			idx = append(idx, i)
		}
	}
	return idx
}

// ActiveAnnotation returns the index of the annotation whose time span
// contains positionMs, preferring the latest start when spans overlap.
// It returns -1 when no annotation is active.
func ActiveAnnotation(annotations []models.Annotation, positionMs int64) int {
	best := -1
	for i, a := range annotations {
		if !a.Contains(positionMs) {
			continue
		}
		if best < 0 || a.StartTime > annotations[best].StartTime {
			best = i
		}
	}
	return best
}
