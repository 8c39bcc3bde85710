package core

import (
	"testing"

	"github.com/valter-silva-au/recall-review/pkg/models"
	"pgregory.net/rapid"
)

func genGrade(t *rapid.T, label string) models.Grade {
	return rapid.SampledFrom(models.Grades).Draw(t, label)
}

// =============================================================================
// Property 1: Priority Monotonicity
// =============================================================================

// Feature: recall-review, Property 1: Priority Monotonicity
// *For any* grade, priority SHALL strictly increase with the mistake count.
func TestProperty1_PriorityMonotonicity(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		g := genGrade(rt, "grade")
		m := rapid.IntRange(0, 1000).Draw(rt, "mistakes")
		d := rapid.IntRange(1, 1000).Draw(rt, "delta")

		if Priority(g, m+d) <= Priority(g, m) {
			rt.Fatalf("Priority(%s, %d)=%d not greater than Priority(%s, %d)=%d",
				g, m+d, Priority(g, m+d), g, m, Priority(g, m))
		}
	})
}

// =============================================================================
// Property 2: Grade Dominance
// =============================================================================

// Feature: recall-review, Property 2: Grade Dominance
// *For any* two reports with fewer than 100 mistakes, the worse grade SHALL
// outrank the better one.
func TestProperty2_GradeDominance(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		m1 := rapid.IntRange(0, 99).Draw(rt, "m1")
		m2 := rapid.IntRange(0, 99).Draw(rt, "m2")

		if Priority(models.GradeC, m1) <= Priority(models.GradeB, m2) {
			rt.Fatalf("C/%d should outrank B/%d", m1, m2)
		}
		if Priority(models.GradeB, m1) <= Priority(models.GradeA, m2) {
			rt.Fatalf("B/%d should outrank A/%d", m1, m2)
		}
	})
}

// =============================================================================
// Property 3: Tier Consistency
// =============================================================================

// Feature: recall-review, Property 3: Tier Consistency
// *For any* report with fewer than 100 mistakes, the tier SHALL be determined
// by its grade alone.
func TestProperty3_TierConsistency(t *testing.T) {
	want := map[models.Grade]Tier{
		models.GradeA: TierLow,
		models.GradeB: TierMedium,
		models.GradeC: TierHigh,
	}
	rapid.Check(t, func(rt *rapid.T) {
		g := genGrade(rt, "grade")
		m := rapid.IntRange(0, 99).Draw(rt, "mistakes")
		if got := TierFor(Priority(g, m)); got != want[g] {
			rt.Fatalf("TierFor(Priority(%s, %d)) = %s, want %s", g, m, got, want[g])
		}
	})
}
