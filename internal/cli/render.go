package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/valter-silva-au/recall-review/internal/core"
	"github.com/valter-silva-au/recall-review/pkg/models"
)

// Style definitions shared by the dashboard and the report command.
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	panelStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	activePanelStyle = lipgloss.NewStyle().
				BorderStyle(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("62")).
				Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62"))

	tierHighStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	tierMediumStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	tierLowStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))

	hardIssueStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Underline(true)
	softIssueStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Underline(true)
	activeIssueStyle     = lipgloss.NewStyle().Reverse(true)
	selectedSegmentStyle = lipgloss.NewStyle().Bold(true).Background(lipgloss.Color("237"))

	statusPendingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("226"))
	statusFailedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	approvedStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))

	errorBannerStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("230")).
				Background(lipgloss.Color("160")).
				Padding(0, 1)

	severityHigh   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	severityMedium = lipgloss.NewStyle().Foreground(lipgloss.Color("226"))
	severityLow    = lipgloss.NewStyle().Foreground(lipgloss.Color("69"))

	dimStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	helpStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// tierMarker is the urgency marker shown next to a task.
func tierMarker(t models.Task) string {
	if t.Result == nil {
		return " "
	}
	switch core.TierFor(core.TaskPriority(t)) {
	case core.TierHigh:
		return tierHighStyle.Render("●")
	case core.TierMedium:
		return tierMediumStyle.Render("●")
	default:
		return tierLowStyle.Render("●")
	}
}

func styleForStatus(s models.TaskStatus) lipgloss.Style {
	switch s {
	case models.StatusPending, models.StatusProcessing:
		return statusPendingStyle
	case models.StatusFailed:
		return statusFailedStyle
	default:
		return lipgloss.NewStyle()
	}
}

func styleForSeverity(severity string) lipgloss.Style {
	switch strings.ToLower(severity) {
	case "high":
		return severityHigh
	case "medium":
		return severityMedium
	case "low":
		return severityLow
	default:
		return lipgloss.NewStyle()
	}
}

// renderTranscript renders the transcript with every matched annotation
// highlighted. The annotation at index active is shown reversed and the
// segment at position selected is bold.
func renderTranscript(segments []core.Segment, active, selected int) string {
	var b strings.Builder
	for i, seg := range segments {
		if !seg.Highlighted() {
			b.WriteString(seg.Text)
			continue
		}
		style := softIssueStyle
		if seg.Annotation.IssueType.IsHardError() {
			style = hardIssueStyle
		}
		if seg.Index == active {
			style = style.Inherit(activeIssueStyle)
		}
		if i == selected {
			style = style.Inherit(selectedSegmentStyle)
		}
		b.WriteString(style.Render(seg.Text))
	}
	return b.String()
}

// issueGroups splits annotation indexes into hard and soft issues, each in
// annotation order.
func issueGroups(annotations []models.Annotation) (hard, soft []int) {
	for i, a := range annotations {
		if a.IssueType.IsHardError() {
			hard = append(hard, i)
		} else {
			soft = append(soft, i)
		}
	}
	return hard, soft
}

// matchedSet returns the annotation indexes that produced a segment.
func matchedSet(segments []core.Segment) map[int]bool {
	out := make(map[int]bool)
	for _, s := range segments {
		if s.Highlighted() {
			out[s.Index] = true
		}
	}
	return out
}

// issueLine renders one annotation for the issue list.
func issueLine(i int, a models.Annotation, matched bool) string {
	style := softIssueStyle.UnsetUnderline()
	if a.IssueType.IsHardError() {
		style = hardIssueStyle.UnsetUnderline()
	}
	line := fmt.Sprintf("#%d %s-%s %s  card %d  %q",
		i+1, core.FormatMs(a.StartTime), core.FormatMs(a.EndTime),
		style.Render(a.IssueType.Label()), a.CardIndex, a.DetectedText)
	if a.ExpectedAnswer != "" {
		line += fmt.Sprintf(" expected %q", a.ExpectedAnswer)
	}
	if !matched {
		line += dimStyle.Render(" (not found in transcript)")
	}
	return line
}

// renderIssueSummary lists hard issues before soft ones. The annotation at
// index active is prefixed with a cursor.
func renderIssueSummary(r *models.Report, segments []core.Segment, active int) string {
	if len(r.Annotations) == 0 {
		return dimStyle.Render("No issues detected.")
	}
	matched := matchedSet(segments)
	hard, soft := issueGroups(r.Annotations)

	var b strings.Builder
	group := func(title string, idx []int) {
		if len(idx) == 0 {
			return
		}
		fmt.Fprintf(&b, "%s (%d)\n", headerStyle.Render(title), len(idx))
		for _, i := range idx {
			cursor := "  "
			if i == active {
				cursor = "▶ "
			}
			a := r.Annotations[i]
			b.WriteString(cursor + issueLine(i, a, matched[i]) + "\n")
			if a.Explanation != "" {
				b.WriteString("     " + dimStyle.Render(a.Explanation) + "\n")
			}
		}
	}
	group("Score-impacting", hard)
	group("Other flags", soft)
	return strings.TrimRight(b.String(), "\n")
}

// renderReportHeader renders the student, grade and approval line.
func renderReportHeader(r *models.Report) string {
	name := r.StudentName
	if name == "" {
		name = r.StudentID
	}
	grade := string(r.FinalGradeSuggestion)
	line := fmt.Sprintf("%s  %s session %d  grade %s  %d mistakes (%d score-impacting)",
		headerStyle.Render(name), r.UnitID, r.SessionIndex,
		gradeStyle(r.FinalGradeSuggestion).Render(grade), r.MistakeCount, r.HardErrorCount())
	if r.IsApproved() {
		line += "  " + approvedStyle.Render("approved "+r.ApprovedAt.Format("2006-01-02 15:04"))
	}
	return line
}

func gradeStyle(g models.Grade) lipgloss.Style {
	switch g {
	case models.GradeA:
		return tierLowStyle
	case models.GradeB:
		return tierMediumStyle
	case models.GradeC:
		return tierHighStyle
	default:
		return lipgloss.NewStyle()
	}
}
