package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/valter-silva-au/recall-review/pkg/models"
)

var (
	feedbackGrade   string
	feedbackComment string
)

// feedbackInput is what the teacher enters for one report.
type feedbackInput struct {
	Grade   string
	Comment string
}

// isTerminal reports whether r is an interactive terminal.
func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// promptFeedback runs a form for the final grade and comment, starting from
// the AI's suggestion. Piped input answers the grade on the first line and
// the comment on the second.
func promptFeedback(in io.Reader, out io.Writer, r *models.Report, initial feedbackInput) (feedbackInput, error) {
	fb := initial
	if fb.Grade == "" {
		fb.Grade = string(r.FinalGradeSuggestion)
	}

	options := make([]huh.Option[string], 0, len(models.Grades))
	for _, g := range models.Grades {
		label := string(g)
		if g == r.FinalGradeSuggestion {
			label += " (AI suggestion)"
		}
		options = append(options, huh.NewOption(label, string(g)))
	}

	name := r.StudentName
	if name == "" {
		name = r.StudentID
	}
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Final grade").
				Description(fmt.Sprintf("%s, %d mistakes", name, r.MistakeCount)).
				Options(options...).
				Value(&fb.Grade),
			huh.NewText().
				Title("Comment").
				Description("Feedback for the student (optional)").
				Value(&fb.Comment),
		),
	)

	if err := runForm(form, in, out); err != nil {
		return feedbackInput{}, fmt.Errorf("feedback form failed: %w", err)
	}
	fb.Comment = strings.TrimSpace(fb.Comment)
	return fb, nil
}

var feedbackCmd = &cobra.Command{
	Use:   "feedback <task-id>",
	Short: "Approve a report with a final grade and comment",
	Long: `Submit the teacher's final grade and comment for a report, which marks it
approved. Without --grade an interactive form asks for both, defaulting to
the AI's suggested grade.`,
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeTaskIDs(models.StatusCompleted),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireSyncer(); err != nil {
			return err
		}
		id := args[0]

		report, err := Syncer.LoadReport(cmd.Context(), id)
		if err != nil {
			return err
		}

		fb := feedbackInput{Grade: strings.ToUpper(strings.TrimSpace(feedbackGrade)), Comment: feedbackComment}
		if fb.Grade == "" {
			fb, err = promptFeedback(cmd.InOrStdin(), cmd.OutOrStdout(), report, fb)
			if err != nil {
				return err
			}
		}
		grade := models.Grade(fb.Grade)
		if !grade.Valid() {
			return fmt.Errorf("invalid grade %q: must be one of A, B, C", fb.Grade)
		}

		if _, err := Syncer.SubmitFeedback(cmd.Context(), models.TeacherFeedback{
			TaskID:         id,
			FinalGrade:     grade,
			TeacherComment: fb.Comment,
		}); err != nil {
			return err
		}

		msg := fmt.Sprintf("Saved: %s approved with grade %s", id, grade)
		if grade != report.FinalGradeSuggestion {
			msg += fmt.Sprintf(" (AI suggested %s)", report.FinalGradeSuggestion)
		}
		fmt.Fprintln(cmd.OutOrStdout(), msg)
		return nil
	},
}

func init() {
	feedbackCmd.Flags().StringVar(&feedbackGrade, "grade", "", "Final grade (A, B or C); prompts when omitted")
	feedbackCmd.Flags().StringVar(&feedbackComment, "comment", "", "Comment for the student")
	_ = feedbackCmd.RegisterFlagCompletionFunc("grade", completeFinalGrades)
	rootCmd.AddCommand(feedbackCmd)
}
