package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/valter-silva-au/recall-review/internal/core"
	"github.com/valter-silva-au/recall-review/pkg/models"
)

var (
	submitStudent string
	submitUnit    string
	submitSession int
	submitWait    bool
	submitTimeout time.Duration
)

// promptSubmission asks for the student, unit and session when the student
// or unit was not given as a flag. Piped input answers one field per line.
func promptSubmission(cmd *cobra.Command, student, unit *string, session *int) error {
	sessionStr := strconv.Itoa(*session)
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Student ID").
				Value(student).
				Validate(requiredField("student id")),
			huh.NewInput().
				Title("Unit").
				Placeholder("R101").
				Value(unit).
				Validate(requiredField("unit")),
			huh.NewInput().
				Title("Session").
				Value(&sessionStr).
				Validate(func(s string) error {
					if _, err := strconv.Atoi(strings.TrimSpace(s)); err != nil {
						return fmt.Errorf("session must be a number")
					}
					return nil
				}),
		),
	)

	if err := runForm(form, cmd.InOrStdin(), cmd.OutOrStdout()); err != nil {
		return fmt.Errorf("submission form failed: %w", err)
	}

	// Accessible mode keeps a field's old value when input ends early, so
	// the checks run again here.
	*student = strings.TrimSpace(*student)
	*unit = strings.TrimSpace(*unit)
	if err := requiredField("student id")(*student); err != nil {
		return err
	}
	if err := requiredField("unit")(*unit); err != nil {
		return err
	}
	n, err := strconv.Atoi(strings.TrimSpace(sessionStr))
	if err != nil {
		return fmt.Errorf("session must be a number, got %q", sessionStr)
	}
	*session = n
	return nil
}

func requiredField(name string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", name)
		}
		return nil
	}
}

// waitForTask polls id until it leaves PENDING/PROCESSING, reporting every
// status change to report.
func waitForTask(ctx context.Context, id string, report func(models.TaskStatus)) (models.TaskStatus, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	statuses := make(chan models.TaskStatus, 8)
	unsubscribe := Syncer.Store().Subscribe(func(st core.State) {
		t, err := core.TaskByID(st, id)
		if err != nil {
			return
		}
		// Keep the newest status when the reader falls behind.
		for {
			select {
			case statuses <- t.Status:
				return
			default:
				select {
				case <-statuses:
				default:
				}
			}
		}
	})
	defer unsubscribe()

	go Syncer.WatchTask(ctx, id)

	var last models.TaskStatus
	for {
		select {
		case <-ctx.Done():
			return last, fmt.Errorf("waiting for task %s: %w", id, ctx.Err())
		case s := <-statuses:
			if s == last {
				continue
			}
			last = s
			report(s)
			if !s.IsActive() {
				return s, nil
			}
		}
	}
}

var submitCmd = &cobra.Command{
	Use:   "submit <audio-file>",
	Short: "Upload a recording for evaluation",
	Long: `Upload a recorded recall session to the evaluation service, which
transcribes and grades it. The new task shows up in the task list right away
as PENDING. With --wait the command follows the task until it completes or
fails.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireSyncer(); err != nil {
			return err
		}
		path := args[0]
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("opening recording: %w", err)
		}
		defer f.Close()

		student, unit, session := submitStudent, submitUnit, submitSession
		if student == "" || unit == "" {
			if err := promptSubmission(cmd, &student, &unit, &session); err != nil {
				return err
			}
		}

		resp, err := Syncer.CreateEvaluation(cmd.Context(), models.CreateEvaluationRequest{
			StudentID:    student,
			UnitID:       unit,
			SessionIndex: session,
			AudioName:    filepath.Base(path),
			Audio:        f,
		})
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Created task %s (%s)\n", resp.TaskID, resp.Status)
		if !submitWait {
			return nil
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), submitTimeout)
		defer cancel()
		final, err := waitForTask(ctx, resp.TaskID, func(s models.TaskStatus) {
			fmt.Fprintf(out, "  %s %s\n", time.Now().Format("15:04:05"), styleForStatus(s).Render(string(s)))
		})
		if err != nil {
			return err
		}
		if final == models.StatusFailed {
			return fmt.Errorf("evaluation of task %s failed", resp.TaskID)
		}
		fmt.Fprintf(out, "Report ready: rrd report %s\n", resp.TaskID)
		return nil
	},
}

func init() {
	submitCmd.Flags().StringVar(&submitStudent, "student", "", "Student ID")
	submitCmd.Flags().StringVar(&submitUnit, "unit", "", "Unit ID (e.g. R101)")
	submitCmd.Flags().IntVar(&submitSession, "session", 1, "Session index within the unit")
	submitCmd.Flags().BoolVar(&submitWait, "wait", false, "Wait until the evaluation completes or fails")
	submitCmd.Flags().DurationVar(&submitTimeout, "timeout", 10*time.Minute, "How long --wait waits")
	rootCmd.AddCommand(submitCmd)
}
