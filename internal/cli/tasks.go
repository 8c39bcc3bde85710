package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/valter-silva-au/recall-review/internal/core"
	"github.com/valter-silva-au/recall-review/pkg/models"
)

var (
	tasksGrade string
	tasksSort  string
	tasksJSON  bool
	tasksYAML  bool
)

// taskRow is the printable form of a task.
type taskRow struct {
	TaskID       string `json:"task_id" yaml:"task_id"`
	Student      string `json:"student" yaml:"student"`
	UnitID       string `json:"unit_id" yaml:"unit_id"`
	SessionIndex int    `json:"session_index" yaml:"session_index"`
	Status       string `json:"status" yaml:"status"`
	Grade        string `json:"grade,omitempty" yaml:"grade,omitempty"`
	MistakeCount int    `json:"mistake_count" yaml:"mistake_count"`
	Priority     int    `json:"priority" yaml:"priority"`
	Tier         string `json:"tier" yaml:"tier"`
	Approved     bool   `json:"approved" yaml:"approved"`
	CreatedAt    string `json:"created_at,omitempty" yaml:"created_at,omitempty"`
}

func newTaskRow(t models.Task) taskRow {
	p := core.TaskPriority(t)
	row := taskRow{
		TaskID:       t.TaskID,
		Student:      t.DisplayName(),
		UnitID:       t.UnitID,
		SessionIndex: t.SessionIndex,
		Status:       string(t.Status),
		Priority:     p,
		Tier:         string(core.TierFor(p)),
		Approved:     t.IsApproved(),
	}
	if t.Result != nil {
		row.Grade = string(t.Result.FinalGradeSuggestion)
		row.MistakeCount = t.Result.MistakeCount
		if row.UnitID == "" {
			row.UnitID = t.Result.UnitID
		}
	}
	if !t.CreatedAt.IsZero() {
		row.CreatedAt = t.CreatedAt.Format(time.RFC3339)
	}
	return row
}

func requireSyncer() error {
	if Syncer == nil {
		return fmt.Errorf("sync layer not initialized")
	}
	return nil
}

// viewState returns a copy of the Store state with the given filter and sort
// applied, leaving the Store itself untouched.
func viewState(grade, sortBy string) (core.State, error) {
	filter, err := core.ParseGradeFilter(grade)
	if err != nil {
		return core.State{}, err
	}
	order, err := core.ParseSortBy(sortBy)
	if err != nil {
		return core.State{}, err
	}
	st := Syncer.Store().Snapshot()
	st.FilterGrade = filter
	st.SortBy = order
	return st, nil
}

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "List evaluation tasks by review priority",
	Long: `List evaluation tasks with their grade, mistake count and review priority.

Priority is grade weight (A=1, B=2, C=3) times 100 plus the mistake count, so
C grades with many mistakes come first. Use --grade to show one grade only and
--sort to order by creation time or student name instead.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireSyncer(); err != nil {
			return err
		}
		format, err := pickFormat(tasksJSON, tasksYAML)
		if err != nil {
			return err
		}
		if err := Syncer.RefreshTasks(cmd.Context()); err != nil {
			return err
		}
		st, err := viewState(tasksGrade, tasksSort)
		if err != nil {
			return err
		}

		tasks := core.FilteredAndSortedTasks(st)
		rows := make([]taskRow, len(tasks))
		for i, t := range tasks {
			rows[i] = newTaskRow(t)
		}

		out := cmd.OutOrStdout()
		if done, err := writeStructured(out, format, rows); done {
			return err
		}

		if len(rows) == 0 {
			fmt.Fprintln(out, "No tasks found.")
			return nil
		}
		tbl := &table{header: []string{"TASK", "STUDENT", "UNIT", "STATUS", "GRADE", "MISTAKES", "PRIORITY", "TIER", "APPROVED"}}
		for _, r := range rows {
			approved, tier := "", ""
			if r.Approved {
				approved = "yes"
			}
			if r.Grade != "" {
				tier = r.Tier
			}
			tbl.add(r.TaskID, truncateWidth(r.Student, 24), r.UnitID,
				r.Status, r.Grade, strconv.Itoa(r.MistakeCount), strconv.Itoa(r.Priority), tier, approved)
		}
		if err := tbl.write(out); err != nil {
			return err
		}
		stats := core.HeaderStats(st)
		fmt.Fprintf(out, "\n%d shown, %d pending, %d approved\n", stats.Total, stats.Pending, stats.Approved)
		return nil
	},
}

func init() {
	tasksCmd.Flags().StringVar(&tasksGrade, "grade", "ALL", "Show only reports with this grade (ALL, A, B, C)")
	tasksCmd.Flags().StringVar(&tasksSort, "sort", "priority", "Sort order (priority, created_at, student_name)")
	tasksCmd.Flags().BoolVar(&tasksJSON, "json", false, "Output as JSON")
	tasksCmd.Flags().BoolVar(&tasksYAML, "yaml", false, "Output as YAML")
	_ = tasksCmd.RegisterFlagCompletionFunc("grade", completeGrades)
	_ = tasksCmd.RegisterFlagCompletionFunc("sort", completeSortOrders)
	rootCmd.AddCommand(tasksCmd)
}
