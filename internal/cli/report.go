package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/valter-silva-au/recall-review/internal/api"
	"github.com/valter-silva-au/recall-review/internal/core"
	"github.com/valter-silva-au/recall-review/pkg/models"
)

var (
	reportJSON bool
	reportYAML bool
)

// loadTaskAndReport refreshes the task list and fetches the report of id in
// parallel. A missing report is not an error when the task exists; the
// returned report is then nil.
func loadTaskAndReport(ctx context.Context, id string) (models.Task, *models.Report, error) {
	var report *models.Report
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return Syncer.RefreshTasks(gctx)
	})
	g.Go(func() error {
		r, err := Syncer.LoadReport(gctx, id)
		if err != nil && !api.IsNotFound(err) {
			return err
		}
		report = r
		return nil
	})
	if err := g.Wait(); err != nil {
		return models.Task{}, nil, err
	}

	task, err := core.TaskByID(Syncer.Store().Snapshot(), id)
	if err != nil {
		if report == nil {
			return models.Task{}, nil, err
		}
		task = models.Task{TaskID: id, Status: report.Status, Result: report}
	}
	return task, report, nil
}

var reportCmd = &cobra.Command{
	Use:   "report <task-id>",
	Short: "Show the evaluation report of a task",
	Long: `Show a task's evaluation report: the grade and AI summary, the transcript
with every detected issue highlighted, and the issue list with score-impacting
errors first.`,
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeTaskIDs(models.StatusCompleted),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireSyncer(); err != nil {
			return err
		}
		format, err := pickFormat(reportJSON, reportYAML)
		if err != nil {
			return err
		}

		task, report, err := loadTaskAndReport(cmd.Context(), args[0])
		if err != nil {
			if errors.Is(err, core.ErrTaskNotFound) {
				return fmt.Errorf("task %s not found", args[0])
			}
			return err
		}
		out := cmd.OutOrStdout()
		if report == nil {
			return fmt.Errorf("task %s has no report yet (status %s)", task.TaskID, task.Status)
		}
		if done, err := writeStructured(out, format, report); done {
			return err
		}

		fmt.Fprintln(out, renderReport(report))
		return nil
	},
}

// renderReport renders a full report for the terminal.
func renderReport(r *models.Report) string {
	segments := core.MatchAnnotations(r.FullTranscription, r.Annotations)
	var b strings.Builder
	b.WriteString(renderReportHeader(r) + "\n")
	if r.AISummaryComment != "" {
		b.WriteString("\n" + r.AISummaryComment + "\n")
	}
	if r.AudioURL != "" {
		b.WriteString(dimStyle.Render("audio: "+r.AudioURL) + "\n")
	}
	b.WriteString("\n" + headerStyle.Render("Transcript") + "\n")
	if r.FullTranscription == "" {
		b.WriteString(dimStyle.Render("No transcription available.") + "\n")
	} else {
		b.WriteString(renderTranscript(segments, -1, -1) + "\n")
	}
	b.WriteString("\n" + renderIssueSummary(r, segments, -1))
	return b.String()
}

func init() {
	reportCmd.Flags().BoolVar(&reportJSON, "json", false, "Output the raw report as JSON")
	reportCmd.Flags().BoolVar(&reportYAML, "yaml", false, "Output the raw report as YAML")
	rootCmd.AddCommand(reportCmd)
}
