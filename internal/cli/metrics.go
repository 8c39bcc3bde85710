package cli

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	rrdmcp "github.com/valter-silva-au/recall-review/internal/mcp"
)

var (
	metricsJSON  bool
	metricsYAML  bool
	metricsSince string
)

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Display review activity metrics",
	Long: `Display aggregated metrics derived from the event log.

Metrics include feedback submitted and how often the teacher overrode the AI
grade, final grades given, exports, evaluations created, and API errors.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if MetricsCalc == nil {
			return fmt.Errorf("metrics calculator not initialized (observability may be disabled)")
		}
		format, err := pickFormat(metricsJSON, metricsYAML)
		if err != nil {
			return err
		}

		sinceTime, err := rrdmcp.ParseSince(metricsSince, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("parsing --since: %w", err)
		}

		metrics, err := MetricsCalc.Calculate(sinceTime)
		if err != nil {
			return fmt.Errorf("calculating metrics: %w", err)
		}

		out := cmd.OutOrStdout()
		if done, err := writeStructured(out, format, metrics); done {
			return err
		}

		fmt.Fprintf(out, "Metrics (since %s)\n\n", sinceTime.Format("2006-01-02"))
		fmt.Fprintf(out, "  %-24s %d\n", "Events recorded:", metrics.EventCount)
		fmt.Fprintf(out, "  %-24s %d\n", "Task list syncs:", metrics.TaskSyncs)
		fmt.Fprintf(out, "  %-24s %d\n", "Reports opened:", metrics.ReportsLoaded)
		fmt.Fprintf(out, "  %-24s %d\n", "Evaluations created:", metrics.EvaluationsCreated)
		fmt.Fprintf(out, "  %-24s %d\n", "Feedback submitted:", metrics.FeedbackSubmitted)
		fmt.Fprintf(out, "  %-24s %d\n", "Grade overrides:", metrics.GradeOverrides)
		fmt.Fprintf(out, "  %-24s %d (%d tasks)\n", "Exports:", metrics.Exports, metrics.TasksExported)
		fmt.Fprintf(out, "  %-24s %d of %d\n", "Failed health checks:", metrics.HealthFailures, metrics.HealthChecks)
		fmt.Fprintf(out, "  %-24s %d\n", "API errors:", metrics.APIErrors)

		if len(metrics.FinalGrades) > 0 {
			fmt.Fprintln(out, "\n  Final grades:")
			grades := make([]string, 0, len(metrics.FinalGrades))
			for g := range metrics.FinalGrades {
				grades = append(grades, g)
			}
			sort.Strings(grades)
			for _, g := range grades {
				fmt.Fprintf(out, "    %-20s %d\n", g+":", metrics.FinalGrades[g])
			}
		}

		if metrics.OldestEvent != nil {
			fmt.Fprintf(out, "\n  %-24s %s\n", "Oldest event:", metrics.OldestEvent.Format(time.RFC3339))
		}
		if metrics.NewestEvent != nil {
			fmt.Fprintf(out, "  %-24s %s\n", "Newest event:", metrics.NewestEvent.Format(time.RFC3339))
		}

		return nil
	},
}

func init() {
	metricsCmd.Flags().BoolVar(&metricsJSON, "json", false, "Output metrics as JSON")
	metricsCmd.Flags().BoolVar(&metricsYAML, "yaml", false, "Output metrics as YAML")
	metricsCmd.Flags().StringVar(&metricsSince, "since", "7d", "Time window for metrics (e.g. 7d, 30d, 24h)")
	rootCmd.AddCommand(metricsCmd)
}
