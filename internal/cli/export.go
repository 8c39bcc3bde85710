package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/valter-silva-au/recall-review/internal/core"
	"github.com/valter-silva-au/recall-review/internal/datasync"
)

var (
	exportGrade string
	exportDir   string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export completed evaluation results to a spreadsheet",
	Long: `Export every COMPLETED task of the filtered list as an .xlsx spreadsheet
generated by the evaluation service. The file is saved as
evaluation_results_YYYY-MM-DD.xlsx in --dir (default: export.dir from the
configuration).`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireSyncer(); err != nil {
			return err
		}
		if err := Syncer.RefreshTasks(cmd.Context()); err != nil {
			return err
		}
		st, err := viewState(exportGrade, "")
		if err != nil {
			return err
		}

		ids := core.CompletedTaskIDs(st)
		path, err := Syncer.ExportTasks(cmd.Context(), ids, exportDir)
		if errors.Is(err, datasync.ErrNothingToExport) {
			return fmt.Errorf("no completed tasks match grade %s", st.FilterGrade)
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Exported %d task(s) to %s\n", len(ids), path)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportGrade, "grade", "ALL", "Export only reports with this grade (ALL, A, B, C)")
	exportCmd.Flags().StringVar(&exportDir, "dir", "", "Directory to write the spreadsheet into")
	_ = exportCmd.RegisterFlagCompletionFunc("grade", completeGrades)
	rootCmd.AddCommand(exportCmd)
}
