package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/valter-silva-au/recall-review/internal/core"
	"github.com/valter-silva-au/recall-review/pkg/models"
)

// completeTaskIDs returns a completion function that lists task IDs,
// optionally restricted to the given statuses.
func completeTaskIDs(statuses ...models.TaskStatus) func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
	return func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		if len(args) > 0 {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		if Bootstrap != nil && Syncer == nil {
			if err := Bootstrap(globalFlags); err != nil {
				return nil, cobra.ShellCompDirectiveNoFileComp
			}
		}
		if Syncer == nil {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		if err := Syncer.RefreshTasks(cmd.Context()); err != nil {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}

		include := make(map[models.TaskStatus]bool)
		for _, s := range statuses {
			include[s] = true
		}

		var ids []string
		for _, task := range Syncer.Store().Snapshot().Tasks {
			if len(include) > 0 && !include[task.Status] {
				continue
			}
			if toComplete == "" || strings.HasPrefix(task.TaskID, toComplete) {
				// Include the student as description for better UX.
				ids = append(ids, task.TaskID+"\t"+task.DisplayName()+" "+string(task.Status))
			}
		}

		return ids, cobra.ShellCompDirectiveNoFileComp
	}
}

// completeGrades returns completion values for --grade filters.
func completeGrades(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
	return []string{
		string(core.FilterAll) + "\tEvery task",
		string(core.FilterA) + "\tGrade A reports",
		string(core.FilterB) + "\tGrade B reports",
		string(core.FilterC) + "\tGrade C reports",
	}, cobra.ShellCompDirectiveNoFileComp
}

// completeFinalGrades returns completion values for a teacher's final grade.
func completeFinalGrades(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
	out := make([]string, len(models.Grades))
	for i, g := range models.Grades {
		out[i] = string(g)
	}
	return out, cobra.ShellCompDirectiveNoFileComp
}

// completeSortOrders returns completion values for --sort.
func completeSortOrders(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
	return []string{
		string(core.SortByPriority) + "\tMost urgent review first",
		string(core.SortByCreatedAt) + "\tNewest first",
		string(core.SortByStudentName) + "\tStudent name",
	}, cobra.ShellCompDirectiveNoFileComp
}
