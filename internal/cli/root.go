package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	appVersion = "dev"
	appCommit  = "none"
	appDate    = "unknown"
)

// SetVersionInfo sets the version information injected via ldflags.
func SetVersionInfo(version, commit, date string) {
	appVersion = version
	appCommit = commit
	appDate = date
}

// GlobalFlags are the persistent flags every command accepts.
type GlobalFlags struct {
	Debug  bool
	Mock   bool
	APIURL string
}

var globalFlags GlobalFlags

// Bootstrap builds the services the commands use from the parsed global
// flags. It is set by main; when nil the package-level service variables are
// used as they are.
var Bootstrap func(GlobalFlags) error

var rootCmd = &cobra.Command{
	Use:   "rrd",
	Short: "Recall review dashboard - review AI speech evaluation reports",
	Long: `Recall review dashboard (rrd) lets a teacher review the AI-generated
evaluation reports of spoken-word recall exercises.

It lists evaluation tasks by review priority, shows each report with its
transcript highlighted where issues were detected, plays the recording from
any annotation, records the teacher's final grade and comment, and exports
the results as a spreadsheet.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if Bootstrap == nil || skipBootstrap(cmd) {
			return nil
		}
		if err := Bootstrap(globalFlags); err != nil {
			return fmt.Errorf("initializing: %w", err)
		}
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "rrd %s\ncommit: %s\nbuilt:  %s\n", appVersion, appCommit, appDate)
	},
}

// skipBootstrap reports whether cmd runs without any services.
func skipBootstrap(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c == versionCmd || c == completionCmd {
			return true
		}
	}
	return false
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.BoolVar(&globalFlags.Debug, "debug", false, "Enable debug logging")
	pf.BoolVar(&globalFlags.Mock, "mock", false, "Use built-in sample data instead of the evaluation service")
	pf.StringVar(&globalFlags.APIURL, "api-url", "", "Evaluation service base URL (overrides api.base_url)")
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
