package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check that the evaluation service is reachable",
	Long: `Call the evaluation service health endpoint. Failures are retried with
exponential backoff up to polling.health_retries times before reporting.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireSyncer(); err != nil {
			return err
		}
		h, err := Syncer.CheckHealth(cmd.Context())
		if err != nil {
			return fmt.Errorf("evaluation service unavailable: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Evaluation service: %s\n", h.Status)
		if Config != nil {
			source := Config.API.BaseURL
			if Config.API.Mock {
				source = "built-in sample data"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Source: %s\n", source)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
}
