// Package cli defines the lamctl command tree. Every resource command reads
// a YAML desired-state file, runs one reconciliation pass and prints a JSON
// object with the changed flag and the resulting resource facts.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/lamctl/lamctl/internal/logging"
)

var logLevel string

var rootCmd = &cobra.Command{
	Use:   "lamctl",
	Short: "Idempotent AWS Lambda resource reconciliation",
	Long: `Lamctl converges AWS Lambda functions and the resources around them
(aliases, layers, SQS event source mappings, FIFO queues, invoke permissions
and scheduled rules) toward a desired state described in YAML.

Each invocation is a single get-compare-apply pass against the live remote
state; nothing is persisted locally. With --check no mutating call is made.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.SetLevel(logLevel)
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(functionCmd)
	rootCmd.AddCommand(aliasCmd)
	rootCmd.AddCommand(eventSourceCmd)
	rootCmd.AddCommand(layerCmd)
	rootCmd.AddCommand(queueCmd)
	rootCmd.AddCommand(policyCmd)
	rootCmd.AddCommand(ruleCmd)
	rootCmd.AddCommand(versionCmd)
}
