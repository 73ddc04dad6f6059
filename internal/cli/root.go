// Package cli implements the tiller command line interface.
package cli

import (
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "tiller",
	Short: "Governance pipeline for agent actions",
	Long: "Gates every proposed agent action through safety, economic, and\n" +
		"irreversibility checks, records the outcome to a logically-clocked\n" +
		"ledger, and holds anything that needs a human.",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to governance config YAML (default ~/.tiller/governance.yaml)")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
