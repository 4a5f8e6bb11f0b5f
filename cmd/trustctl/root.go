package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootFlags struct {
	server string
}

var rootCmd = &cobra.Command{
	Use:   "trustctl",
	Short: "Query and control a running trust-engine",
	Long:  "trustctl talks to the trust-engine HTTP API: current trust score,\nincident history, playbook executions, and demo simulate/reset controls.",
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootFlags.server, "server", "http://localhost:8700", "trust-engine base URL")

	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(incidentsCmd)
	rootCmd.AddCommand(executionsCmd)
	rootCmd.AddCommand(patternsCmd)
	rootCmd.AddCommand(simulateCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.Version = version
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
