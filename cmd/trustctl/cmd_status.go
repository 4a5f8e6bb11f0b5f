package main

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/governstack/govern-trust/internal/services"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current trust score and autonomy level",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, _ []string) error {
	var status services.TrustStatus
	if err := apiGet(cmd.Context(), "/api/v1/trust", &status); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Score:     %d/100\n", status.Score)
	fmt.Fprintf(out, "Autonomy:  %s\n", status.AutonomyLevel)
	if status.AutonomyCeiling != "" {
		fmt.Fprintf(out, "Ceiling:   %s (remediation clamp active)\n", status.AutonomyCeiling)
	}
	if status.ShadowActive {
		fmt.Fprintf(out, "Shadow:    active\n")
	}
	if status.ComputedAt != nil {
		fmt.Fprintf(out, "Computed:  %s\n", status.ComputedAt.Format(time.RFC3339))
	}
	if status.Stale {
		fmt.Fprintf(out, "WARNING:   data is stale")
		if status.LastTickAt != nil {
			fmt.Fprintf(out, " (last tick %s)", status.LastTickAt.Format(time.RFC3339))
		}
		fmt.Fprintln(out)
	}
	if status.Explanation != "" {
		fmt.Fprintf(out, "\n%s\n", status.Explanation)
	}
	if len(status.Factors) > 0 {
		fmt.Fprintf(out, "\nContributing factors:\n")
		names := make([]string, 0, len(status.Factors))
		for name := range status.Factors {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			if penalty := status.Factors[name]; penalty > 0 {
				fmt.Fprintf(out, "  %-15s -%.1f\n", name, penalty)
			}
		}
	}
	return nil
}
