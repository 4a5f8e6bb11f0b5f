package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/governstack/govern-trust/internal/models"
)

var executionsFlags struct {
	limit int
}

var executionsCmd = &cobra.Command{
	Use:   "executions",
	Short: "List recent playbook executions",
	RunE:  runExecutions,
}

var patternsCmd = &cobra.Command{
	Use:   "patterns",
	Short: "Show recurring incident patterns mined from history",
	RunE:  runPatterns,
}

func init() {
	executionsCmd.Flags().IntVar(&executionsFlags.limit, "limit", 10, "Maximum executions to list")
}

func runExecutions(cmd *cobra.Command, _ []string) error {
	var resp struct {
		Executions []models.PlaybookExecution `json:"executions"`
	}
	path := fmt.Sprintf("/api/v1/executions?limit=%d", executionsFlags.limit)
	if err := apiGet(cmd.Context(), path, &resp); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(resp.Executions) == 0 {
		fmt.Fprintln(out, "No playbook executions")
		return nil
	}
	for _, execution := range resp.Executions {
		fmt.Fprintf(out, "%s  execution %s (incident %s)\n",
			execution.ExecutedAt.Format(time.RFC3339), execution.ID, execution.IncidentID)
		for _, action := range execution.Actions {
			line := fmt.Sprintf("    %-24s %s", action.Type, action.Status)
			if action.Detail != "" {
				line += "  " + action.Detail
			}
			fmt.Fprintln(out, line)
		}
	}
	return nil
}

func runPatterns(cmd *cobra.Command, _ []string) error {
	var resp struct {
		Patterns []models.IncidentPattern `json:"patterns"`
	}
	if err := apiGet(cmd.Context(), "/api/v1/patterns", &resp); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(resp.Patterns) == 0 {
		fmt.Fprintln(out, "No incident patterns")
		return nil
	}
	fmt.Fprintf(out, "%-20s %6s %11s  %-9s %s\n", "ALERT KEY", "COUNT", "PREVALENCE", "SEVERITY", "LAST SEEN")
	for _, pattern := range resp.Patterns {
		fmt.Fprintf(out, "%-20s %6d %10.0f%%  %-9s %s\n",
			pattern.AlertKey,
			pattern.Occurrences,
			pattern.Prevalence*100,
			pattern.DominantSeverity,
			pattern.LastSeen.Format(time.RFC3339))
	}
	return nil
}
