package main

import (
	"fmt"
	"net/url"
	"time"

	"github.com/spf13/cobra"

	"github.com/governstack/govern-trust/internal/models"
)

var historyFlags struct {
	hours int
	since string
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show trust score history over a trailing window",
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVar(&historyFlags.hours, "hours", 24, "Trailing window in hours")
	historyCmd.Flags().StringVar(&historyFlags.since, "since", "", "Explicit RFC3339 cutoff, overrides --hours")
}

func runHistory(cmd *cobra.Command, _ []string) error {
	var resp struct {
		Hours   int                       `json:"hours"`
		Records []models.TrustScoreRecord `json:"records"`
	}
	path := fmt.Sprintf("/api/v1/trust/history?hours=%d", historyFlags.hours)
	if historyFlags.since != "" {
		path = "/api/v1/trust/history?since=" + url.QueryEscape(historyFlags.since)
	}
	if err := apiGet(cmd.Context(), path, &resp); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(resp.Records) == 0 {
		if historyFlags.since != "" {
			fmt.Fprintf(out, "No score records since %s\n", historyFlags.since)
		} else {
			fmt.Fprintf(out, "No score records in the last %dh\n", resp.Hours)
		}
		return nil
	}
	fmt.Fprintf(out, "%-25s %5s  %-20s %s\n", "COMPUTED", "SCORE", "AUTONOMY", "FLAGS")
	for _, record := range resp.Records {
		flags := ""
		if record.Simulated {
			flags = "simulated"
		}
		fmt.Fprintf(out, "%-25s %5d  %-20s %s\n",
			record.ComputedAt.Format(time.RFC3339), record.Score, record.AutonomyLevel, flags)
	}
	return nil
}
