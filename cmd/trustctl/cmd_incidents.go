package main

import (
	"fmt"
	"net/url"
	"time"

	"github.com/spf13/cobra"

	"github.com/governstack/govern-trust/internal/models"
)

var incidentsFlags struct {
	status string
	limit  int
}

var incidentsCmd = &cobra.Command{
	Use:   "incidents",
	Short: "List detected incidents, newest first",
	RunE:  runIncidents,
}

var resolveFlags struct {
	notes string
}

var resolveCmd = &cobra.Command{
	Use:   "resolve <incident-id>",
	Short: "Mark an active incident as resolved",
	Args:  cobra.ExactArgs(1),
	RunE:  runResolve,
}

func init() {
	f := incidentsCmd.Flags()
	f.StringVar(&incidentsFlags.status, "status", "", "Filter by status (active|resolved)")
	f.IntVar(&incidentsFlags.limit, "limit", 20, "Maximum incidents to list")

	resolveCmd.Flags().StringVar(&resolveFlags.notes, "notes", "", "Resolution notes")
	incidentsCmd.AddCommand(resolveCmd)
}

func runIncidents(cmd *cobra.Command, _ []string) error {
	query := url.Values{}
	if incidentsFlags.status != "" {
		query.Set("status", incidentsFlags.status)
	}
	query.Set("limit", fmt.Sprint(incidentsFlags.limit))

	var resp struct {
		Incidents []models.Incident `json:"incidents"`
	}
	if err := apiGet(cmd.Context(), "/api/v1/incidents?"+query.Encode(), &resp); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(resp.Incidents) == 0 {
		fmt.Fprintln(out, "No incidents")
		return nil
	}
	for _, incident := range resp.Incidents {
		fmt.Fprintf(out, "%s  %-8s %-9s %-20s %s\n",
			incident.DetectedAt.Format(time.RFC3339),
			incident.Status,
			incident.Severity,
			incident.Type,
			incident.ID)
		fmt.Fprintf(out, "    %s\n", incident.Description)
		if incident.Status == models.IncidentResolved && incident.ResolutionNotes != "" {
			fmt.Fprintf(out, "    resolved: %s\n", incident.ResolutionNotes)
		}
	}
	return nil
}

func runResolve(cmd *cobra.Command, args []string) error {
	var incident models.Incident
	body := map[string]string{"notes": resolveFlags.notes}
	path := "/api/v1/incidents/" + url.PathEscape(args[0]) + "/resolve"
	if err := apiPost(cmd.Context(), path, body, &incident); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Incident %s resolved\n", incident.ID)
	return nil
}
