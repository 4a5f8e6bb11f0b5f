package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/governstack/govern-trust/internal/engine"
	"github.com/governstack/govern-trust/internal/models"
)

var simulateFlags struct {
	drift         string
	psi           float64
	accuracyDrop  float64
	bias          float64
	overrideRate  float64
	llmCost       float64
	hallucination float64
	llmLatency    float64
}

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Inject a synthetic snapshot through the governance pipeline",
	Long:  "Builds a metric snapshot from flags and runs it through scoring,\ndetection, and playbooks, bypassing the real collector. For demos and drills.",
	RunE:  runSimulate,
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear simulated state and force a fresh collector tick",
	RunE:  runReset,
}

func init() {
	f := simulateCmd.Flags()
	f.StringVar(&simulateFlags.drift, "drift", "none", "Drift severity (none|moderate|high)")
	f.Float64Var(&simulateFlags.psi, "psi", 0, "Drift PSI score")
	f.Float64Var(&simulateFlags.accuracyDrop, "accuracy-drop", 0, "Accuracy drop from baseline (0..1)")
	f.Float64Var(&simulateFlags.bias, "bias", 0, "Bias score (0..1)")
	f.Float64Var(&simulateFlags.overrideRate, "override-rate", 0, "Human override rate (0..1)")
	f.Float64Var(&simulateFlags.llmCost, "llm-cost", 0, "LLM cost over 24h in USD")
	f.Float64Var(&simulateFlags.hallucination, "llm-hallucination", 0, "LLM hallucination rate (0..1)")
	f.Float64Var(&simulateFlags.llmLatency, "llm-latency", 0, "LLM average latency in ms")
}

func runSimulate(cmd *cobra.Command, _ []string) error {
	snapshot := models.MetricSnapshot{
		DriftSeverity: models.DriftSeverity(simulateFlags.drift),
		DriftPSI:      simulateFlags.psi,
		AccuracyDrop:  simulateFlags.accuracyDrop,
		BiasScore:     simulateFlags.bias,
		OverrideRate:  simulateFlags.overrideRate,
	}
	if simulateFlags.llmCost > 0 || simulateFlags.hallucination > 0 || simulateFlags.llmLatency > 0 {
		snapshot.LLM = &models.LLMMetrics{
			CostUSD24h:        simulateFlags.llmCost,
			HallucinationRate: simulateFlags.hallucination,
			AvgLatencyMs:      simulateFlags.llmLatency,
		}
	}

	var result engine.TickResult
	if err := apiPost(cmd.Context(), "/api/v1/simulate", snapshot, &result); err != nil {
		return err
	}
	printTickResult(cmd, "Simulated", result)
	return nil
}

func runReset(cmd *cobra.Command, _ []string) error {
	var result engine.TickResult
	if err := apiPost(cmd.Context(), "/api/v1/reset", nil, &result); err != nil {
		return err
	}
	printTickResult(cmd, "Reset complete", result)
	return nil
}

func printTickResult(cmd *cobra.Command, label string, result engine.TickResult) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s: score %d, autonomy %s\n", label, result.Record.Score, result.Record.AutonomyLevel)
	for _, incident := range result.Incidents {
		fmt.Fprintf(out, "  incident %-9s %-20s %s\n", incident.Severity, incident.Type, incident.Description)
	}
	for _, execution := range result.Executions {
		for _, action := range execution.Actions {
			fmt.Fprintf(out, "  action   %-24s %s\n", action.Type, action.Status)
		}
	}
}
