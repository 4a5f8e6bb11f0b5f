package engine

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/governstack/govern-trust/internal/config"
	"github.com/governstack/govern-trust/internal/models"
)

// Detect evaluates one snapshot against the configured thresholds and
// returns every incident whose predicate holds. It is stateless and
// deterministic: the same snapshot and thresholds always yield the same rule
// matches. Multiple rules may fire from one snapshot; callers process each
// incident independently.
func Detect(snapshot models.MetricSnapshot, thresholds config.ThresholdsConfig) []models.Incident {
	snapshot = snapshot.Normalize()
	incidents := make([]models.Incident, 0)

	switch snapshot.DriftSeverity {
	case models.DriftHigh:
		incidents = append(incidents, newIncident(snapshot, models.IncidentDriftDetected, models.SeverityCritical,
			fmt.Sprintf("High data drift detected (PSI %.3f)", snapshot.DriftPSI),
			map[string]interface{}{"psi_score": snapshot.DriftPSI, "severity_band": string(snapshot.DriftSeverity)}))
	case models.DriftModerate:
		incidents = append(incidents, newIncident(snapshot, models.IncidentDriftDetected, models.SeverityWarning,
			fmt.Sprintf("Moderate data drift detected (PSI %.3f)", snapshot.DriftPSI),
			map[string]interface{}{"psi_score": snapshot.DriftPSI, "severity_band": string(snapshot.DriftSeverity)}))
	}

	if snapshot.AccuracyDrop > thresholds.AccuracyDropCritical {
		// Accuracy degradation alone is a warning; escalation happens only
		// when drift fires in the same snapshot, via the drift incident.
		incidents = append(incidents, newIncident(snapshot, models.IncidentAccuracyDrop, models.SeverityWarning,
			fmt.Sprintf("Model accuracy dropped %.1f%% from baseline", snapshot.AccuracyDrop*100),
			map[string]interface{}{"accuracy_drop": snapshot.AccuracyDrop, "threshold": thresholds.AccuracyDropCritical}))
	}

	if snapshot.BiasScore > thresholds.BiasCritical {
		incidents = append(incidents, newIncident(snapshot, models.IncidentBiasDetected, models.SeverityCritical,
			fmt.Sprintf("Bias score %.3f exceeded fairness threshold %.3f", snapshot.BiasScore, thresholds.BiasCritical),
			map[string]interface{}{"bias_score": snapshot.BiasScore, "threshold": thresholds.BiasCritical}))
	}

	if llm := snapshot.LLM; llm != nil {
		if llm.CostUSD24h > thresholds.DailyCostLimitUSD {
			incidents = append(incidents, newIncident(snapshot, models.IncidentLLMCostExceeded, models.SeverityWarning,
				fmt.Sprintf("LLM cost $%.2f/24h exceeded $%.2f limit", llm.CostUSD24h, thresholds.DailyCostLimitUSD),
				map[string]interface{}{"cost_usd_24h": llm.CostUSD24h, "limit": thresholds.DailyCostLimitUSD}))
		}
		if llm.HallucinationRate > thresholds.HallucinationLimit {
			incidents = append(incidents, newIncident(snapshot, models.IncidentLLMHallucination, models.SeverityCritical,
				fmt.Sprintf("LLM hallucination rate %.1f%% exceeded %.1f%% limit",
					llm.HallucinationRate*100, thresholds.HallucinationLimit*100),
				map[string]interface{}{"hallucination_rate": llm.HallucinationRate, "limit": thresholds.HallucinationLimit}))
		}
		if llm.AvgLatencyMs > thresholds.LatencyLimitMs {
			incidents = append(incidents, newIncident(snapshot, models.IncidentLLMLatency, models.SeverityWarning,
				fmt.Sprintf("LLM latency %.0fms exceeded %.0fms limit", llm.AvgLatencyMs, thresholds.LatencyLimitMs),
				map[string]interface{}{"avg_latency_ms": llm.AvgLatencyMs, "limit": thresholds.LatencyLimitMs}))
		}
	}

	if sys := snapshot.System; sys != nil && thresholds.SystemUsagePercent > 0 {
		checks := []struct {
			resource string
			usage    float64
		}{
			{"cpu", sys.CPUPercent},
			{"memory", sys.MemoryPercent},
			{"disk", sys.DiskPercent},
		}
		for _, check := range checks {
			resource, usage := check.resource, check.usage
			if usage <= thresholds.SystemUsagePercent {
				continue
			}
			severity := models.SeverityWarning
			if usage > 90 {
				severity = models.SeverityCritical
			}
			incidents = append(incidents, newIncident(snapshot, models.IncidentSystemHealth, severity,
				fmt.Sprintf("High %s usage: %.0f%%", resource, usage),
				map[string]interface{}{"resource": resource, "usage_percent": usage, "threshold": thresholds.SystemUsagePercent}))
		}
	}

	return incidents
}

func newIncident(snapshot models.MetricSnapshot, incidentType models.IncidentType, severity models.Severity, description string, details map[string]interface{}) models.Incident {
	if details == nil {
		details = map[string]interface{}{}
	}
	if snapshot.Simulated {
		details["simulated"] = true
	}
	return models.Incident{
		ID:          uuid.NewString(),
		Type:        incidentType,
		Severity:    severity,
		DetectedAt:  snapshot.Timestamp,
		Description: description,
		Details:     details,
		Status:      models.IncidentActive,
	}
}
