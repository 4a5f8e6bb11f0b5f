package models

import "time"

// IncidentType enumerates detectable threshold violations.
type IncidentType string

const (
	IncidentDriftDetected    IncidentType = "drift_detected"
	IncidentBiasDetected     IncidentType = "bias_detected"
	IncidentAccuracyDrop     IncidentType = "accuracy_drop"
	IncidentLLMCostExceeded  IncidentType = "llm_cost_exceeded"
	IncidentLLMHallucination IncidentType = "llm_hallucination"
	IncidentLLMLatency       IncidentType = "llm_latency"
	IncidentSystemHealth     IncidentType = "system_health"
)

// Severity captures incident impact.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// IncidentStatus tracks the incident lifecycle. Incidents transition to
// resolved only via an explicit resolve call; they never auto-expire.
type IncidentStatus string

const (
	IncidentActive   IncidentStatus = "active"
	IncidentResolved IncidentStatus = "resolved"
)

// Incident is a detected threshold violation requiring attention.
type Incident struct {
	ID              string                 `json:"id"`
	Type            IncidentType           `json:"type"`
	Severity        Severity               `json:"severity"`
	DetectedAt      time.Time              `json:"detected_at"`
	Description     string                 `json:"description"`
	Details         map[string]interface{} `json:"details,omitempty"`
	Status          IncidentStatus         `json:"status"`
	ResolvedAt      *time.Time             `json:"resolved_at,omitempty"`
	ResolutionNotes string                 `json:"resolution_notes,omitempty"`
}

// AlertKey derives the deduplication key used for cooldown tracking. Related
// incidents of the same type share one key so repeats are suppressed
// together.
func (i Incident) AlertKey() string {
	switch i.Type {
	case IncidentDriftDetected:
		return "ml_drift"
	case IncidentBiasDetected:
		return "ml_bias"
	case IncidentAccuracyDrop:
		return "ml_accuracy"
	case IncidentLLMCostExceeded:
		return "llm_cost"
	case IncidentLLMHallucination:
		return "llm_hallucination"
	case IncidentLLMLatency:
		return "llm_latency"
	case IncidentSystemHealth:
		return "system_health"
	}
	return string(i.Type)
}

// IncidentPattern summarises recurring incidents mined from history.
type IncidentPattern struct {
	AlertKey         string       `json:"alert_key"`
	Type             IncidentType `json:"type"`
	Occurrences      int          `json:"occurrences"`
	Prevalence       float64      `json:"prevalence"`
	DominantSeverity Severity     `json:"dominant_severity"`
	FirstSeen        time.Time    `json:"first_seen"`
	LastSeen         time.Time    `json:"last_seen"`
}
