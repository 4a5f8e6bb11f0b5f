package models

import "time"

// DriftSeverity classifies input-distribution drift reported by the collector.
type DriftSeverity string

const (
	DriftNone     DriftSeverity = "none"
	DriftModerate DriftSeverity = "moderate"
	DriftHigh     DriftSeverity = "high"
)

// Valid reports whether the severity is one of the known bands. Unknown
// values are treated as DriftNone by consumers so a malformed snapshot can
// never abort a tick.
func (s DriftSeverity) Valid() bool {
	switch s {
	case DriftNone, DriftModerate, DriftHigh:
		return true
	}
	return false
}

// LLMMetrics carries optional large-language-model observability readings.
// A nil pointer means the deployment has no LLM component; zero values mean
// no penalty.
type LLMMetrics struct {
	CostUSD24h        float64 `json:"cost_usd_24h"`
	HallucinationRate float64 `json:"hallucination_rate"`
	AvgLatencyMs      float64 `json:"avg_latency_ms"`
}

// SystemMetrics carries optional host health readings from the collector.
type SystemMetrics struct {
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
	DiskPercent   float64 `json:"disk_percent"`
}

// MetricSnapshot is one immutable reading pulled from the monitoring
// collector. It is never mutated after ingestion.
type MetricSnapshot struct {
	Timestamp     time.Time      `json:"timestamp"`
	DriftSeverity DriftSeverity  `json:"drift_severity"`
	DriftPSI      float64        `json:"drift_psi"`
	AccuracyDrop  float64        `json:"accuracy_drop"`
	BiasScore     float64        `json:"bias_score"`
	OverrideRate  float64        `json:"override_rate"`
	LLM           *LLMMetrics    `json:"llm,omitempty"`
	System        *SystemMetrics `json:"system,omitempty"`
	Simulated     bool           `json:"simulated,omitempty"`
}

// Normalize maps out-of-range or missing fields onto safe values so scoring
// and detection stay total over arbitrary collector output.
func (s MetricSnapshot) Normalize() MetricSnapshot {
	if !s.DriftSeverity.Valid() {
		s.DriftSeverity = DriftNone
	}
	if s.AccuracyDrop < 0 {
		s.AccuracyDrop = 0
	}
	s.BiasScore = clamp01(s.BiasScore)
	s.OverrideRate = clamp01(s.OverrideRate)
	if s.Timestamp.IsZero() {
		s.Timestamp = time.Now().UTC()
	}
	return s
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
