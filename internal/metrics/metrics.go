package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/governstack/govern-trust/internal/models"
)

const (
	// OutcomeSuccess labels completed governance ticks.
	OutcomeSuccess = "success"
	// OutcomeError labels ticks that failed before recording a score.
	OutcomeError = "error"
	// OutcomeSkipped labels ticks skipped because the collector was unavailable.
	OutcomeSkipped = "skipped"
)

const (
	// DispatchSent labels dispatches that reached at least one channel.
	DispatchSent = "sent"
	// DispatchSuppressed labels dispatches skipped by the cooldown window.
	DispatchSuppressed = "suppressed"
	// DispatchFailed labels dispatches where every channel attempt failed.
	DispatchFailed = "failed"
)

var (
	ticksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "govern_trust",
			Name:      "ticks_total",
			Help:      "Total number of governance ticks, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	tickDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "govern_trust",
			Name:      "tick_seconds",
			Help:      "Governance tick latency in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
	)

	incidentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "govern_trust",
			Name:      "incidents_total",
			Help:      "Detected incidents, partitioned by type and severity.",
		},
		[]string{"type", "severity"},
	)

	dispatchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "govern_trust",
			Name:      "alert_dispatches_total",
			Help:      "Alert dispatch outcomes, partitioned by result.",
		},
		[]string{"result"},
	)

	trustScore = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "govern_trust",
			Name:      "trust_score",
			Help:      "Most recently computed trust score (0-100).",
		},
	)

	autonomyLevel = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "govern_trust",
			Name:      "autonomy_level",
			Help:      "Current autonomy level rank (0=fully_autonomous .. 3=kill_switch).",
		},
	)
)

// Register attaches govern-trust collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		ticksTotal,
		tickDurationSeconds,
		incidentsTotal,
		dispatchesTotal,
		trustScore,
		autonomyLevel,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveTick records a tick duration and outcome label.
func ObserveTick(duration time.Duration, outcome string) {
	switch outcome {
	case OutcomeError, OutcomeSkipped:
	default:
		outcome = OutcomeSuccess
	}
	ticksTotal.WithLabelValues(outcome).Inc()
	if duration < 0 {
		duration = 0
	}
	tickDurationSeconds.Observe(duration.Seconds())
}

// ObserveIncident counts a detected incident.
func ObserveIncident(incidentType models.IncidentType, severity models.Severity) {
	incidentsTotal.WithLabelValues(string(incidentType), string(severity)).Inc()
}

// ObserveDispatch counts an alert dispatch outcome.
func ObserveDispatch(result string) {
	dispatchesTotal.WithLabelValues(result).Inc()
}

// SetTrustState publishes the latest score and autonomy rank.
func SetTrustState(score int, level models.AutonomyLevel) {
	trustScore.Set(float64(score))
	autonomyLevel.Set(float64(level.Rank()))
}
