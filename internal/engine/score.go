// Package engine implements the governance core: trust scoring, autonomy
// classification, incident detection, and the periodic monitoring loop that
// ties them together.
package engine

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/governstack/govern-trust/internal/config"
	"github.com/governstack/govern-trust/internal/models"
)

// Factor names recorded in TrustScoreRecord.Factors.
const (
	FactorDrift    = "drift"
	FactorAccuracy = "accuracy_drop"
	FactorBias     = "bias"
	FactorOverride = "override"
)

// ComputeScore derives a bounded trust score from one snapshot. It is pure:
// no I/O, no side effects, and it never fails — malformed fields are
// normalised to zero-penalty values first.
//
// Score = clamp(100 - drift - accuracy - bias - override, 0, 100), where
// drift is a per-band weight, accuracy scales linearly with the drop capped
// at its weight, and bias/override scale proportionally with their weights.
func ComputeScore(snapshot models.MetricSnapshot, weights config.WeightsConfig) models.TrustScoreRecord {
	snapshot = snapshot.Normalize()

	factors := map[string]float64{
		FactorDrift:    driftPenalty(snapshot.DriftSeverity, weights),
		FactorAccuracy: accuracyPenalty(snapshot.AccuracyDrop, weights.AccuracyFactor),
		FactorBias:     snapshot.BiasScore * weights.BiasFactor,
		FactorOverride: snapshot.OverrideRate * weights.OverrideFactor,
	}

	total := 0.0
	for _, penalty := range factors {
		total += penalty
	}

	score := int(math.Round(clampFloat(100-total, 0, 100)))
	level := Classify(score)

	return models.TrustScoreRecord{
		Score:         score,
		ComputedAt:    snapshot.Timestamp,
		AutonomyLevel: level,
		Factors:       factors,
		Explanation:   explainScore(score, snapshot),
		Simulated:     snapshot.Simulated,
	}
}

func driftPenalty(severity models.DriftSeverity, weights config.WeightsConfig) float64 {
	switch severity {
	case models.DriftHigh:
		return weights.DriftHigh
	case models.DriftModerate:
		return weights.DriftModerate
	}
	return 0
}

// accuracyPenalty scales the drop linearly so a 10% drop exhausts the full
// weight; anything beyond stays capped rather than dominating the score.
func accuracyPenalty(drop, weight float64) float64 {
	if drop <= 0 || weight <= 0 {
		return 0
	}
	penalty := drop * 100 * weight / 10
	if penalty > weight {
		return weight
	}
	return penalty
}

func explainScore(score int, snapshot models.MetricSnapshot) string {
	parts := make([]string, 0, 4)

	switch {
	case score >= bandFullyAutonomous:
		parts = append(parts, "Model is operating within normal parameters.")
	case score >= bandHumanOnLoop:
		parts = append(parts, "Model performance is acceptable but requires monitoring.")
	case score >= bandApprovalRequired:
		parts = append(parts, "Model performance has degraded; human approval required for high-risk decisions.")
	default:
		parts = append(parts, "Model performance is critically low; manual review required.")
	}

	switch snapshot.DriftSeverity {
	case models.DriftHigh:
		parts = append(parts, "Critical data drift detected: input distribution has changed significantly.")
	case models.DriftModerate:
		parts = append(parts, "Moderate data drift detected: input distribution is shifting.")
	}

	if snapshot.AccuracyDrop > 0.05 {
		parts = append(parts, fmt.Sprintf("Model accuracy has dropped by %.1f%%.", snapshot.AccuracyDrop*100))
	}

	return strings.Join(parts, " ")
}

func clampFloat(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// nowUTC is indirected for tests.
var nowUTC = func() time.Time { return time.Now().UTC() }
