package patterns

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/governstack/govern-trust/internal/models"
)

type staticSource struct {
	incidents []models.Incident
	err       error
}

func (s *staticSource) Incidents(context.Context, models.IncidentStatus, int) ([]models.Incident, error) {
	return s.incidents, s.err
}

func at(hour int) time.Time {
	return time.Date(2026, 8, 20, hour, 0, 0, 0, time.UTC)
}

func TestMineAggregatesByAlertKey(t *testing.T) {
	source := &staticSource{incidents: []models.Incident{
		{Type: models.IncidentDriftDetected, Severity: models.SeverityWarning, DetectedAt: at(1)},
		{Type: models.IncidentDriftDetected, Severity: models.SeverityCritical, DetectedAt: at(3)},
		{Type: models.IncidentDriftDetected, Severity: models.SeverityCritical, DetectedAt: at(2)},
		{Type: models.IncidentBiasDetected, Severity: models.SeverityCritical, DetectedAt: at(4)},
	}}

	mined, err := NewMiner(nil, source).Mine(context.Background())
	if err != nil {
		t.Fatalf("Mine: %v", err)
	}
	if len(mined) != 2 {
		t.Fatalf("got %d patterns, want 2", len(mined))
	}

	drift := mined[0]
	if drift.AlertKey != "ml_drift" {
		t.Fatalf("most prevalent pattern = %q, want ml_drift", drift.AlertKey)
	}
	if drift.Occurrences != 3 {
		t.Errorf("occurrences = %d, want 3", drift.Occurrences)
	}
	if drift.Prevalence != 0.75 {
		t.Errorf("prevalence = %v, want 0.75", drift.Prevalence)
	}
	if drift.DominantSeverity != models.SeverityCritical {
		t.Errorf("dominant severity = %q, want critical", drift.DominantSeverity)
	}
	if !drift.FirstSeen.Equal(at(1)) || !drift.LastSeen.Equal(at(3)) {
		t.Errorf("seen range = %v..%v, want %v..%v", drift.FirstSeen, drift.LastSeen, at(1), at(3))
	}

	if mined[1].AlertKey != "ml_bias" || mined[1].Occurrences != 1 {
		t.Errorf("second pattern = %+v, want single ml_bias", mined[1])
	}
}

func TestMineSeverityTieBreaksCritical(t *testing.T) {
	source := &staticSource{incidents: []models.Incident{
		{Type: models.IncidentSystemHealth, Severity: models.SeverityWarning, DetectedAt: at(1)},
		{Type: models.IncidentSystemHealth, Severity: models.SeverityCritical, DetectedAt: at(2)},
	}}

	mined, err := NewMiner(nil, source).Mine(context.Background())
	if err != nil {
		t.Fatalf("Mine: %v", err)
	}
	if mined[0].DominantSeverity != models.SeverityCritical {
		t.Errorf("tie should break critical, got %q", mined[0].DominantSeverity)
	}
}

func TestMineEmptyHistory(t *testing.T) {
	mined, err := NewMiner(nil, &staticSource{}).Mine(context.Background())
	if err != nil {
		t.Fatalf("Mine: %v", err)
	}
	if len(mined) != 0 {
		t.Errorf("got %d patterns, want none", len(mined))
	}
}

func TestMineSourceError(t *testing.T) {
	source := &staticSource{err: errors.New("db down")}
	if _, err := NewMiner(nil, source).Mine(context.Background()); err == nil {
		t.Fatal("expected source error to propagate")
	}
}

func TestMineDeterministicOrderOnEqualPrevalence(t *testing.T) {
	source := &staticSource{incidents: []models.Incident{
		{Type: models.IncidentLLMLatency, Severity: models.SeverityWarning, DetectedAt: at(1)},
		{Type: models.IncidentLLMCostExceeded, Severity: models.SeverityWarning, DetectedAt: at(2)},
	}}

	for i := 0; i < 5; i++ {
		mined, err := NewMiner(nil, source).Mine(context.Background())
		if err != nil {
			t.Fatalf("Mine: %v", err)
		}
		if mined[0].AlertKey != "llm_cost" || mined[1].AlertKey != "llm_latency" {
			t.Fatalf("order = %q, %q; want llm_cost, llm_latency", mined[0].AlertKey, mined[1].AlertKey)
		}
	}
}
