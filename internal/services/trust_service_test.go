package services

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/governstack/govern-trust/internal/alert"
	"github.com/governstack/govern-trust/internal/cache"
	"github.com/governstack/govern-trust/internal/config"
	"github.com/governstack/govern-trust/internal/engine"
	"github.com/governstack/govern-trust/internal/history"
	"github.com/governstack/govern-trust/internal/models"
	"github.com/governstack/govern-trust/internal/patterns"
	"github.com/governstack/govern-trust/internal/playbook"
)

type staticSource struct {
	snapshot models.MetricSnapshot
}

func (s *staticSource) FetchSnapshot(context.Context) (models.MetricSnapshot, error) {
	return s.snapshot, nil
}

type dropMailer struct{}

func (dropMailer) Send(context.Context, string, string, string) error { return nil }

// memoryCache is a map-backed cache.Provider for observing read-through
// behavior.
type memoryCache struct {
	entries map[string][]byte
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: make(map[string][]byte)}
}

func (m *memoryCache) Get(_ context.Context, key string) ([]byte, error) {
	if v, ok := m.entries[key]; ok {
		return v, nil
	}
	return nil, cache.ErrCacheMiss
}

func (m *memoryCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.entries[key] = value
	return nil
}

func (m *memoryCache) SetNX(_ context.Context, key string, value []byte, _ time.Duration) (bool, error) {
	if _, ok := m.entries[key]; ok {
		return false, nil
	}
	m.entries[key] = value
	return true, nil
}

func (m *memoryCache) Del(_ context.Context, key string) error {
	delete(m.entries, key)
	return nil
}

func (m *memoryCache) Close() error { return nil }

func newService(t *testing.T, provider cache.Provider) (*TrustService, *history.MemoryStore) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	cfg := &config.Config{}
	cfg.Monitor.PollInterval = 5 * time.Minute
	cfg.Weights = config.WeightsConfig{DriftModerate: 15, DriftHigh: 30, AccuracyFactor: 25, BiasFactor: 20, OverrideFactor: 10}
	cfg.Thresholds = config.ThresholdsConfig{
		AccuracyDropCritical: 0.10, BiasCritical: 0.30, DailyCostLimitUSD: 100,
		HallucinationLimit: 0.05, LatencyLimitMs: 5000, SystemUsagePercent: 80,
	}

	store := history.NewMemoryStore()
	dispatcher := alert.NewDispatcher(logger, alert.NewMemoryCooldownStore(), 5*time.Minute,
		dropMailer{}, nil, alert.Recipients{Email: []string{"ops@example.com"}})
	registry, err := playbook.NewRegistry("", logger)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	monitor := engine.NewMonitor(logger, &staticSource{}, store, registry, dispatcher, cfg)
	miner := patterns.NewMiner(logger, store)
	return NewTrustService(logger, monitor, store, miner, provider), store
}

func TestCurrentTrustBeforeFirstTick(t *testing.T) {
	svc, _ := newService(t, nil)

	status, err := svc.CurrentTrust(context.Background())
	if err != nil {
		t.Fatalf("CurrentTrust: %v", err)
	}
	if !status.Stale {
		t.Error("status should be stale before the first tick")
	}
	// Process start begins fully autonomous; no snapshot has been scored
	// against it yet.
	if status.AutonomyLevel != models.AutonomyFull {
		t.Errorf("pre-tick level = %q, want starting fully_autonomous", status.AutonomyLevel)
	}
	if status.Score != 100 {
		t.Errorf("pre-tick score = %d, want 100", status.Score)
	}
	if status.LastTickAt != nil {
		t.Errorf("pre-tick last_tick_at = %v, want absent", status.LastTickAt)
	}
	if status.ComputedAt != nil {
		t.Errorf("pre-tick computed_at = %v, want absent", status.ComputedAt)
	}
}

func TestCurrentTrustFallsBackToHistory(t *testing.T) {
	svc, store := newService(t, nil)
	ctx := context.Background()

	record := models.TrustScoreRecord{
		Score:         72,
		ComputedAt:    time.Now().UTC().Add(-time.Minute),
		AutonomyLevel: models.AutonomyHumanOnLoop,
	}
	if err := store.AppendScore(ctx, record); err != nil {
		t.Fatal(err)
	}

	status, err := svc.CurrentTrust(ctx)
	if err != nil {
		t.Fatalf("CurrentTrust: %v", err)
	}
	if status.Score != 72 || status.AutonomyLevel != models.AutonomyHumanOnLoop {
		t.Errorf("status = %d/%s, want persisted 72/human_on_loop", status.Score, status.AutonomyLevel)
	}
	// History cannot vouch for pipeline liveness.
	if !status.Stale {
		t.Error("history fallback should still report stale")
	}
}

func TestSimulateThenQuery(t *testing.T) {
	svc, _ := newService(t, nil)
	ctx := context.Background()

	result, err := svc.Simulate(ctx, models.MetricSnapshot{
		DriftSeverity: models.DriftHigh,
		DriftPSI:      0.45,
	})
	if err != nil {
		t.Fatalf("Simulate: %v", err)
	}
	if !result.Record.Simulated {
		t.Error("simulate should flag the record")
	}

	incidents, err := svc.Incidents(ctx, models.IncidentActive, 10)
	if err != nil {
		t.Fatalf("Incidents: %v", err)
	}
	if len(incidents) != 1 {
		t.Fatalf("got %d incidents, want 1", len(incidents))
	}

	mined, err := svc.Patterns(ctx)
	if err != nil {
		t.Fatalf("Patterns: %v", err)
	}
	if len(mined) != 1 || mined[0].AlertKey != "ml_drift" {
		t.Errorf("patterns = %+v, want single ml_drift", mined)
	}

	executions, err := svc.Executions(ctx, 5)
	if err != nil {
		t.Fatalf("Executions: %v", err)
	}
	if len(executions) != 1 {
		t.Errorf("got %d executions, want 1", len(executions))
	}
}

func TestPatternsCachedAndInvalidated(t *testing.T) {
	svc, store := newService(t, newMemoryCache())
	ctx := context.Background()

	if err := store.AppendIncident(ctx, models.Incident{
		ID: "inc-1", Type: models.IncidentDriftDetected,
		Severity: models.SeverityCritical, Status: models.IncidentActive,
	}); err != nil {
		t.Fatal(err)
	}

	mined, err := svc.Patterns(ctx)
	if err != nil {
		t.Fatalf("Patterns: %v", err)
	}
	if len(mined) != 1 {
		t.Fatalf("got %d patterns, want 1", len(mined))
	}

	// A second incident lands while the mining result is cached.
	if err := store.AppendIncident(ctx, models.Incident{
		ID: "inc-2", Type: models.IncidentBiasDetected,
		Severity: models.SeverityWarning, Status: models.IncidentActive,
	}); err != nil {
		t.Fatal(err)
	}
	mined, err = svc.Patterns(ctx)
	if err != nil {
		t.Fatalf("Patterns: %v", err)
	}
	if len(mined) != 1 {
		t.Errorf("cached result should not reflect the new incident yet, got %d patterns", len(mined))
	}

	// Simulation mutates the incident history and drops the cache entry.
	if _, err := svc.Simulate(ctx, models.MetricSnapshot{}); err != nil {
		t.Fatalf("Simulate: %v", err)
	}
	mined, err = svc.Patterns(ctx)
	if err != nil {
		t.Fatalf("Patterns: %v", err)
	}
	if len(mined) != 2 {
		t.Errorf("post-invalidation patterns = %d, want 2", len(mined))
	}
}

func TestScoreHistoryDefaultsWindow(t *testing.T) {
	svc, store := newService(t, nil)
	ctx := context.Background()

	old := models.TrustScoreRecord{Score: 90, ComputedAt: time.Now().UTC().Add(-48 * time.Hour)}
	recent := models.TrustScoreRecord{Score: 95, ComputedAt: time.Now().UTC().Add(-time.Hour)}
	if err := store.AppendScore(ctx, old); err != nil {
		t.Fatal(err)
	}
	if err := store.AppendScore(ctx, recent); err != nil {
		t.Fatal(err)
	}

	records, err := svc.ScoreHistory(ctx, 0)
	if err != nil {
		t.Fatalf("ScoreHistory: %v", err)
	}
	if len(records) != 1 || records[0].Score != 95 {
		t.Errorf("default 24h window should exclude the 48h-old record, got %+v", records)
	}
}

func TestIncidentsRejectsUnknownStatus(t *testing.T) {
	svc, _ := newService(t, nil)
	if _, err := svc.Incidents(context.Background(), "pending", 5); err == nil {
		t.Fatal("expected error for unknown status")
	}
}

func TestResolveIncidentValidation(t *testing.T) {
	svc, store := newService(t, nil)
	ctx := context.Background()

	if _, err := svc.ResolveIncident(ctx, "", "notes"); err == nil {
		t.Fatal("expected error for empty id")
	}
	if _, err := svc.ResolveIncident(ctx, "missing", "notes"); err == nil {
		t.Fatal("expected error for unknown id")
	}

	incident := models.Incident{ID: "inc-9", Type: models.IncidentBiasDetected, Status: models.IncidentActive}
	if err := store.AppendIncident(ctx, incident); err != nil {
		t.Fatal(err)
	}
	resolved, err := svc.ResolveIncident(ctx, "inc-9", "false positive")
	if err != nil {
		t.Fatalf("ResolveIncident: %v", err)
	}
	if resolved.Status != models.IncidentResolved || resolved.ResolutionNotes != "false positive" {
		t.Errorf("resolved = %+v", resolved)
	}
}
