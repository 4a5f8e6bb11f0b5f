package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/governstack/govern-trust/internal/alert"
	"github.com/governstack/govern-trust/internal/config"
	"github.com/governstack/govern-trust/internal/engine"
	"github.com/governstack/govern-trust/internal/history"
	"github.com/governstack/govern-trust/internal/models"
	"github.com/governstack/govern-trust/internal/patterns"
	"github.com/governstack/govern-trust/internal/playbook"
	"github.com/governstack/govern-trust/internal/services"
)

type staticSource struct{}

func (staticSource) FetchSnapshot(context.Context) (models.MetricSnapshot, error) {
	return models.MetricSnapshot{DriftSeverity: models.DriftNone}, nil
}

type dropMailer struct{}

func (dropMailer) Send(context.Context, string, string, string) error { return nil }

func newTestMux(t *testing.T) (http.Handler, *history.MemoryStore) {
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
	monitor := engine.NewMonitor(logger, staticSource{}, store, registry, dispatcher, cfg)
	service := services.NewTrustService(logger, monitor, store, patterns.NewMiner(logger, store), nil)
	return NewHandler(logger, service).Routes(), store
}

func doJSON(t *testing.T, mux http.Handler, method, target, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	decoded := map[string]any{}
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &decoded); err != nil {
			t.Fatalf("%s %s: invalid JSON response: %v", method, target, err)
		}
	}
	return rec, decoded
}

func TestTrustEndpointBeforeFirstTick(t *testing.T) {
	mux, _ := newTestMux(t)

	rec, body := doJSON(t, mux, http.MethodGet, "/api/v1/trust", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if body["stale"] != true {
		t.Error("pre-tick trust should report stale")
	}
	if body["autonomy_level"] != string(models.AutonomyFull) {
		t.Errorf("autonomy_level = %v, want starting fully_autonomous", body["autonomy_level"])
	}
	if body["score"] != float64(100) {
		t.Errorf("score = %v, want 100", body["score"])
	}
	if _, present := body["last_tick_at"]; present {
		t.Error("last_tick_at should be omitted before the first tick")
	}
	if _, present := body["computed_at"]; present {
		t.Error("computed_at should be omitted before the first tick")
	}
}

func TestSimulateResetRoundTrip(t *testing.T) {
	mux, _ := newTestMux(t)

	rec, body := doJSON(t, mux, http.MethodPost, "/api/v1/simulate",
		`{"drift_severity":"high","drift_psi":0.45}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("simulate status = %d: %v", rec.Code, body)
	}
	record := body["record"].(map[string]any)
	if record["simulated"] != true {
		t.Error("simulated record should be flagged")
	}

	rec, body = doJSON(t, mux, http.MethodGet, "/api/v1/incidents?status=active", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("incidents status = %d", rec.Code)
	}
	incidents := body["incidents"].([]any)
	if len(incidents) != 1 {
		t.Fatalf("got %d incidents, want 1", len(incidents))
	}

	rec, _ = doJSON(t, mux, http.MethodPost, "/api/v1/reset", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("reset status = %d", rec.Code)
	}

	rec, body = doJSON(t, mux, http.MethodGet, "/api/v1/incidents?status=active", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("incidents status = %d", rec.Code)
	}
	if incidents := body["incidents"].([]any); len(incidents) != 0 {
		t.Errorf("reset should clear simulated incidents, %d remain", len(incidents))
	}

	rec, body = doJSON(t, mux, http.MethodGet, "/api/v1/trust", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("trust status = %d", rec.Code)
	}
	if body["stale"] != false {
		t.Error("reset runs a fresh tick, trust should not be stale")
	}
}

func TestSimulateRejectsBadPayload(t *testing.T) {
	mux, _ := newTestMux(t)

	rec, _ := doJSON(t, mux, http.MethodPost, "/api/v1/simulate", `{not json`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("malformed body status = %d, want 400", rec.Code)
	}

	rec, _ = doJSON(t, mux, http.MethodPost, "/api/v1/simulate", `{"drift_severity":"catastrophic"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown severity status = %d, want 400", rec.Code)
	}
}

func TestTrustHistoryWindow(t *testing.T) {
	mux, store := newTestMux(t)
	ctx := context.Background()

	if err := store.AppendScore(ctx, models.TrustScoreRecord{
		Score: 80, ComputedAt: time.Now().UTC().Add(-2 * time.Hour),
	}); err != nil {
		t.Fatal(err)
	}
	if err := store.AppendScore(ctx, models.TrustScoreRecord{
		Score: 90, ComputedAt: time.Now().UTC().Add(-50 * time.Hour),
	}); err != nil {
		t.Fatal(err)
	}

	rec, body := doJSON(t, mux, http.MethodGet, "/api/v1/trust/history?hours=24", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if records := body["records"].([]any); len(records) != 1 {
		t.Errorf("got %d records in 24h window, want 1", len(records))
	}

	// Malformed hours falls back to the default window rather than erroring.
	rec, body = doJSON(t, mux, http.MethodGet, "/api/v1/trust/history?hours=banana", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if body["hours"] != float64(24) {
		t.Errorf("hours = %v, want default 24", body["hours"])
	}

	// An explicit since cutoff reaches past the trailing window.
	cutoff := time.Now().UTC().Add(-72 * time.Hour).Format(time.RFC3339)
	rec, body = doJSON(t, mux, http.MethodGet, "/api/v1/trust/history?since="+url.QueryEscape(cutoff), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if records := body["records"].([]any); len(records) != 2 {
		t.Errorf("got %d records since 72h cutoff, want 2", len(records))
	}

	// A since value that is not RFC3339 is a client error.
	rec, _ = doJSON(t, mux, http.MethodGet, "/api/v1/trust/history?since=yesterday", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d for malformed since, want 400", rec.Code)
	}
}

func TestResolveIncidentEndpoint(t *testing.T) {
	mux, store := newTestMux(t)
	ctx := context.Background()

	if err := store.AppendIncident(ctx, models.Incident{
		ID: "inc-42", Type: models.IncidentBiasDetected, Status: models.IncidentActive,
	}); err != nil {
		t.Fatal(err)
	}

	rec, body := doJSON(t, mux, http.MethodPost, "/api/v1/incidents/inc-42/resolve", `{"notes":"retrained"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %v", rec.Code, body)
	}
	if body["status"] != string(models.IncidentResolved) {
		t.Errorf("status = %v, want resolved", body["status"])
	}
	if body["resolution_notes"] != "retrained" {
		t.Errorf("notes = %v", body["resolution_notes"])
	}

	rec, _ = doJSON(t, mux, http.MethodPost, "/api/v1/incidents/missing/resolve", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown incident status = %d, want 404", rec.Code)
	}
}

func TestIncidentsRejectsUnknownStatus(t *testing.T) {
	mux, _ := newTestMux(t)
	rec, _ := doJSON(t, mux, http.MethodGet, "/api/v1/incidents?status=pending", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestPatternsAndExecutionsEndpoints(t *testing.T) {
	mux, _ := newTestMux(t)

	if rec, _ := doJSON(t, mux, http.MethodPost, "/api/v1/simulate", `{"drift_severity":"high"}`); rec.Code != http.StatusOK {
		t.Fatalf("simulate status = %d", rec.Code)
	}

	rec, body := doJSON(t, mux, http.MethodGet, "/api/v1/patterns", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("patterns status = %d", rec.Code)
	}
	mined := body["patterns"].([]any)
	if len(mined) != 1 {
		t.Fatalf("got %d patterns, want 1", len(mined))
	}
	if mined[0].(map[string]any)["alert_key"] != "ml_drift" {
		t.Errorf("pattern = %v, want ml_drift", mined[0])
	}

	rec, body = doJSON(t, mux, http.MethodGet, "/api/v1/executions?limit=5", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("executions status = %d", rec.Code)
	}
	if executions := body["executions"].([]any); len(executions) != 1 {
		t.Errorf("got %d executions, want 1", len(executions))
	}
}

func TestHealthz(t *testing.T) {
	mux, _ := newTestMux(t)
	rec, body := doJSON(t, mux, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if body["status"] != "ok" {
		t.Errorf("body = %v", body)
	}
}
