package repo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/governstack/govern-trust/internal/models"
)

func TestFetchSnapshot(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/monitoring/snapshot" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"timestamp": "2026-08-01T10:00:00Z",
			"drift_severity": "moderate",
			"drift_psi": 0.22,
			"accuracy_drop": 0.03,
			"bias_score": 0.15,
			"override_rate": 0.05,
			"llm": {"cost_usd_24h": 1.2, "hallucination_rate": 0.01, "avg_latency_ms": 900}
		}`))
	}))
	defer server.Close()

	client := NewCollectorClient(server.URL, "/api/v1/monitoring/snapshot", time.Second)
	snapshot, err := client.FetchSnapshot(context.Background())
	if err != nil {
		t.Fatalf("FetchSnapshot returned error: %v", err)
	}

	if snapshot.DriftSeverity != models.DriftModerate {
		t.Errorf("drift severity = %q, want moderate", snapshot.DriftSeverity)
	}
	if snapshot.AccuracyDrop != 0.03 {
		t.Errorf("accuracy drop = %v, want 0.03", snapshot.AccuracyDrop)
	}
	if snapshot.LLM == nil || snapshot.LLM.CostUSD24h != 1.2 {
		t.Errorf("llm metrics not decoded: %+v", snapshot.LLM)
	}
}

func TestFetchSnapshotNormalizesUnknownSeverity(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"drift_severity": "bananas", "accuracy_drop": -4, "bias_score": 7}`))
	}))
	defer server.Close()

	client := NewCollectorClient(server.URL, "/snapshot", time.Second)
	snapshot, err := client.FetchSnapshot(context.Background())
	if err != nil {
		t.Fatalf("FetchSnapshot returned error: %v", err)
	}

	if snapshot.DriftSeverity != models.DriftNone {
		t.Errorf("drift severity = %q, want none", snapshot.DriftSeverity)
	}
	if snapshot.AccuracyDrop != 0 {
		t.Errorf("accuracy drop = %v, want 0", snapshot.AccuracyDrop)
	}
	if snapshot.BiasScore != 1 {
		t.Errorf("bias score = %v, want clamped to 1", snapshot.BiasScore)
	}
	if snapshot.Timestamp.IsZero() {
		t.Error("timestamp should be defaulted, got zero")
	}
}

func TestFetchSnapshotServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewCollectorClient(server.URL, "/snapshot", time.Second)
	if _, err := client.FetchSnapshot(context.Background()); err == nil {
		t.Fatal("expected error for 500 response")
	}
}

func TestFetchSnapshotNoBaseURL(t *testing.T) {
	client := NewCollectorClient("", "/snapshot", time.Second)
	if _, err := client.FetchSnapshot(context.Background()); err == nil {
		t.Fatal("expected error for missing base URL")
	}
}
