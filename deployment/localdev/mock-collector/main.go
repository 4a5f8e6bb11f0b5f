package main

import (
	"encoding/json"
	"flag"
	"log"
	"math/rand"
	"net/http"
	"sync/atomic"
	"time"
)

type llmMetrics struct {
	CostUSD24h        float64 `json:"cost_usd_24h"`
	HallucinationRate float64 `json:"hallucination_rate"`
	AvgLatencyMs      float64 `json:"avg_latency_ms"`
}

type systemMetrics struct {
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
	DiskPercent   float64 `json:"disk_percent"`
}

type snapshot struct {
	Timestamp     time.Time      `json:"timestamp"`
	DriftSeverity string         `json:"drift_severity"`
	DriftPSI      float64        `json:"drift_psi"`
	AccuracyDrop  float64        `json:"accuracy_drop"`
	BiasScore     float64        `json:"bias_score"`
	OverrideRate  float64        `json:"override_rate"`
	LLM           *llmMetrics    `json:"llm,omitempty"`
	System        *systemMetrics `json:"system,omitempty"`
}

// scenario selects which canned snapshot the mock serves; "degrading" walks
// from healthy to high drift over successive requests.
var scenarios = map[string]func(tick int) snapshot{
	"healthy": func(int) snapshot {
		return snapshot{
			DriftSeverity: "none",
			DriftPSI:      0.02 + rand.Float64()*0.03,
			AccuracyDrop:  0.01,
			BiasScore:     0.05,
			OverrideRate:  0.02,
			System:        &systemMetrics{CPUPercent: 35, MemoryPercent: 48, DiskPercent: 52},
		}
	},
	"drifting": func(int) snapshot {
		return snapshot{
			DriftSeverity: "high",
			DriftPSI:      0.41,
			AccuracyDrop:  0.12,
			BiasScore:     0.18,
			OverrideRate:  0.25,
			System:        &systemMetrics{CPUPercent: 55, MemoryPercent: 60, DiskPercent: 52},
		}
	},
	"llm-trouble": func(int) snapshot {
		return snapshot{
			DriftSeverity: "none",
			AccuracyDrop:  0.02,
			LLM:           &llmMetrics{CostUSD24h: 340, HallucinationRate: 0.09, AvgLatencyMs: 7200},
		}
	},
	"degrading": func(tick int) snapshot {
		severity := "none"
		switch {
		case tick > 6:
			severity = "high"
		case tick > 3:
			severity = "moderate"
		}
		return snapshot{
			DriftSeverity: severity,
			DriftPSI:      0.05 * float64(tick),
			AccuracyDrop:  0.015 * float64(tick),
			OverrideRate:  0.03 * float64(tick),
		}
	},
}

func main() {
	var addr, scenario string
	flag.StringVar(&addr, "addr", ":9200", "Listen address")
	flag.StringVar(&scenario, "scenario", "healthy", "Snapshot scenario (healthy|drifting|llm-trouble|degrading)")
	flag.Parse()

	build, ok := scenarios[scenario]
	if !ok {
		log.Fatalf("unknown scenario %q", scenario)
	}

	var tick atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/api/v1/metrics/snapshot", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		payload := build(int(tick.Add(1)))
		payload.Timestamp = time.Now().UTC()
		writeJSON(w, payload)
	})

	logger := log.New(log.Writer(), "collector-mock ", log.LstdFlags|log.Lmicroseconds)
	srv := &http.Server{
		Addr:    addr,
		Handler: logRequests(logger, mux),
	}

	logger.Printf("listening on %s (scenario=%s)", addr, scenario)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("server error: %v", err)
	}
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("encode error: %v", err)
	}
}

func logRequests(logger *log.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		logger.Printf("%s %s %d %s", r.Method, r.URL.Path, rw.status, time.Since(start))
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}
