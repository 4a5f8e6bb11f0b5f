// Package services exposes the governance engine to transports. The facade
// owns read-path latency tracking and shields handlers from storage and
// monitor internals.
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/governstack/govern-trust/internal/cache"
	"github.com/governstack/govern-trust/internal/engine"
	"github.com/governstack/govern-trust/internal/history"
	"github.com/governstack/govern-trust/internal/models"
	"github.com/governstack/govern-trust/internal/patterns"
	"github.com/governstack/govern-trust/internal/utils"
)

// TrustStatus is the query-surface view of the engine's current state.
type TrustStatus struct {
	Score           int                  `json:"score"`
	AutonomyLevel   models.AutonomyLevel `json:"autonomy_level"`
	Explanation     string               `json:"explanation,omitempty"`
	Factors         map[string]float64   `json:"contributing_factors,omitempty"`
	ComputedAt      *time.Time           `json:"computed_at,omitempty"`
	LastTickAt      *time.Time           `json:"last_tick_at,omitempty"`
	Stale           bool                 `json:"stale"`
	ShadowActive    bool                 `json:"shadow_model_active"`
	AutonomyCeiling models.AutonomyLevel `json:"autonomy_ceiling,omitempty"`
}

const (
	patternsCacheKey = "patterns:summary"
	patternsTTL      = 30 * time.Second
)

// TrustService is the facade between transports and the engine.
type TrustService struct {
	logger    *slog.Logger
	monitor   *engine.Monitor
	store     history.Store
	miner     *patterns.Miner
	cache     cache.Provider
	latencies *utils.LatencyTracker
}

func NewTrustService(logger *slog.Logger, monitor *engine.Monitor, store history.Store, miner *patterns.Miner, cacheProvider cache.Provider) *TrustService {
	if logger == nil {
		logger = slog.Default()
	}
	if cacheProvider == nil {
		cacheProvider = cache.NoopProvider{}
	}
	return &TrustService{
		logger:    logger,
		monitor:   monitor,
		store:     store,
		miner:     miner,
		cache:     cacheProvider,
		latencies: utils.NewLatencyTracker(1024),
	}
}

// CurrentTrust returns the latest score with staleness metadata. Before the
// first successful tick no snapshot has been scored, so the status reports
// the fully_autonomous starting level with stale=true.
func (s *TrustService) CurrentTrust(ctx context.Context) (TrustStatus, error) {
	defer s.observe(time.Now())

	monitorStatus := s.monitor.Status()
	status := TrustStatus{
		Score:           100,
		AutonomyLevel:   models.AutonomyFull,
		Stale:           monitorStatus.Stale,
		ShadowActive:    monitorStatus.ShadowActive,
		AutonomyCeiling: monitorStatus.AutonomyCeiling,
	}
	if !monitorStatus.LastTickAt.IsZero() {
		tick := monitorStatus.LastTickAt
		status.LastTickAt = &tick
	}
	if monitorStatus.Current != nil {
		record := *monitorStatus.Current
		status.Score = record.Score
		status.AutonomyLevel = record.AutonomyLevel
		status.Explanation = record.Explanation
		status.Factors = record.Factors
		status.ComputedAt = &record.ComputedAt
	} else if record, err := s.store.LatestScore(ctx); err == nil {
		// Process restart: history outlives the monitor's in-memory state.
		status.Score = record.Score
		status.AutonomyLevel = record.AutonomyLevel
		status.Explanation = record.Explanation
		status.Factors = record.Factors
		status.ComputedAt = &record.ComputedAt
	}
	return status, nil
}

// ScoreHistory returns score records from the trailing window, oldest
// first.
func (s *TrustService) ScoreHistory(ctx context.Context, hours int) ([]models.TrustScoreRecord, error) {
	if hours <= 0 {
		hours = 24
	}
	return s.ScoreHistorySince(ctx, time.Now().UTC().Add(-time.Duration(hours)*time.Hour))
}

// ScoreHistorySince returns score records computed at or after the cutoff,
// oldest first.
func (s *TrustService) ScoreHistorySince(ctx context.Context, since time.Time) ([]models.TrustScoreRecord, error) {
	defer s.observe(time.Now())
	records, err := s.store.ScoresSince(ctx, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("score history: %w", err)
	}
	return records, nil
}

// Incidents lists incidents newest first, optionally filtered by status.
func (s *TrustService) Incidents(ctx context.Context, status models.IncidentStatus, limit int) ([]models.Incident, error) {
	defer s.observe(time.Now())
	if status != "" && status != models.IncidentActive && status != models.IncidentResolved {
		return nil, fmt.Errorf("unknown incident status %q", status)
	}
	incidents, err := s.store.Incidents(ctx, status, limit)
	if err != nil {
		return nil, fmt.Errorf("list incidents: %w", err)
	}
	return incidents, nil
}

// Executions lists the most recent playbook executions, newest first.
func (s *TrustService) Executions(ctx context.Context, limit int) ([]models.PlaybookExecution, error) {
	defer s.observe(time.Now())
	executions, err := s.store.Executions(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list executions: %w", err)
	}
	return executions, nil
}

// Patterns mines recurrence summaries from the incident history. Mining
// walks the full history on every call, so results are served from the
// cache provider for a short TTL.
func (s *TrustService) Patterns(ctx context.Context) ([]models.IncidentPattern, error) {
	defer s.observe(time.Now())
	if data, err := s.cache.Get(ctx, patternsCacheKey); err == nil {
		var cached []models.IncidentPattern
		if err := json.Unmarshal(data, &cached); err == nil {
			return cached, nil
		}
		s.logger.Warn("discarding undecodable cached patterns", "key", patternsCacheKey)
	}
	mined, err := s.miner.Mine(ctx)
	if err != nil {
		return nil, fmt.Errorf("mine patterns: %w", err)
	}
	if data, err := json.Marshal(mined); err == nil {
		if err := s.cache.Set(ctx, patternsCacheKey, data, patternsTTL); err != nil {
			s.logger.Warn("pattern cache write failed", "error", err)
		}
	}
	return mined, nil
}

// Simulate injects a synthetic snapshot through the pipeline.
func (s *TrustService) Simulate(ctx context.Context, snapshot models.MetricSnapshot) (engine.TickResult, error) {
	s.logger.Info("simulated snapshot injected", "drift", snapshot.DriftSeverity)
	s.invalidatePatterns(ctx)
	return s.monitor.Simulate(ctx, snapshot)
}

// Reset clears simulated state and forces a fresh tick.
func (s *TrustService) Reset(ctx context.Context) (engine.TickResult, error) {
	s.logger.Info("governance reset requested")
	s.invalidatePatterns(ctx)
	return s.monitor.Reset(ctx)
}

// ResolveIncident transitions an active incident to resolved.
func (s *TrustService) ResolveIncident(ctx context.Context, id, notes string) (models.Incident, error) {
	if id == "" {
		return models.Incident{}, &utils.AppError{Op: "ResolveIncident", Msg: "incident id is required"}
	}
	incident, err := s.store.ResolveIncident(ctx, id, notes)
	if err != nil {
		return models.Incident{}, err
	}
	s.logger.Info("incident resolved", "incident_id", id)
	return incident, nil
}

// LatencyP95 reports the p95 over recent read-path calls.
func (s *TrustService) LatencyP95() time.Duration {
	return s.latencies.Percentile(95)
}

// invalidatePatterns drops the cached mining result after a command that
// changes the incident history.
func (s *TrustService) invalidatePatterns(ctx context.Context) {
	if err := s.cache.Del(ctx, patternsCacheKey); err != nil {
		s.logger.Warn("pattern cache invalidation failed", "error", err)
	}
}

func (s *TrustService) observe(start time.Time) {
	s.latencies.Observe(time.Since(start))
	if count := s.latencies.Count(); count >= 100 && count%100 == 0 {
		s.logger.Debug("query latency", "p95", s.latencies.Percentile(95), "samples", count)
	}
}
