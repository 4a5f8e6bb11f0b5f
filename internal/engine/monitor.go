package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/governstack/govern-trust/internal/config"
	"github.com/governstack/govern-trust/internal/history"
	"github.com/governstack/govern-trust/internal/metrics"
	"github.com/governstack/govern-trust/internal/models"
	"github.com/governstack/govern-trust/internal/playbook"
)

// SnapshotSource supplies metric snapshots for the monitoring loop.
type SnapshotSource interface {
	FetchSnapshot(ctx context.Context) (models.MetricSnapshot, error)
}

// Status is the monitor's externally visible state. It is an in-process
// view; the query surface maps it onto its own wire types.
type Status struct {
	Current         *models.TrustScoreRecord
	LastTickAt      time.Time
	Stale           bool
	ShadowActive    bool
	AutonomyCeiling models.AutonomyLevel
}

// Monitor drives the governance cycle: fetch a snapshot, score it, classify
// autonomy, detect incidents, and run their playbooks. Every error is
// contained within its tick; the loop always proceeds to the next interval.
//
// Monitor also implements playbook.Governor, so remediation actions clamp
// the autonomy it reports.
type Monitor struct {
	logger     *slog.Logger
	source     SnapshotSource
	store      history.Store
	executor   *playbook.Executor
	weights    config.WeightsConfig
	thresholds config.ThresholdsConfig
	interval   time.Duration

	mu           sync.Mutex
	lastRecord   *models.TrustScoreRecord
	lastLevel    models.AutonomyLevel
	lastTickAt   time.Time
	ceiling      models.AutonomyLevel // empty means no clamp
	shadowActive bool
}

// NewMonitor wires the governance loop. The playbook executor is built here
// so its autonomy actions act on this monitor's state.
func NewMonitor(logger *slog.Logger, source SnapshotSource, store history.Store,
	registry *playbook.Registry, notifier playbook.Notifier, cfg *config.Config) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Monitor{
		logger:     logger,
		source:     source,
		store:      store,
		weights:    cfg.Weights,
		thresholds: cfg.Thresholds,
		interval:   cfg.Monitor.PollInterval,
	}
	m.executor = playbook.NewExecutor(logger, registry, notifier, m)
	return m
}

// Run drives the periodic loop until ctx is cancelled. The first tick fires
// immediately so a fresh process reports a score without waiting a full
// interval.
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.logger.Info("monitor loop started", "interval", m.interval)
	m.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("monitor loop stopped")
			return ctx.Err()
		case <-ticker.C:
			m.tick(ctx)
		}
	}
}

func (m *Monitor) tick(ctx context.Context) {
	start := time.Now()

	snapshot, err := m.source.FetchSnapshot(ctx)
	if err != nil {
		metrics.ObserveTick(time.Since(start), metrics.OutcomeSkipped)
		m.logger.Warn("tick skipped: collector unavailable", "error", err)
		return
	}

	if _, err := m.process(ctx, snapshot); err != nil {
		metrics.ObserveTick(time.Since(start), metrics.OutcomeError)
		m.logger.Error("tick failed", "error", err)
		return
	}

	m.mu.Lock()
	m.lastTickAt = time.Now().UTC()
	m.mu.Unlock()
	metrics.ObserveTick(time.Since(start), metrics.OutcomeSuccess)
}

// TickResult is the outcome of one processed snapshot.
type TickResult struct {
	Record     models.TrustScoreRecord    `json:"record"`
	Incidents  []models.Incident          `json:"incidents"`
	Executions []models.PlaybookExecution `json:"executions"`
}

// process runs the full pipeline for one snapshot. It is the shared path
// for real ticks and simulated injections.
func (m *Monitor) process(ctx context.Context, snapshot models.MetricSnapshot) (TickResult, error) {
	record := ComputeScore(snapshot, m.weights)
	incidents := Detect(snapshot, m.thresholds)

	// Incidents are on record before remediation starts so playbook
	// failures never lose the detection.
	for _, incident := range incidents {
		if err := m.store.AppendIncident(ctx, incident); err != nil {
			return TickResult{}, fmt.Errorf("append incident: %w", err)
		}
		metrics.ObserveIncident(incident.Type, incident.Severity)
		m.logger.Warn("incident detected",
			"incident_id", incident.ID, "type", incident.Type,
			"severity", incident.Severity, "description", incident.Description)
	}

	executions := m.runPlaybooks(ctx, incidents)
	for _, execution := range executions {
		if err := m.store.AppendExecution(ctx, execution); err != nil {
			return TickResult{}, fmt.Errorf("append execution: %w", err)
		}
	}

	// Playbooks may have clamped autonomy during this tick; the recorded
	// level is the effective one.
	record = m.applyCeiling(record)

	if err := m.store.AppendScore(ctx, record); err != nil {
		return TickResult{}, fmt.Errorf("append score: %w", err)
	}
	metrics.SetTrustState(record.Score, record.AutonomyLevel)

	if err := m.noteAutonomyChange(ctx, record); err != nil {
		return TickResult{}, err
	}

	m.mu.Lock()
	m.lastRecord = &record
	m.mu.Unlock()

	m.logger.Info("tick complete",
		"score", record.Score, "level", record.AutonomyLevel,
		"incidents", len(incidents), "simulated", record.Simulated)

	return TickResult{Record: record, Incidents: incidents, Executions: executions}, nil
}

// runPlaybooks executes each incident's plan concurrently. Executor calls
// never return errors; failed actions are recorded inside the execution.
func (m *Monitor) runPlaybooks(ctx context.Context, incidents []models.Incident) []models.PlaybookExecution {
	if len(incidents) == 0 {
		return nil
	}
	executions := make([]models.PlaybookExecution, len(incidents))
	group, groupCtx := errgroup.WithContext(ctx)
	for i, incident := range incidents {
		i, incident := i, incident
		group.Go(func() error {
			executions[i] = m.executor.Execute(groupCtx, incident)
			return nil
		})
	}
	_ = group.Wait()
	return executions
}

func (m *Monitor) applyCeiling(record models.TrustScoreRecord) models.TrustScoreRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ceiling != "" && record.AutonomyLevel.Rank() < m.ceiling.Rank() {
		record.AutonomyLevel = m.ceiling
		record.Explanation += " Autonomy is capped by an active remediation policy."
	}
	return record
}

func (m *Monitor) noteAutonomyChange(ctx context.Context, record models.TrustScoreRecord) error {
	m.mu.Lock()
	previous := m.lastLevel
	previousScore := 0
	if m.lastRecord != nil {
		previousScore = m.lastRecord.Score
	}
	m.lastLevel = record.AutonomyLevel
	m.mu.Unlock()

	if previous == "" || previous == record.AutonomyLevel {
		return nil
	}

	event := models.GovernanceEvent{
		Timestamp:     record.ComputedAt,
		PreviousLevel: previous,
		NewLevel:      record.AutonomyLevel,
		TrustScore:    record.Score,
		ScoreChange:   record.Score - previousScore,
		Reason:        record.Explanation,
	}
	if err := m.store.AppendEvent(ctx, event); err != nil {
		return fmt.Errorf("append governance event: %w", err)
	}
	m.logger.Info("autonomy level changed",
		"previous", previous, "new", record.AutonomyLevel, "score", record.Score)
	return nil
}

// Simulate injects a synthetic snapshot through the full pipeline,
// bypassing the collector. Records it produces are flagged simulated.
// Simulated runs do not advance the staleness clock.
func (m *Monitor) Simulate(ctx context.Context, snapshot models.MetricSnapshot) (TickResult, error) {
	snapshot.Simulated = true
	result, err := m.process(ctx, snapshot)
	if err != nil {
		return TickResult{}, err
	}
	return result, nil
}

// Reset resolves any still-active simulated incidents, lifts remediation
// clamps, and forces a fresh collector tick.
func (m *Monitor) Reset(ctx context.Context) (TickResult, error) {
	active, err := m.store.Incidents(ctx, models.IncidentActive, 0)
	if err != nil {
		return TickResult{}, fmt.Errorf("list active incidents: %w", err)
	}
	for _, incident := range active {
		if simulated, _ := incident.Details["simulated"].(bool); !simulated {
			continue
		}
		if _, err := m.store.ResolveIncident(ctx, incident.ID, "cleared by reset"); err != nil {
			return TickResult{}, fmt.Errorf("resolve simulated incident %s: %w", incident.ID, err)
		}
	}

	m.mu.Lock()
	m.ceiling = ""
	m.shadowActive = false
	m.mu.Unlock()
	m.logger.Info("governance state reset", "resolved_simulated", len(active))

	snapshot, err := m.source.FetchSnapshot(ctx)
	if err != nil {
		return TickResult{}, fmt.Errorf("fetch snapshot: %w", err)
	}
	result, err := m.process(ctx, snapshot)
	if err != nil {
		return TickResult{}, err
	}

	m.mu.Lock()
	m.lastTickAt = time.Now().UTC()
	m.mu.Unlock()
	return result, nil
}

// Status reports the last computed record and pipeline staleness. Data is
// stale when the last successful collector tick is more than two intervals
// old.
func (m *Monitor) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	status := Status{
		Current:         m.lastRecord,
		LastTickAt:      m.lastTickAt,
		ShadowActive:    m.shadowActive,
		AutonomyCeiling: m.ceiling,
	}
	status.Stale = m.lastTickAt.IsZero() || nowUTC().Sub(m.lastTickAt) > 2*m.interval
	return status
}

// ClampAutonomy implements playbook.Governor. The ceiling is sticky until
// Reset and can only tighten, never loosen.
func (m *Monitor) ClampAutonomy(_ context.Context, ceiling models.AutonomyLevel) (models.AutonomyLevel, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ceiling == "" || ceiling.Rank() > m.ceiling.Rank() {
		m.ceiling = ceiling
	}

	effective := m.ceiling
	changed := false
	if m.lastRecord != nil && m.lastRecord.AutonomyLevel.Rank() > effective.Rank() {
		effective = m.lastRecord.AutonomyLevel
	}
	if m.lastLevel == "" || m.lastLevel.Rank() < effective.Rank() {
		changed = true
	}
	return effective, changed, nil
}

// ActivateShadowModel implements playbook.Governor.
func (m *Monitor) ActivateShadowModel(_ context.Context, incident models.Incident) error {
	m.mu.Lock()
	already := m.shadowActive
	m.shadowActive = true
	m.mu.Unlock()
	if !already {
		m.logger.Warn("shadow model activated", "incident_id", incident.ID)
	}
	return nil
}

// FlagReview implements playbook.Governor by recording the review request
// as a governance event.
func (m *Monitor) FlagReview(ctx context.Context, track string, incident models.Incident) error {
	m.mu.Lock()
	level := m.lastLevel
	score := 0
	if m.lastRecord != nil {
		score = m.lastRecord.Score
	}
	m.mu.Unlock()

	event := models.GovernanceEvent{
		Timestamp:     time.Now().UTC(),
		PreviousLevel: level,
		NewLevel:      level,
		TrustScore:    score,
		Reason:        fmt.Sprintf("incident %s flagged for %s review: %s", incident.ID, track, incident.Description),
	}
	return m.store.AppendEvent(ctx, event)
}
