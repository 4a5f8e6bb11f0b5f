package history

import (
	"context"
	"sync"
	"time"

	"github.com/governstack/govern-trust/internal/models"
)

// MemoryStore keeps history in process memory. It is the default backend and
// the one used by tests; a restart loses history, which is acceptable for
// single-node demo deployments.
type MemoryStore struct {
	mu         sync.RWMutex
	scores     []models.TrustScoreRecord
	incidents  []models.Incident
	executions []models.PlaybookExecution
	events     []models.GovernanceEvent
}

// NewMemoryStore constructs an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// AppendScore appends a trust score record.
func (s *MemoryStore) AppendScore(_ context.Context, record models.TrustScoreRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scores = append(s.scores, record)
	return nil
}

// AppendIncident appends an incident record.
func (s *MemoryStore) AppendIncident(_ context.Context, incident models.Incident) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.incidents = append(s.incidents, incident)
	return nil
}

// AppendExecution appends a playbook execution record.
func (s *MemoryStore) AppendExecution(_ context.Context, execution models.PlaybookExecution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.executions = append(s.executions, execution)
	return nil
}

// AppendEvent appends a governance event.
func (s *MemoryStore) AppendEvent(_ context.Context, event models.GovernanceEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// LatestScore returns the most recently appended score record.
func (s *MemoryStore) LatestScore(_ context.Context) (models.TrustScoreRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.scores) == 0 {
		return models.TrustScoreRecord{}, ErrNotFound
	}
	return s.scores[len(s.scores)-1], nil
}

// ScoresSince returns score records computed at or after the cutoff, oldest first.
func (s *MemoryStore) ScoresSince(_ context.Context, since time.Time) ([]models.TrustScoreRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.TrustScoreRecord, 0)
	for _, rec := range s.scores {
		if !rec.ComputedAt.Before(since) {
			out = append(out, rec)
		}
	}
	return out, nil
}

// Incidents returns incidents filtered by status, newest first. An empty
// status returns all incidents.
func (s *MemoryStore) Incidents(_ context.Context, status models.IncidentStatus, limit int) ([]models.Incident, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Incident, 0)
	for i := len(s.incidents) - 1; i >= 0; i-- {
		inc := s.incidents[i]
		if status != "" && inc.Status != status {
			continue
		}
		out = append(out, inc)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// Executions returns the last N playbook executions, newest first.
func (s *MemoryStore) Executions(_ context.Context, limit int) ([]models.PlaybookExecution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.PlaybookExecution, 0)
	for i := len(s.executions) - 1; i >= 0; i-- {
		out = append(out, s.executions[i])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// Events returns all governance events, oldest first.
func (s *MemoryStore) Events(_ context.Context) ([]models.GovernanceEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.GovernanceEvent(nil), s.events...), nil
}

// ResolveIncident transitions an incident to resolved. The stored detection
// data is untouched; only status, resolution time and notes change.
func (s *MemoryStore) ResolveIncident(_ context.Context, id, notes string) (models.Incident, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.incidents {
		if s.incidents[i].ID != id {
			continue
		}
		now := time.Now().UTC()
		s.incidents[i].Status = models.IncidentResolved
		s.incidents[i].ResolvedAt = &now
		s.incidents[i].ResolutionNotes = notes
		return s.incidents[i], nil
	}
	return models.Incident{}, ErrNotFound
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error { return nil }
