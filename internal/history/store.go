// Package history persists score, incident, and playbook records. Writes are
// append-only: no operation removes a record or rewrites its detection data.
// The only permitted mutation is the explicit active→resolved incident
// transition.
package history

import (
	"context"
	"errors"
	"time"

	"github.com/governstack/govern-trust/internal/models"
)

// ErrNotFound signals the requested record does not exist.
var ErrNotFound = errors.New("history: record not found")

// Store abstracts the audit/history recorder.
type Store interface {
	AppendScore(ctx context.Context, record models.TrustScoreRecord) error
	AppendIncident(ctx context.Context, incident models.Incident) error
	AppendExecution(ctx context.Context, execution models.PlaybookExecution) error
	AppendEvent(ctx context.Context, event models.GovernanceEvent) error

	LatestScore(ctx context.Context) (models.TrustScoreRecord, error)
	ScoresSince(ctx context.Context, since time.Time) ([]models.TrustScoreRecord, error)
	Incidents(ctx context.Context, status models.IncidentStatus, limit int) ([]models.Incident, error)
	Executions(ctx context.Context, limit int) ([]models.PlaybookExecution, error)

	ResolveIncident(ctx context.Context, id, notes string) (models.Incident, error)

	Close() error
}
