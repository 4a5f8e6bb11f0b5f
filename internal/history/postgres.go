package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/governstack/govern-trust/internal/models"
)

// PostgresStore persists history in Postgres. Tables are append-only; the
// resolve operation updates incident status columns only.
type PostgresStore struct {
	db *sql.DB
}

const postgresSchema = `
CREATE TABLE IF NOT EXISTS trust_scores (
	id BIGSERIAL PRIMARY KEY,
	score INT NOT NULL,
	computed_at TIMESTAMPTZ NOT NULL,
	autonomy_level TEXT NOT NULL,
	factors JSONB,
	explanation TEXT,
	simulated BOOLEAN NOT NULL DEFAULT FALSE
);
CREATE TABLE IF NOT EXISTS incidents (
	id TEXT PRIMARY KEY,
	type TEXT NOT NULL,
	severity TEXT NOT NULL,
	detected_at TIMESTAMPTZ NOT NULL,
	description TEXT,
	details JSONB,
	status TEXT NOT NULL,
	resolved_at TIMESTAMPTZ,
	resolution_notes TEXT
);
CREATE TABLE IF NOT EXISTS playbook_executions (
	id TEXT PRIMARY KEY,
	incident_id TEXT NOT NULL,
	actions JSONB NOT NULL,
	executed_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS governance_events (
	id BIGSERIAL PRIMARY KEY,
	ts TIMESTAMPTZ NOT NULL,
	previous_level TEXT NOT NULL,
	new_level TEXT NOT NULL,
	trust_score INT NOT NULL,
	score_change INT NOT NULL,
	reason TEXT
);
`

// NewPostgresStore opens the database and ensures the schema exists.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, postgresSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// AppendScore inserts a trust score record.
func (s *PostgresStore) AppendScore(ctx context.Context, record models.TrustScoreRecord) error {
	factors, err := json.Marshal(record.Factors)
	if err != nil {
		return fmt.Errorf("marshal factors: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO trust_scores (score, computed_at, autonomy_level, factors, explanation, simulated)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		record.Score, record.ComputedAt, string(record.AutonomyLevel), factors, record.Explanation, record.Simulated)
	return err
}

// AppendIncident inserts an incident record.
func (s *PostgresStore) AppendIncident(ctx context.Context, incident models.Incident) error {
	details, err := json.Marshal(incident.Details)
	if err != nil {
		return fmt.Errorf("marshal details: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO incidents (id, type, severity, detected_at, description, details, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		incident.ID, string(incident.Type), string(incident.Severity), incident.DetectedAt,
		incident.Description, details, string(incident.Status))
	return err
}

// AppendExecution inserts a playbook execution record.
func (s *PostgresStore) AppendExecution(ctx context.Context, execution models.PlaybookExecution) error {
	actions, err := json.Marshal(execution.Actions)
	if err != nil {
		return fmt.Errorf("marshal actions: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO playbook_executions (id, incident_id, actions, executed_at)
		 VALUES ($1, $2, $3, $4)`,
		execution.ID, execution.IncidentID, actions, execution.ExecutedAt)
	return err
}

// AppendEvent inserts a governance event.
func (s *PostgresStore) AppendEvent(ctx context.Context, event models.GovernanceEvent) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO governance_events (ts, previous_level, new_level, trust_score, score_change, reason)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		event.Timestamp, string(event.PreviousLevel), string(event.NewLevel),
		event.TrustScore, event.ScoreChange, event.Reason)
	return err
}

// LatestScore returns the most recently computed score record.
func (s *PostgresStore) LatestScore(ctx context.Context) (models.TrustScoreRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT score, computed_at, autonomy_level, factors, explanation, simulated
		 FROM trust_scores ORDER BY computed_at DESC, id DESC LIMIT 1`)
	record, err := scanScore(row)
	if err == sql.ErrNoRows {
		return models.TrustScoreRecord{}, ErrNotFound
	}
	return record, err
}

// ScoresSince returns score records computed at or after the cutoff, oldest first.
func (s *PostgresStore) ScoresSince(ctx context.Context, since time.Time) ([]models.TrustScoreRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT score, computed_at, autonomy_level, factors, explanation, simulated
		 FROM trust_scores WHERE computed_at >= $1 ORDER BY computed_at ASC, id ASC`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]models.TrustScoreRecord, 0)
	for rows.Next() {
		record, err := scanScore(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// Incidents returns incidents filtered by status, newest first. A
// non-positive limit returns the full set, matching the in-memory store.
func (s *PostgresStore) Incidents(ctx context.Context, status models.IncidentStatus, limit int) ([]models.Incident, error) {
	query := `SELECT id, type, severity, detected_at, description, details, status, resolved_at, resolution_notes
		 FROM incidents`
	args := []any{}
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, string(status))
	}
	query += ` ORDER BY detected_at DESC`
	if limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d`, len(args)+1)
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	incidents := make([]models.Incident, 0)
	for rows.Next() {
		inc, err := scanIncident(rows)
		if err != nil {
			return nil, err
		}
		incidents = append(incidents, inc)
	}
	return incidents, rows.Err()
}

// Executions returns the last N playbook executions, newest first.
func (s *PostgresStore) Executions(ctx context.Context, limit int) ([]models.PlaybookExecution, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, incident_id, actions, executed_at
		 FROM playbook_executions ORDER BY executed_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	executions := make([]models.PlaybookExecution, 0)
	for rows.Next() {
		var (
			exec    models.PlaybookExecution
			actions []byte
		)
		if err := rows.Scan(&exec.ID, &exec.IncidentID, &actions, &exec.ExecutedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(actions, &exec.Actions); err != nil {
			return nil, fmt.Errorf("unmarshal actions: %w", err)
		}
		executions = append(executions, exec)
	}
	return executions, rows.Err()
}

// ResolveIncident marks an incident resolved.
func (s *PostgresStore) ResolveIncident(ctx context.Context, id, notes string) (models.Incident, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE incidents SET status = $1, resolved_at = $2, resolution_notes = $3 WHERE id = $4`,
		string(models.IncidentResolved), now, notes, id)
	if err != nil {
		return models.Incident{}, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return models.Incident{}, err
	}
	if affected == 0 {
		return models.Incident{}, ErrNotFound
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT id, type, severity, detected_at, description, details, status, resolved_at, resolution_notes
		 FROM incidents WHERE id = $1`, id)
	inc, err := scanIncident(row)
	if err != nil {
		return models.Incident{}, err
	}
	return inc, nil
}

// Close closes the database handle.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIncident(row rowScanner) (models.Incident, error) {
	var (
		inc        models.Incident
		details    []byte
		resolvedAt sql.NullTime
		notes      sql.NullString
	)
	if err := row.Scan(&inc.ID, &inc.Type, &inc.Severity, &inc.DetectedAt,
		&inc.Description, &details, &inc.Status, &resolvedAt, &notes); err != nil {
		return models.Incident{}, err
	}
	if len(details) > 0 {
		if err := json.Unmarshal(details, &inc.Details); err != nil {
			return models.Incident{}, fmt.Errorf("unmarshal details: %w", err)
		}
	}
	if resolvedAt.Valid {
		t := resolvedAt.Time
		inc.ResolvedAt = &t
	}
	inc.ResolutionNotes = notes.String
	return inc, nil
}

func scanScore(row rowScanner) (models.TrustScoreRecord, error) {
	var (
		record  models.TrustScoreRecord
		factors []byte
	)
	if err := row.Scan(&record.Score, &record.ComputedAt, &record.AutonomyLevel,
		&factors, &record.Explanation, &record.Simulated); err != nil {
		return models.TrustScoreRecord{}, err
	}
	if len(factors) > 0 {
		if err := json.Unmarshal(factors, &record.Factors); err != nil {
			return models.TrustScoreRecord{}, fmt.Errorf("unmarshal factors: %w", err)
		}
	}
	return record, nil
}
