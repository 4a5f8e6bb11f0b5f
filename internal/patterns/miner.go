// Package patterns mines recurrence summaries from incident history.
package patterns

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/governstack/govern-trust/internal/models"
)

// IncidentSource supplies the incident history to mine. The zero status and
// limit select every incident regardless of lifecycle state.
type IncidentSource interface {
	Incidents(ctx context.Context, status models.IncidentStatus, limit int) ([]models.Incident, error)
}

// Miner aggregates incidents into per-alert-key recurrence patterns.
type Miner struct {
	source IncidentSource
	logger *slog.Logger
}

func NewMiner(logger *slog.Logger, source IncidentSource) *Miner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Miner{source: source, logger: logger}
}

// Mine aggregates the full incident history by alert key and returns
// patterns sorted by prevalence, most frequent first. An empty history
// yields an empty result, not an error.
func (m *Miner) Mine(ctx context.Context) ([]models.IncidentPattern, error) {
	incidents, err := m.source.Incidents(ctx, "", 0)
	if err != nil {
		return nil, err
	}
	if len(incidents) == 0 {
		return []models.IncidentPattern{}, nil
	}

	aggregates := make(map[string]*keyAggregate)
	for _, incident := range incidents {
		key := incident.AlertKey()
		agg := aggregates[key]
		if agg == nil {
			agg = &keyAggregate{
				incidentType: incident.Type,
				firstSeen:    incident.DetectedAt,
				lastSeen:     incident.DetectedAt,
				severities:   make(map[models.Severity]int),
			}
			aggregates[key] = agg
		}
		agg.count++
		agg.severities[incident.Severity]++
		if incident.DetectedAt.Before(agg.firstSeen) {
			agg.firstSeen = incident.DetectedAt
		}
		if incident.DetectedAt.After(agg.lastSeen) {
			agg.lastSeen = incident.DetectedAt
		}
	}

	mined := make([]models.IncidentPattern, 0, len(aggregates))
	for key, agg := range aggregates {
		mined = append(mined, models.IncidentPattern{
			AlertKey:         key,
			Type:             agg.incidentType,
			Occurrences:      agg.count,
			Prevalence:       float64(agg.count) / float64(len(incidents)),
			DominantSeverity: agg.dominantSeverity(),
			FirstSeen:        agg.firstSeen,
			LastSeen:         agg.lastSeen,
		})
	}

	sort.Slice(mined, func(i, j int) bool {
		if mined[i].Prevalence != mined[j].Prevalence {
			return mined[i].Prevalence > mined[j].Prevalence
		}
		return mined[i].AlertKey < mined[j].AlertKey
	})

	m.logger.Debug("incident patterns mined", "incidents", len(incidents), "patterns", len(mined))
	return mined, nil
}

type keyAggregate struct {
	incidentType models.IncidentType
	count        int
	firstSeen    time.Time
	lastSeen     time.Time
	severities   map[models.Severity]int
}

// dominantSeverity is the most frequent severity for the key; ties break
// toward the more severe level.
func (a *keyAggregate) dominantSeverity() models.Severity {
	order := []models.Severity{models.SeverityCritical, models.SeverityWarning, models.SeverityInfo}
	best := models.SeverityInfo
	bestCount := -1
	for _, severity := range order {
		if count := a.severities[severity]; count > bestCount {
			best = severity
			bestCount = count
		}
	}
	return best
}
