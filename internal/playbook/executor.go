package playbook

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/governstack/govern-trust/internal/models"
)

// Notifier dispatches an alert and reports what happened, including
// cooldown suppression.
type Notifier interface {
	Dispatch(ctx context.Context, alert models.Alert) models.DispatchResult
}

// Governor applies autonomy-affecting remediations. The monitoring loop
// implements it against its own state.
type Governor interface {
	// ClampAutonomy caps the current autonomy at the given level. It
	// returns the effective level and whether anything changed.
	ClampAutonomy(ctx context.Context, ceiling models.AutonomyLevel) (models.AutonomyLevel, bool, error)
	// ActivateShadowModel switches decisioning to the shadow reference.
	ActivateShadowModel(ctx context.Context, incident models.Incident) error
	// FlagReview queues the incident for a named human review track.
	FlagReview(ctx context.Context, track string, incident models.Incident) error
}

// Executor runs resolved plans action by action. Actions are best-effort:
// a failed slot is recorded and the sequence continues, there is no
// rollback.
type Executor struct {
	logger   *slog.Logger
	registry *Registry
	notifier Notifier
	governor Governor
}

func NewExecutor(logger *slog.Logger, registry *Registry, notifier Notifier, governor Governor) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{logger: logger, registry: registry, notifier: notifier, governor: governor}
}

// Execute resolves and runs the plan for one incident. An incident with no
// matching plan yields an execution with no actions.
func (e *Executor) Execute(ctx context.Context, incident models.Incident) models.PlaybookExecution {
	execution := models.PlaybookExecution{
		ID:         uuid.NewString(),
		IncidentID: incident.ID,
		ExecutedAt: time.Now().UTC(),
	}

	plan, ok := e.registry.Resolve(incident)
	if !ok {
		e.logger.Warn("no playbook for incident", "type", incident.Type, "severity", incident.Severity)
		execution.Actions = []models.ActionResult{}
		return execution
	}

	execution.Actions = make([]models.ActionResult, 0, len(plan.Actions))
	for _, action := range plan.Actions {
		result := e.runAction(ctx, action, incident)
		execution.Actions = append(execution.Actions, result)
		if result.Status == models.ActionFailed {
			e.logger.Error("playbook action failed",
				"plan", plan.ID, "action", action, "incident_id", incident.ID, "detail", result.Detail)
		}
	}

	e.logger.Info("playbook executed",
		"plan", plan.ID, "incident_id", incident.ID, "actions", len(execution.Actions))
	return execution
}

func (e *Executor) runAction(ctx context.Context, action models.ActionType, incident models.Incident) models.ActionResult {
	result := models.ActionResult{Type: action}

	switch action {
	case models.ActionReduceAutonomy:
		if e.governor == nil {
			result.Status = models.ActionSkipped
			result.Detail = "no governor configured"
			return result
		}
		level, changed, err := e.governor.ClampAutonomy(ctx, models.AutonomyApprovalRequired)
		if err != nil {
			result.Status = models.ActionFailed
			result.Detail = err.Error()
			return result
		}
		result.Status = models.ActionSucceeded
		if changed {
			result.Detail = fmt.Sprintf("autonomy reduced to %s", level)
		} else {
			result.Detail = fmt.Sprintf("autonomy already at %s", level)
		}

	case models.ActionActivateShadow:
		if e.governor == nil {
			result.Status = models.ActionSkipped
			result.Detail = "no governor configured"
			return result
		}
		if err := e.governor.ActivateShadowModel(ctx, incident); err != nil {
			result.Status = models.ActionFailed
			result.Detail = err.Error()
			return result
		}
		result.Status = models.ActionSucceeded
		result.Detail = "shadow model activated"

	case models.ActionNotify:
		dispatch := e.notifier.Dispatch(ctx, alertFor(incident))
		result.Dispatch = &dispatch
		switch {
		case dispatch.Suppressed:
			result.Status = models.ActionSkipped
			result.Detail = "alert suppressed by cooldown"
		case dispatch.Delivered():
			result.Status = models.ActionSucceeded
		default:
			result.Status = models.ActionFailed
			result.Detail = "no channel delivered"
		}

	case models.ActionFlagRetraining, models.ActionFlagFairnessReview:
		track := "retraining"
		if action == models.ActionFlagFairnessReview {
			track = "fairness"
		}
		if e.governor == nil {
			result.Status = models.ActionSkipped
			result.Detail = "no governor configured"
			return result
		}
		if err := e.governor.FlagReview(ctx, track, incident); err != nil {
			result.Status = models.ActionFailed
			result.Detail = err.Error()
			return result
		}
		result.Status = models.ActionSucceeded
		result.Detail = fmt.Sprintf("flagged for %s review", track)

	default:
		result.Status = models.ActionSkipped
		result.Detail = fmt.Sprintf("unknown action %q", action)
	}

	return result
}

// alertFor builds the dispatch payload for an incident. The subject keeps a
// fixed shape so downstream mail filters can match on it.
func alertFor(incident models.Incident) models.Alert {
	return models.Alert{
		Key:      incident.AlertKey(),
		Severity: incident.Severity,
		Subject:  fmt.Sprintf("[govern-trust] %s: %s", strings.ToUpper(string(incident.Severity)), incident.Type),
		Message:  incident.Description,
		Details:  incident.Details,
	}
}
