// Package playbook maps incidents to ordered remediation plans and runs
// them best-effort, recording every action outcome.
package playbook

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/governstack/govern-trust/internal/models"
)

// Plan is an ordered list of actions bound to an incident type and,
// optionally, a minimum severity.
type Plan struct {
	ID          string              `yaml:"id"`
	Match       PlanMatch           `yaml:"match"`
	Actions     []models.ActionType `yaml:"actions"`
	Description string              `yaml:"description"`
}

// PlanMatch selects which incidents a plan applies to. An empty severity
// matches any severity.
type PlanMatch struct {
	Type     string `yaml:"type"`
	Severity string `yaml:"severity"`
}

// PlanConfigFile is the YAML root structure for a playbook pack.
type PlanConfigFile struct {
	Plans []Plan `yaml:"playbooks"`
}

// Registry resolves incidents to plans. Pack plans loaded from disk take
// precedence over the compiled-in defaults.
type Registry struct {
	plans  []Plan
	logger *slog.Logger
}

// defaultPlans mirror the remediation runbook the engine ships with. A pack
// file can override any of them by matching the same type and severity.
var defaultPlans = []Plan{
	{
		ID:    "drift-critical",
		Match: PlanMatch{Type: string(models.IncidentDriftDetected), Severity: string(models.SeverityCritical)},
		Actions: []models.ActionType{
			models.ActionReduceAutonomy,
			models.ActionActivateShadow,
			models.ActionNotify,
			models.ActionFlagRetraining,
		},
		Description: "Contain critical drift: clamp autonomy, fall back to shadow model, page, queue retraining review.",
	},
	{
		ID:    "drift-warning",
		Match: PlanMatch{Type: string(models.IncidentDriftDetected), Severity: string(models.SeverityWarning)},
		Actions: []models.ActionType{
			models.ActionNotify,
			models.ActionFlagRetraining,
		},
	},
	{
		ID:    "bias-critical",
		Match: PlanMatch{Type: string(models.IncidentBiasDetected)},
		Actions: []models.ActionType{
			models.ActionNotify,
			models.ActionFlagFairnessReview,
		},
	},
	{
		ID:      "accuracy-drop",
		Match:   PlanMatch{Type: string(models.IncidentAccuracyDrop)},
		Actions: []models.ActionType{models.ActionNotify},
	},
	{
		ID:      "llm-cost",
		Match:   PlanMatch{Type: string(models.IncidentLLMCostExceeded)},
		Actions: []models.ActionType{models.ActionNotify},
	},
	{
		ID:    "llm-hallucination",
		Match: PlanMatch{Type: string(models.IncidentLLMHallucination)},
		Actions: []models.ActionType{
			models.ActionReduceAutonomy,
			models.ActionNotify,
		},
	},
	{
		ID:      "llm-latency",
		Match:   PlanMatch{Type: string(models.IncidentLLMLatency)},
		Actions: []models.ActionType{models.ActionNotify},
	},
	{
		ID:      "system-health",
		Match:   PlanMatch{Type: string(models.IncidentSystemHealth)},
		Actions: []models.ActionType{models.ActionNotify},
	},
}

// NewRegistry loads a playbook pack from path and layers it over the
// compiled-in defaults. An empty or missing path yields a registry with
// defaults only.
func NewRegistry(path string, logger *slog.Logger) (*Registry, error) {
	if logger == nil {
		logger = slog.Default()
	}
	reg := &Registry{plans: defaultPlans, logger: logger}
	if path == "" {
		return reg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Warn("playbook pack not found, using defaults", "path", path)
			return reg, nil
		}
		return nil, fmt.Errorf("read playbook pack: %w", err)
	}
	var cfg PlanConfigFile
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse playbook pack: %w", err)
	}
	for i, plan := range cfg.Plans {
		if plan.Match.Type == "" {
			return nil, fmt.Errorf("playbook pack: plan %d (%q) has no match type", i, plan.ID)
		}
		for _, action := range plan.Actions {
			if !validAction(action) {
				return nil, fmt.Errorf("playbook pack: plan %q has unknown action %q", plan.ID, action)
			}
		}
	}
	// Pack plans first so Resolve prefers them over defaults.
	reg.plans = append(append([]Plan{}, cfg.Plans...), defaultPlans...)
	logger.Info("playbook pack loaded", "path", path, "plans", len(cfg.Plans))
	return reg, nil
}

// Resolve returns the first plan matching the incident, or false when no
// plan applies.
func (r *Registry) Resolve(incident models.Incident) (Plan, bool) {
	for _, plan := range r.plans {
		if !strings.EqualFold(plan.Match.Type, string(incident.Type)) {
			continue
		}
		if plan.Match.Severity != "" && !strings.EqualFold(plan.Match.Severity, string(incident.Severity)) {
			continue
		}
		return plan, true
	}
	return Plan{}, false
}

func validAction(action models.ActionType) bool {
	switch action {
	case models.ActionReduceAutonomy, models.ActionActivateShadow, models.ActionNotify,
		models.ActionFlagRetraining, models.ActionFlagFairnessReview:
		return true
	}
	return false
}
