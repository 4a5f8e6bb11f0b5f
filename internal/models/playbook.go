package models

import "time"

// ActionType enumerates remediation actions a playbook may run.
type ActionType string

const (
	ActionReduceAutonomy     ActionType = "reduce_autonomy"
	ActionActivateShadow     ActionType = "activate_shadow_model"
	ActionNotify             ActionType = "notify"
	ActionFlagRetraining     ActionType = "flag_retraining_review"
	ActionFlagFairnessReview ActionType = "flag_fairness_review"
)

// ActionStatus records the outcome of one action slot.
type ActionStatus string

const (
	ActionSucceeded ActionStatus = "succeeded"
	ActionFailed    ActionStatus = "failed"
	ActionSkipped   ActionStatus = "skipped"
)

// ActionResult is one executed slot of a playbook run.
type ActionResult struct {
	Type     ActionType      `json:"action_type"`
	Status   ActionStatus    `json:"status"`
	Detail   string          `json:"detail,omitempty"`
	Dispatch *DispatchResult `json:"dispatch,omitempty"`
}

// PlaybookExecution records one best-effort remediation run for an incident
// occurrence. Re-triggering the same incident produces a new execution;
// only notify actions are deduplicated, via the dispatch cooldown.
type PlaybookExecution struct {
	ID         string         `json:"id"`
	IncidentID string         `json:"incident_id"`
	Actions    []ActionResult `json:"actions"`
	ExecutedAt time.Time      `json:"executed_at"`
}
