package models

import "time"

// AutonomyLevel gates how much a downstream decision system may act without
// human review.
type AutonomyLevel string

const (
	AutonomyFull             AutonomyLevel = "fully_autonomous"
	AutonomyHumanOnLoop      AutonomyLevel = "human_on_loop"
	AutonomyApprovalRequired AutonomyLevel = "approval_required"
	AutonomyKillSwitch       AutonomyLevel = "kill_switch"
)

// Rank orders levels from most to least autonomous; lower rank means more
// autonomy. Used when a playbook action must reduce autonomy "at minimum" to
// a given floor.
func (l AutonomyLevel) Rank() int {
	switch l {
	case AutonomyFull:
		return 0
	case AutonomyHumanOnLoop:
		return 1
	case AutonomyApprovalRequired:
		return 2
	case AutonomyKillSwitch:
		return 3
	}
	return 3
}

// TrustScoreRecord is one scored tick. Records are append-only history and
// are never deleted or mutated after creation.
type TrustScoreRecord struct {
	Score         int                `json:"score"`
	ComputedAt    time.Time          `json:"computed_at"`
	AutonomyLevel AutonomyLevel      `json:"autonomy_level"`
	Factors       map[string]float64 `json:"contributing_factors"`
	Explanation   string             `json:"explanation"`
	Simulated     bool               `json:"simulated,omitempty"`
}

// GovernanceEvent records an autonomy-level transition between two ticks.
type GovernanceEvent struct {
	Timestamp     time.Time     `json:"timestamp"`
	PreviousLevel AutonomyLevel `json:"previous_level"`
	NewLevel      AutonomyLevel `json:"new_level"`
	TrustScore    int           `json:"trust_score"`
	ScoreChange   int           `json:"trust_score_change"`
	Reason        string        `json:"trigger_reason"`
}
