package engine

import "github.com/governstack/govern-trust/internal/models"

// Score bands, closed on the lower bound. A boundary score always resolves
// to the higher-autonomy band: exactly 80 is fully autonomous, exactly 60 is
// human-on-loop, exactly 40 requires approval.
const (
	bandFullyAutonomous  = 80
	bandHumanOnLoop      = 60
	bandApprovalRequired = 40
)

// Classify maps a trust score onto a discrete autonomy level. It is a total
// function: every int, including out-of-range programmer errors, yields
// exactly one level.
func Classify(score int) models.AutonomyLevel {
	switch {
	case score >= bandFullyAutonomous:
		return models.AutonomyFull
	case score >= bandHumanOnLoop:
		return models.AutonomyHumanOnLoop
	case score >= bandApprovalRequired:
		return models.AutonomyApprovalRequired
	default:
		return models.AutonomyKillSwitch
	}
}
