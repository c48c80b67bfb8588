package scenario

import "fmt"

// Phase is an ordered conversation stage. Later phases gate which
// evidentiary features may be evaluated against a turn.
type Phase string

const (
	PhaseOrientation         Phase = "orientation"
	PhaseClarification       Phase = "clarification"
	PhaseProceduralFollowup  Phase = "procedural_followup"
	PhaseRelationalCue       Phase = "relational_cue"
	PhaseContinuationRequest Phase = "continuation_request"
)

var phaseRank = map[Phase]int{
	PhaseOrientation:         0,
	PhaseClarification:       1,
	PhaseProceduralFollowup:  2,
	PhaseRelationalCue:       3,
	PhaseContinuationRequest: 4,
}

// Rank returns the phase's position in the conversation ordering.
// Unknown phases rank below orientation.
func (p Phase) Rank() int {
	if r, ok := phaseRank[p]; ok {
		return r
	}
	return -1
}

// AtLeast reports whether p is at or past min in the phase ordering.
func (p Phase) AtLeast(min Phase) bool {
	return p.Rank() >= min.Rank()
}

// ParsePhase validates a phase string from a scenario file.
func ParsePhase(s string) (Phase, error) {
	p := Phase(s)
	if _, ok := phaseRank[p]; !ok {
		return "", fmt.Errorf("unknown phase %q", s)
	}
	return p, nil
}

// Role identifies who produces a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ParseRole validates a role string from a scenario file.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleUser, RoleAssistant:
		return Role(s), nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}
