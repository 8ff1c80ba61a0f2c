/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package hunt

// Phase is the single discriminant of a session.
type Phase string

const (
	PhaseSetup    Phase = "setup"
	PhaseRules    Phase = "rules"
	PhasePlaying  Phase = "playing"
	PhaseFinished Phase = "finished"
)

func (p Phase) String() string {
	return string(p)
}

// CanTransitionTo reports whether moving from p to target is a legal edge.
// Rules may step back to Setup, and Finished may only restart at Setup.
func (p Phase) CanTransitionTo(target Phase) bool {
	switch p {
	case PhaseSetup:
		return target == PhaseRules
	case PhaseRules:
		return target == PhasePlaying || target == PhaseSetup
	case PhasePlaying:
		return target == PhaseFinished
	case PhaseFinished:
		return target == PhaseSetup
	}
	return false
}
