package room

import "fmt"

type Phase string

const (
	PhaseLoading      Phase = "loading"
	PhaseInstructions Phase = "instructions"
	PhaseConnecting   Phase = "connecting"
	PhaseLive         Phase = "live"
	PhaseCompleted    Phase = "completed"
	PhaseTerminated   Phase = "terminated"
)

var transitions = map[Phase][]Phase{
	PhaseLoading:      {PhaseInstructions},
	PhaseInstructions: {PhaseConnecting},
	PhaseConnecting:   {PhaseInstructions, PhaseLive, PhaseTerminated},
	PhaseLive:         {PhaseCompleted, PhaseTerminated},
}

// Terminal reports whether p is absorbing.
func (p Phase) Terminal() bool {
	return p == PhaseCompleted || p == PhaseTerminated
}

func (p Phase) CanTransition(to Phase) bool {
	for _, next := range transitions[p] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition returns to when the move is legal.
func (p Phase) Transition(to Phase) (Phase, error) {
	if !p.CanTransition(to) {
		return p, fmt.Errorf("illegal room transition %s -> %s", p, to)
	}
	return to, nil
}

// proctored reports whether focus and fullscreen signals count as violations in p.
func (p Phase) proctored() bool {
	return p == PhaseConnecting || p == PhaseLive
}
