package session

// Phase is the session readiness state machine.
//
//	Setup -> Drafting -> AwaitingReady -> Playing -> Stopped
//
// Drafting is skipped when the session has no draft phase. Stopped is
// terminal.
type Phase int

const (
	PhaseSetup Phase = iota
	PhaseDrafting
	PhaseAwaitingReady
	PhasePlaying
	PhaseStopped
)

func (p Phase) String() string {
	switch p {
	case PhaseSetup:
		return "setup"
	case PhaseDrafting:
		return "drafting"
	case PhaseAwaitingReady:
		return "awaiting_ready"
	case PhasePlaying:
		return "playing"
	case PhaseStopped:
		return "stopped"
	}
	return "unknown"
}
