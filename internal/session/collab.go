package session

import (
	"encoding/json"

	"skirmish.ai/internal/protocol"
)

// The orchestrator only specifies the seams it hands data across; the
// implementations behind them live outside this module.

// Fuser consumes exactly one state diff per side per tick and maintains the
// fused observation.
type Fuser interface {
	Apply(team int, frame *protocol.Frame) error
}

// DraftTracker follows the pick/ban sequence.
type DraftTracker interface {
	Update(payload json.RawMessage)
	End(payload json.RawMessage)
}

// InfoSink receives `I` telemetry events verbatim.
type InfoSink interface {
	Save(raw json.RawMessage)
}

// Collaborators bundles the optional external seams. Nil fields are
// skipped.
type Collaborators struct {
	Fuser Fuser
	Draft DraftTracker
	Info  InfoSink
}
