package protocol

import (
	"encoding/json"
	"fmt"
)

// Event is one parsed command-log line. The remote command interpreter
// writes one JSON object per line; the top-level key identifies the kind.
type Event interface {
	Kind() string
}

// ErrorEvent: a non-fatal error reported by a remote script. The payload
// shape is script-defined; it is only ever logged.
type ErrorEvent struct {
	Message json.RawMessage
}

// AnnounceEvent: a participant announced itself after spawning.
type AnnounceEvent struct {
	ID    int    `json:"id"`
	Team  int    `json:"team_id"`
	Hero  string `json:"hero"`
	IsBot bool   `json:"is_bot"`
}

// AckEvent: one participant acknowledged the command batch with the given uid.
type AckEvent struct {
	UID uint64
}

// DraftUpdateEvent: a pick or ban was made.
type DraftUpdateEvent struct {
	Payload json.RawMessage
}

// DraftEndEvent: the draft phase ended.
type DraftEndEvent struct {
	Payload json.RawMessage
}

// InfoEvent: free-form telemetry, forwarded verbatim to the info sink.
type InfoEvent struct {
	Raw json.RawMessage
}

func (ErrorEvent) Kind() string       { return "E" }
func (AnnounceEvent) Kind() string    { return "P" }
func (AckEvent) Kind() string         { return "A" }
func (DraftUpdateEvent) Kind() string { return "DS" }
func (DraftEndEvent) Kind() string    { return "DE" }
func (InfoEvent) Kind() string        { return "I" }

type logLine struct {
	E  json.RawMessage `json:"E"`
	P  *AnnounceEvent  `json:"P"`
	A  *uint64         `json:"A"`
	DS json.RawMessage `json:"DS"`
	DE json.RawMessage `json:"DE"`
	I  json.RawMessage `json:"I"`
}

// present reports whether a raw key was set to a usable value. A literal
// null counts as absent, matching the remote side's "key: nil" emissions.
func present(raw json.RawMessage) bool {
	return len(raw) > 0 && string(raw) != "null"
}

// ParseLogLine parses one complete log line into typed events, probing the
// recognized keys in priority order. E, P and A are exclusive: when one of
// them is present the rest of the line is not examined. DS, DE and I may
// co-occur on a single line and are emitted in that order. A line carrying
// none of the six keys yields an empty slice, not an error.
func ParseLogLine(line []byte) ([]Event, error) {
	var l logLine
	if err := json.Unmarshal(line, &l); err != nil {
		return nil, fmt.Errorf("log line: %w", err)
	}

	if present(l.E) {
		return []Event{ErrorEvent{Message: l.E}}, nil
	}
	if l.P != nil {
		return []Event{*l.P}, nil
	}
	if l.A != nil {
		return []Event{AckEvent{UID: *l.A}}, nil
	}

	var evs []Event
	if present(l.DS) {
		evs = append(evs, DraftUpdateEvent{Payload: l.DS})
	}
	if present(l.DE) {
		evs = append(evs, DraftEndEvent{Payload: l.DE})
	}
	if present(l.I) {
		evs = append(evs, InfoEvent{Raw: l.I})
	}
	return evs, nil
}
