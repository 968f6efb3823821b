package protocol

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"
)

// ErrMalformedFrame marks a frame that arrived intact but failed to decode.
// The stream itself is still usable after one.
var ErrMalformedFrame = errors.New("malformed frame")

// MaxFrameSize bounds a single state-diff frame. Full-map diffs right after
// a draft stay well under this.
const MaxFrameSize = 16 << 20

// Frame is one per-side world-state diff pushed by the sim. The harness
// inspects only tick, team and winner; the delta body is opaque and handed
// to the fusion layer untouched.
type Frame struct {
	Tick   uint64          `json:"tick"`
	Team   int             `json:"team_id"`
	Winner string          `json:"winner,omitempty"`
	Delta  json.RawMessage `json:"delta,omitempty"`
}

// PerfSample tracks one observation's processing timeline. The listener
// stamps StateReceived; the orchestrator stamps the rest. Whenever all three
// are set, StateReceived <= StateApplied <= StateReplied.
type PerfSample struct {
	StateReceived time.Time `json:"state_received,omitempty"`
	StateApplied  time.Time `json:"state_applied,omitempty"`
	StateReplied  time.Time `json:"state_replied,omitempty"`
}

// RoundTrip is the received-to-replied latency, zero until both ends are set.
func (p PerfSample) RoundTrip() time.Duration {
	if p.StateReceived.IsZero() || p.StateReplied.IsZero() {
		return 0
	}
	return p.StateReplied.Sub(p.StateReceived)
}

// ReadFrame reads one length-prefixed frame: a 4-byte little-endian payload
// size followed by the JSON payload.
func ReadFrame(r io.Reader) (*Frame, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	size := binary.LittleEndian.Uint32(hdr[:])
	if size == 0 || size > MaxFrameSize {
		return nil, fmt.Errorf("frame size %d out of range", size)
	}
	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}
	var f Frame
	if err := json.Unmarshal(payload, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	return &f, nil
}

// WriteFrame writes one length-prefixed frame. Used by the in-repo feed
// stub and tests; the production feed is the sim itself.
func WriteFrame(w io.Writer, f *Frame) error {
	payload, err := json.Marshal(f)
	if err != nil {
		return err
	}
	if len(payload) > MaxFrameSize {
		return fmt.Errorf("frame size %d out of range", len(payload))
	}
	var hdr [4]byte
	binary.LittleEndian.PutUint32(hdr[:], uint32(len(payload)))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	_, err = w.Write(payload)
	return err
}
