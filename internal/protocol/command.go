package protocol

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Batch is one outbound command payload covering every controlled
// participant. The sim side evaluates the published artifact, so string
// values inside actions must not contain single quotes.
type Batch struct {
	UID  uint64
	Home map[int]map[string]any
	Away map[int]map[string]any

	// Extra top-level fields (e.g. the draft-enable flag sent at startup).
	Extra map[string]any
}

// NewBatch returns a batch with an empty action slot for every participant,
// so the remote side always sees all ten keys.
func NewBatch() *Batch {
	b := &Batch{
		Home:  make(map[int]map[string]any, SlotsPerSide),
		Away:  make(map[int]map[string]any, SlotsPerSide),
		Extra: nil,
	}
	for i := 0; i < SlotsPerSide; i++ {
		b.Home[i] = map[string]any{}
		b.Away[i+AwayFirstSlot] = map[string]any{}
	}
	return b
}

// Action returns the mutable action slot for a participant id.
func (b *Batch) Action(participant int) map[string]any {
	if participant < AwayFirstSlot {
		return b.Home[participant]
	}
	return b.Away[participant]
}

func (b *Batch) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, 3+len(b.Extra))
	m["uid"] = b.UID
	m[strconv.Itoa(TeamHome)] = b.Home
	m[strconv.Itoa(TeamAway)] = b.Away
	for k, v := range b.Extra {
		m[k] = v
	}
	return json.Marshal(m)
}

// EncodeBatch serializes a batch to the evaluable artifact form: a compact
// JSON object wrapped in a single-quoted string literal.
func EncodeBatch(b *Batch) ([]byte, error) {
	raw, err := json.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("encode batch: %w", err)
	}
	out := make([]byte, 0, len(raw)+len("return ''"))
	out = append(out, "return '"...)
	out = append(out, raw...)
	out = append(out, '\'')
	return out, nil
}
