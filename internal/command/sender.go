// Package command publishes command batches to the sim through the shared
// filesystem channel. The sim polls a single fixed path; the writer must
// never let it observe a half-written artifact.
package command

import (
	"encoding/json"
	"fmt"
	"os"
	"sync/atomic"

	"skirmish.ai/internal/protocol"
)

// Counter issues the session-scoped message ids. Owned by the session; a
// fresh session starts a fresh counter.
type Counter struct {
	n atomic.Uint64
}

func (c *Counter) Next() uint64    { return c.n.Add(1) }
func (c *Counter) Current() uint64 { return c.n.Load() }

type Sender struct {
	path    string
	counter *Counter
}

func NewSender(path string, counter *Counter) *Sender {
	return &Sender{path: path, counter: counter}
}

// Send assigns the next uid to the batch and publishes it. Fire-and-forget:
// delivery confirmation arrives asynchronously as `A` log events keyed by
// the returned uid.
func (s *Sender) Send(b *protocol.Batch) (uint64, error) {
	b.UID = s.counter.Next()
	data, err := protocol.EncodeBatch(b)
	if err != nil {
		return b.UID, err
	}
	if err := writeAtomic(s.path, data); err != nil {
		return b.UID, fmt.Errorf("publish batch %d: %w", b.UID, err)
	}
	return b.UID, nil
}

// WriteStartup publishes the session-start configuration artifact the remote
// scripts read once at boot.
func WriteStartup(path string, draftStartWait, draftPickWait int) error {
	raw, err := json.Marshal(map[string]any{
		"uid":              1,
		"draft_start_wait": draftStartWait,
		"draft_pick_wait":  draftPickWait,
	})
	if err != nil {
		return err
	}
	data := make([]byte, 0, len(raw)+len("return ''"))
	data = append(data, "return '"...)
	data = append(data, raw...)
	data = append(data, '\'')
	if err := writeAtomic(path, data); err != nil {
		return fmt.Errorf("publish startup config: %w", err)
	}
	return nil
}

// writeAtomic writes to a sibling temp path and renames it onto the target,
// so a concurrent reader sees either the previous or the new complete
// artifact. A stale temp from a crashed run is removed first.
func writeAtomic(path string, data []byte) error {
	tmp := path + "_tmp"
	if _, err := os.Stat(tmp); err == nil {
		if err := os.Remove(tmp); err != nil {
			return err
		}
	}
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
