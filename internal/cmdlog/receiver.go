// Package cmdlog tails the line-oriented log artifact written by the remote
// command interpreter and turns complete lines into typed events.
package cmdlog

import (
	"bytes"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"skirmish.ai/internal/protocol"
)

const fallbackPoll = 100 * time.Millisecond

// Receiver tails one log file from the beginning. The file may not exist
// yet when the receiver starts; truncation or recreation resets the read
// offset.
type Receiver struct {
	path    string
	out     chan protocol.Event
	running func() bool
	log     *log.Logger

	offset  int64
	pending []byte

	lines     atomic.Uint64
	parseErrs atomic.Uint64
}

func NewReceiver(path string, depth int, running func() bool, logger *log.Logger) *Receiver {
	if depth <= 0 {
		depth = 256
	}
	return &Receiver{
		path:    path,
		out:     make(chan protocol.Event, depth),
		running: running,
		log:     logger,
	}
}

func (r *Receiver) Out() <-chan protocol.Event { return r.out }

func (r *Receiver) Depth() int { return len(r.out) }

func (r *Receiver) Lines() uint64     { return r.lines.Load() }
func (r *Receiver) ParseErrs() uint64 { return r.parseErrs.Load() }

// Run drains the log until the session stops. fsnotify wakes the loop on
// writes; the short poll below is the safety net when the watch cannot be
// established (or the file is recreated under a new inode).
func (r *Receiver) Run() {
	var events chan fsnotify.Event
	watcher, err := fsnotify.NewWatcher()
	if err == nil {
		// Watch the directory: the log usually does not exist yet.
		if werr := watcher.Add(filepath.Dir(r.path)); werr == nil {
			events = make(chan fsnotify.Event, 1)
			go forwardEvents(watcher, events)
		}
		defer watcher.Close()
	}

	for r.running() {
		r.drain()
		if events != nil {
			select {
			case <-events:
			case <-time.After(fallbackPoll):
			}
		} else {
			time.Sleep(fallbackPoll)
		}
	}
}

func forwardEvents(w *fsnotify.Watcher, out chan<- fsnotify.Event) {
	for {
		select {
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			select {
			case out <- ev:
			default:
			}
		case _, ok := <-w.Errors:
			if !ok {
				return
			}
		}
	}
}

// drain reads everything appended since the last call and emits the
// complete lines.
func (r *Receiver) drain() {
	f, err := os.Open(r.path)
	if err != nil {
		return
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return
	}
	if fi.Size() < r.offset {
		// Truncated or recreated: start over.
		r.offset = 0
		r.pending = nil
	}
	if fi.Size() == r.offset {
		return
	}
	if _, err := f.Seek(r.offset, io.SeekStart); err != nil {
		return
	}
	chunk, err := io.ReadAll(f)
	if err != nil && len(chunk) == 0 {
		return
	}
	r.offset += int64(len(chunk))
	r.pending = append(r.pending, chunk...)

	for {
		i := bytes.IndexByte(r.pending, '\n')
		if i < 0 {
			return
		}
		line := bytes.TrimSpace(r.pending[:i])
		r.pending = r.pending[i+1:]
		if len(line) == 0 {
			continue
		}
		r.emitLine(line)
	}
}

func (r *Receiver) emitLine(line []byte) {
	r.lines.Add(1)
	evs, err := protocol.ParseLogLine(line)
	if err != nil {
		r.parseErrs.Add(1)
		r.log.Printf("cmdlog skipped line: %v", err)
		return
	}
	for _, ev := range evs {
		r.emit(ev)
	}
}

// emit blocks until the orchestrator makes room, checking the stop flag so
// a full queue never wedges teardown. Events are never dropped while the
// session runs: ack counting relies on seeing every one.
func (r *Receiver) emit(ev protocol.Event) {
	for r.running() {
		select {
		case r.out <- ev:
			return
		case <-time.After(10 * time.Millisecond):
		}
	}
}
