// Package statefeed maintains the per-side connections to the sim's push
// state feeds and turns raw frames into timestamped snapshots for the
// orchestrator.
package statefeed

import (
	"errors"
	"log"
	"net"
	"os"
	"sync/atomic"
	"time"

	"skirmish.ai/internal/protocol"
)

const redialWait = 250 * time.Millisecond

// Snapshot is one decoded state diff plus its receipt timestamp. Ownership
// transfers to the orchestrator on dequeue.
type Snapshot struct {
	Frame      *protocol.Frame
	ReceivedAt time.Time
	Perf       protocol.PerfSample
}

// Stats counts connection-level activity. Read concurrently by bridge ops.
type Stats struct {
	Messages   atomic.Uint64
	Bytes      atomic.Uint64
	Malformed  atomic.Uint64
	Reconnects atomic.Uint64
	Dropped    atomic.Uint64
}

type StatsView struct {
	Messages   uint64 `json:"messages"`
	Bytes      uint64 `json:"bytes"`
	Malformed  uint64 `json:"malformed"`
	Reconnects uint64 `json:"reconnects"`
	Dropped    uint64 `json:"dropped"`
}

func (s *Stats) View() StatsView {
	return StatsView{
		Messages:   s.Messages.Load(),
		Bytes:      s.Bytes.Load(),
		Malformed:  s.Malformed.Load(),
		Reconnects: s.Reconnects.Load(),
		Dropped:    s.Dropped.Load(),
	}
}

// Listener is a pure client of one side's state feed. It never blocks the
// orchestrator: a full queue drops the oldest snapshot and keeps going.
type Listener struct {
	side    string
	addr    string
	out     chan Snapshot
	running func() bool
	log     *log.Logger
	stats   Stats
}

func NewListener(side, addr string, depth int, running func() bool, logger *log.Logger) *Listener {
	if depth <= 0 {
		depth = 32
	}
	return &Listener{
		side:    side,
		addr:    addr,
		out:     make(chan Snapshot, depth),
		running: running,
		log:     logger,
	}
}

func (l *Listener) Out() <-chan Snapshot { return l.out }

// Depth is the orchestrator's backpressure signal.
func (l *Listener) Depth() int { return len(l.out) }

func (l *Listener) Stats() *Stats { return &l.stats }

// Run dials, reads and re-dials until the session stops. Transient
// failures never terminate the loop.
func (l *Listener) Run() {
	for l.running() {
		conn, err := net.DialTimeout("tcp", l.addr, time.Second)
		if err != nil {
			l.log.Printf("%s feed dial %s: %v", l.side, l.addr, err)
			l.sleepWhileRunning(redialWait)
			continue
		}
		l.read(conn)
		_ = conn.Close()
		if l.running() {
			l.stats.Reconnects.Add(1)
		}
	}
}

func (l *Listener) read(conn net.Conn) {
	// Deadlines keep the loop responsive to stop; an idle timeout at a
	// frame boundary is not a failure, a mid-frame one is.
	cr := &deadlineReader{conn: conn}
	for l.running() {
		cr.n = 0
		frame, err := protocol.ReadFrame(cr)
		if err != nil {
			if errors.Is(err, protocol.ErrMalformedFrame) {
				l.stats.Malformed.Add(1)
				l.log.Printf("%s feed dropped frame: %v", l.side, err)
				continue
			}
			if cr.n == 0 && errors.Is(err, os.ErrDeadlineExceeded) {
				continue
			}
			return
		}
		l.stats.Messages.Add(1)
		l.stats.Bytes.Add(uint64(len(frame.Delta)))
		l.enqueue(Snapshot{
			Frame:      frame,
			ReceivedAt: time.Now(),
		})
	}
}

// enqueue with drop-oldest semantics so a slow consumer only loses the
// stalest diff.
func (l *Listener) enqueue(s Snapshot) {
	select {
	case l.out <- s:
		return
	default:
	}
	select {
	case <-l.out:
		l.stats.Dropped.Add(1)
	default:
	}
	select {
	case l.out <- s:
	default:
		l.stats.Dropped.Add(1)
	}
}

type deadlineReader struct {
	conn net.Conn
	n    int
}

func (r *deadlineReader) Read(p []byte) (int, error) {
	_ = r.conn.SetReadDeadline(time.Now().Add(time.Second))
	n, err := r.conn.Read(p)
	r.n += n
	return n, err
}

func (l *Listener) sleepWhileRunning(d time.Duration) {
	deadline := time.Now().Add(d)
	for l.running() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
}
