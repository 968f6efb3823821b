package session

import (
	"encoding/json"
	"io"
	"log"
	"path/filepath"
	"sync"
	"testing"

	"skirmish.ai/internal/config"
	"skirmish.ai/internal/protocol"
)

func testLogger() *log.Logger { return log.New(io.Discard, "", 0) }

func testConfig(t *testing.T) config.Session {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Defaults()
	cfg.Executable = "/bin/true"
	cfg.CommandPath = filepath.Join(dir, "commands.lua")
	cfg.LogPath = filepath.Join(dir, "console.log")
	cfg.StartupPath = filepath.Join(dir, "startup.lua")
	cfg.DataDir = dir
	return cfg
}

type recordingDraft struct {
	updates []json.RawMessage
	ends    []json.RawMessage
}

func (d *recordingDraft) Update(p json.RawMessage) { d.updates = append(d.updates, p) }
func (d *recordingDraft) End(p json.RawMessage)    { d.ends = append(d.ends, p) }

type recordingSink struct {
	mu   sync.Mutex
	raws []json.RawMessage
}

func (s *recordingSink) Save(raw json.RawMessage) {
	s.mu.Lock()
	s.raws = append(s.raws, raw)
	s.mu.Unlock()
}

type recordingFuser struct {
	mu     sync.Mutex
	argSeq []int
}

func (f *recordingFuser) Apply(team int, frame *protocol.Frame) error {
	f.mu.Lock()
	f.argSeq = append(f.argSeq, team)
	f.mu.Unlock()
	return nil
}

func announceAll(o *Orchestrator, humans ...int) {
	human := map[int]bool{}
	for _, id := range humans {
		human[id] = true
	}
	for id := 0; id < protocol.ExpectedCount; id++ {
		o.dispatchEvent(protocol.AnnounceEvent{
			ID: id, Team: protocol.TeamOf(id), Hero: "hero", IsBot: !human[id],
		})
	}
}

func TestAnnouncesBuildRosterAndMarkReady(t *testing.T) {
	o := New(testConfig(t), "t1", testLogger(), Collaborators{}, nil)
	announceAll(o)

	if !o.roster.Built() {
		t.Fatalf("roster not built after %d announces", protocol.ExpectedCount)
	}
	if o.phase != PhaseAwaitingReady {
		t.Fatalf("phase=%s want awaiting_ready", o.phase)
	}
	if !o.ready || !o.state.Game() {
		t.Fatalf("ready=%v game=%v want true,true", o.ready, o.state.Game())
	}
	if o.expectedBots != protocol.ExpectedCount {
		t.Fatalf("expectedBots=%d want %d", o.expectedBots, protocol.ExpectedCount)
	}
	// Announces imply the draft finished even if its end line was missed.
	if active, observed := o.state.Draft(); !observed || active {
		t.Fatalf("draft=(%v,%v) want (false,true)", active, observed)
	}
}

func TestModeOverrideShrinksControlledSet(t *testing.T) {
	cfg := testConfig(t)
	cfg.Mode = "duel"
	o := New(cfg, "t1", testLogger(), Collaborators{}, nil)
	announceAll(o)

	if o.expectedBots != 2 {
		t.Fatalf("expectedBots=%d want 2", o.expectedBots)
	}
	if got := o.roster.Bots(); !equalInts(got, []int{0, 5}) {
		t.Fatalf("bots=%v want [0 5]", got)
	}
	if !o.ready {
		t.Fatalf("override session not ready")
	}
}

func TestHumanParticipantBlocksReady(t *testing.T) {
	o := New(testConfig(t), "t1", testLogger(), Collaborators{}, nil)
	announceAll(o, 3)

	if !o.roster.Built() {
		t.Fatalf("roster should still build")
	}
	if o.ready || o.state.Game() {
		t.Fatalf("mixed session marked ready")
	}
	if o.expectedBots != 9 {
		t.Fatalf("expectedBots=%d want 9", o.expectedBots)
	}
	if o.phase != PhaseAwaitingReady {
		t.Fatalf("phase=%s want awaiting_ready", o.phase)
	}
}

func TestDraftEventsDrivePhase(t *testing.T) {
	tracker := &recordingDraft{}
	o := New(testConfig(t), "t1", testLogger(), Collaborators{Draft: tracker}, nil)

	o.dispatchEvent(protocol.DraftUpdateEvent{Payload: []byte(`{"pick":4}`)})
	if o.phase != PhaseDrafting {
		t.Fatalf("phase=%s want drafting", o.phase)
	}
	if active, observed := o.state.Draft(); !observed || !active {
		t.Fatalf("draft=(%v,%v) want (true,true)", active, observed)
	}

	o.dispatchEvent(protocol.DraftEndEvent{Payload: []byte(`{"final":true}`)})
	if o.phase != PhaseAwaitingReady {
		t.Fatalf("phase=%s want awaiting_ready", o.phase)
	}
	if active, _ := o.state.Draft(); active {
		t.Fatalf("draft still active after end event")
	}
	if len(tracker.updates) != 1 || string(tracker.updates[0]) != `{"pick":4}` {
		t.Fatalf("updates=%v", tracker.updates)
	}
	// The end event forwards its own payload.
	if len(tracker.ends) != 1 || string(tracker.ends[0]) != `{"final":true}` {
		t.Fatalf("ends=%v", tracker.ends)
	}
}

func TestInfoEventsReachSink(t *testing.T) {
	sink := &recordingSink{}
	o := New(testConfig(t), "t1", testLogger(), Collaborators{Info: sink}, nil)

	o.dispatchEvent(protocol.InfoEvent{Raw: []byte(`{"gold":120}`)})
	if len(sink.raws) != 1 || string(sink.raws[0]) != `{"gold":120}` {
		t.Fatalf("sink=%v", sink.raws)
	}

	// Remote errors and events with no collaborator wired are absorbed.
	o.dispatchEvent(protocol.ErrorEvent{Message: []byte(`"script error"`)})
}

func TestAckRetirementFollowsExpectedBots(t *testing.T) {
	cfg := testConfig(t)
	cfg.Mode = "duel"
	o := New(cfg, "t1", testLogger(), Collaborators{}, nil)
	announceAll(o)

	o.pending.note(4)
	o.dispatchEvent(protocol.AckEvent{UID: 4})
	if !o.pending.has(4) {
		t.Fatalf("retired after 1 of 2 acks")
	}
	o.dispatchEvent(protocol.AckEvent{UID: 4})
	if o.pending.has(4) {
		t.Fatalf("not retired after 2 acks")
	}
}

func TestWinnerFrameStopsSession(t *testing.T) {
	o := New(testConfig(t), "t1", testLogger(), Collaborators{}, nil)
	o.apply(protocol.TeamHome, &protocol.Frame{Tick: 9, Team: protocol.TeamHome, Winner: "home"})

	if !o.checkTerminal() {
		t.Fatalf("winner did not terminate the session")
	}
	if o.phase != PhaseStopped {
		t.Fatalf("phase=%s want stopped", o.phase)
	}
	if o.state.Running() {
		t.Fatalf("still running after stop")
	}
	if win, ok := o.state.Win(); !ok || win != "home" {
		t.Fatalf("win=%q want home", win)
	}
}

func TestRequestStopIsTerminal(t *testing.T) {
	o := New(testConfig(t), "t1", testLogger(), Collaborators{}, nil)
	if o.checkTerminal() {
		t.Fatalf("fresh session terminal")
	}
	o.RequestStop()
	if !o.checkTerminal() {
		t.Fatalf("stop request ignored")
	}
}
