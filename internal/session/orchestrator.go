// Package session fuses the sim's side channels into one consistent
// current-tick view and owns the session readiness state machine.
package session

import (
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"skirmish.ai/internal/bridge"
	"skirmish.ai/internal/cmdlog"
	"skirmish.ai/internal/command"
	"skirmish.ai/internal/config"
	"skirmish.ai/internal/launcher"
	"skirmish.ai/internal/protocol"
	"skirmish.ai/internal/replay"
	"skirmish.ai/internal/statefeed"
)

// Orchestrator drives the deterministic tick loop over the sim's
// loosely-synchronized channels. The loop itself is single-goroutine; the
// workers hand everything over through bounded queues.
type Orchestrator struct {
	cfg   config.Session
	id    string
	log   *log.Logger
	state *State

	counter *command.Counter
	sender  *command.Sender
	ctl     *bridge.Bridge
	ops     bridge.Registry

	home *statefeed.Listener
	away *statefeed.Listener
	recv *cmdlog.Receiver

	launch *launcher.Launcher
	trace  *replay.Writer
	collab Collaborators

	phase        Phase
	roster       *Roster
	pending      *pendingAcks
	expectedBots int
	ready        bool
	pendingReady bool
	tick         uint64

	homePerf protocol.PerfSample
	awayPerf protocol.PerfSample
	homePrev time.Time
	awayPrev time.Time
	perf     Aggregate

	// Caller-visible step pacing.
	stepStart time.Time
	stepSum   time.Duration
	stepCount int64

	stopReq  atomic.Bool
	workers  sync.WaitGroup
	shutdown sync.Once
}

func New(cfg config.Session, sessionID string, logger *log.Logger, collab Collaborators, trace *replay.Writer) *Orchestrator {
	state := NewState()
	running := state.Running

	counter := &command.Counter{}
	o := &Orchestrator{
		cfg:     cfg,
		id:      sessionID,
		log:     logger,
		state:   state,
		counter: counter,
		sender:  command.NewSender(cfg.CommandPath, counter),
		ctl:     bridge.New(8),
		home: statefeed.NewListener("home",
			fmt.Sprintf("%s:%d", cfg.FeedHost, cfg.HomePort), cfg.QueueDepth, running, logger),
		away: statefeed.NewListener("away",
			fmt.Sprintf("%s:%d", cfg.FeedHost, cfg.AwayPort), cfg.QueueDepth, running, logger),
		recv:         cmdlog.NewReceiver(cfg.LogPath, 8*cfg.QueueDepth, running, logger),
		launch:       launcher.New(cfg, logger),
		trace:        trace,
		collab:       collab,
		phase:        PhaseSetup,
		roster:       newRoster(),
		pending:      newPendingAcks(),
		expectedBots: cfg.ExpectedCount,
		pendingReady: true,
	}
	o.ops = o.registry()
	return o
}

func (o *Orchestrator) ID() string             { return o.id }
func (o *Orchestrator) State() *State          { return o.state }
func (o *Orchestrator) Bridge() *bridge.Bridge { return o.ctl }
func (o *Orchestrator) Phase() Phase           { return o.phase }
func (o *Orchestrator) Tickno() uint64         { return o.tick }
func (o *Orchestrator) Roster() *Roster        { return o.roster }

// Deadline is the advisory budget for one caller-visible step.
func (o *Orchestrator) Deadline() time.Duration { return o.cfg.Deadline() }

// Performance exposes the aggregate read-only.
func (o *Orchestrator) Performance() AggregateView { return o.perf.View() }

// Start launches the sim and every worker, publishes the startup artifact,
// and sends the initial draft-enable batch.
func (o *Orchestrator) Start() error {
	if err := o.cfg.Validate(); err != nil {
		return err
	}
	if err := o.launch.Start(); err != nil {
		return err
	}
	if err := command.WriteStartup(o.cfg.StartupPath, o.cfg.DraftStartWait, o.cfg.DraftPickWait); err != nil {
		return err
	}
	o.StartWorkers()

	b := protocol.NewBatch()
	b.Extra = map[string]any{"draft": boolToInt(o.cfg.Draft)}
	if err := o.Send(b); err != nil {
		return err
	}
	o.log.Printf("session %s started", o.id)
	return nil
}

// StartWorkers runs the feed listeners and the log receiver. Split from
// Start so a session can be driven against externally provided feeds.
func (o *Orchestrator) StartWorkers() {
	for _, run := range []func(){o.home.Run, o.away.Run, o.recv.Run} {
		run := run
		o.workers.Add(1)
		go func() {
			defer o.workers.Done()
			run()
		}()
	}
}

// RequestStop asks the loop to stop at the next terminal-condition check.
func (o *Orchestrator) RequestStop() { o.stopReq.Store(true) }

// Stop tears the session down: flips running (one-way), waits for workers
// to drain, and releases the child process. Idempotent.
func (o *Orchestrator) Stop() {
	o.shutdown.Do(func() {
		o.phase = PhaseStopped
		o.state.stopRunning()
		o.workers.Wait()
		o.launch.Stop(o.cfg.StopGrace())
		if o.trace != nil {
			if err := o.trace.Close(); err != nil {
				o.log.Printf("close replay trace: %v", err)
			}
		}
		o.log.Printf("session %s stopped", o.id)
	})
}

// Tick runs one full synchronization step in fixed order and reports
// whether the session reached its terminal state.
func (o *Orchestrator) Tick() bool {
	s := time.Now()
	o.serviceBridge()
	o.state.setHTTPTime(time.Since(s).Seconds())

	s = time.Now()
	o.serviceLog()
	o.state.setIPCTime(time.Since(s).Seconds())

	o.serviceState()

	if o.phase == PhaseAwaitingReady && o.ready && o.roster.Built() {
		o.phase = PhasePlaying
	}
	if o.pendingReady && o.ready {
		o.pendingReady = false
		o.log.Printf("all controlled participants accounted for, game is ready")
	}

	return o.checkTerminal()
}

// Advance wraps one caller-visible step: measure pacing, send the batch,
// run one tick. The deadline is advisory; violating it only logs and
// updates the average.
func (o *Orchestrator) Advance(b *protocol.Batch) (stop bool, err error) {
	if !o.stepStart.IsZero() {
		t := time.Since(o.stepStart)
		if d := o.cfg.Deadline(); t > d {
			o.log.Printf("step took %s, over the %s budget", t, d)
		}
		o.stepSum += t
		o.stepCount++
	}

	if b != nil {
		if serr := o.Send(b); serr != nil {
			err = serr
		}
	}
	stop = o.Tick()
	o.stepStart = time.Now()
	return stop, err
}

// StepAverage is the mean caller-visible step time so far.
func (o *Orchestrator) StepAverage() time.Duration {
	if o.stepCount == 0 {
		return 0
	}
	return o.stepSum / time.Duration(o.stepCount)
}

// Send completes the in-flight performance samples, publishes the batch,
// and registers it for acknowledgment tracking.
func (o *Orchestrator) Send(b *protocol.Batch) error {
	now := time.Now()
	if !o.homePerf.StateApplied.IsZero() && !o.awayPerf.StateApplied.IsZero() {
		o.homePerf.StateReplied = now
		o.awayPerf.StateReplied = now
		d := o.cfg.Deadline()
		o.perf.Add(o.homePerf, o.homePrev, d)
		o.perf.Add(o.awayPerf, o.awayPrev, d)
		o.homePerf = protocol.PerfSample{}
		o.awayPerf = protocol.PerfSample{}
	}
	o.homePrev = now
	o.awayPrev = now

	uid, err := o.sender.Send(b)
	if err != nil {
		return err
	}
	o.pending.note(uid)
	return nil
}

// WaitEndSetup ticks until the draft phase is first observed (or the
// session stops).
func (o *Orchestrator) WaitEndSetup() {
	for o.state.Running() {
		if _, observed := o.state.Draft(); observed {
			return
		}
		time.Sleep(10 * time.Millisecond)
		if o.Tick() {
			return
		}
	}
}

// WaitEndDraft ticks until the roster is ready and playing can start.
func (o *Orchestrator) WaitEndDraft() {
	for o.state.Running() && !o.state.Game() && !o.ready {
		time.Sleep(10 * time.Millisecond)
		if o.Tick() {
			return
		}
	}
}

// serviceBridge pops at most one debug request per tick.
func (o *Orchestrator) serviceBridge() {
	req, ok := o.ctl.Poll()
	if !ok {
		return
	}
	o.ctl.Reply(o.ops.Dispatch(req))
}

// serviceLog pops at most one command-log event per tick.
func (o *Orchestrator) serviceLog() {
	select {
	case ev := <-o.recv.Out():
		o.dispatchEvent(ev)
	default:
	}
}

func (o *Orchestrator) dispatchEvent(ev protocol.Event) {
	switch e := ev.(type) {
	case protocol.ErrorEvent:
		// Remote script errors are diagnostics, not failures.
		o.log.Printf("remote error: %s", e.Message)

	case protocol.AnnounceEvent:
		o.handleAnnounce(e)

	case protocol.AckEvent:
		if o.pending.ack(e.UID, o.expectedBots) {
			o.log.Printf("batch %d acknowledged by all %d participants", e.UID, o.expectedBots)
		}

	case protocol.DraftUpdateEvent:
		o.state.setDraft(true)
		if o.phase == PhaseSetup {
			o.phase = PhaseDrafting
		}
		if o.collab.Draft != nil {
			o.collab.Draft.Update(e.Payload)
		}

	case protocol.DraftEndEvent:
		o.state.setDraft(false)
		if o.phase == PhaseDrafting {
			o.phase = PhaseAwaitingReady
		}
		if o.collab.Draft != nil {
			o.collab.Draft.End(e.Payload)
		}

	case protocol.InfoEvent:
		if o.collab.Info != nil {
			o.collab.Info.Save(e.Raw)
		}
	}
}

func (o *Orchestrator) handleAnnounce(a protocol.AnnounceEvent) {
	// Announces only happen once drafting is over; the DE line can be missed.
	o.state.setDraft(false)
	if o.roster.Built() {
		return
	}
	o.roster.observe(a)
	if o.roster.size() < o.cfg.ExpectedCount {
		return
	}

	override, _ := o.cfg.BotOverride()
	allBots := o.roster.AllBots()
	o.roster.build(override)
	o.expectedBots = o.roster.BotCount()

	if o.phase == PhaseSetup || o.phase == PhaseDrafting {
		o.phase = PhaseAwaitingReady
	}
	if allBots {
		o.state.setGame(true)
		o.ready = true
	} else {
		o.log.Printf("only %d of %d participants are bot-controlled, not marking ready",
			o.expectedBots, o.cfg.ExpectedCount)
	}
}

// serviceState acquires one snapshot per side, hands both to the fusion
// seam, and records the cost. This is the only step allowed to block, and
// it still polls so a stop is observed promptly.
func (o *Orchestrator) serviceState() {
	start := time.Now()
	home, away, ok := o.acquireBoth()
	if !ok {
		return
	}

	if hd, ad := o.home.Depth(), o.away.Depth(); hd > o.cfg.BacklogWarn || ad > o.cfg.BacklogWarn {
		o.log.Printf("running late on state processing (home: %d) (away: %d)", hd, ad)
	}

	o.tick++
	o.homePerf = protocol.PerfSample{StateReceived: home.ReceivedAt}
	o.awayPerf = protocol.PerfSample{StateReceived: away.ReceivedAt}

	if o.trace != nil {
		if err := o.trace.Write(replay.Entry{Tick: o.tick, Home: home.Frame, Away: away.Frame}); err != nil {
			o.log.Printf("replay write: %v", err)
		}
	}

	o.apply(protocol.TeamHome, home.Frame)
	o.homePerf.StateApplied = time.Now()
	o.apply(protocol.TeamAway, away.Frame)
	o.awayPerf.StateApplied = time.Now()

	o.state.setStateTime(time.Since(start).Seconds())
}

func (o *Orchestrator) apply(team int, f *protocol.Frame) {
	if f.Winner != "" {
		o.state.setWin(f.Winner)
	}
	if o.collab.Fuser == nil {
		return
	}
	if err := o.collab.Fuser.Apply(team, f); err != nil {
		o.log.Printf("%s fuse failed: %v", protocol.TeamName(team), err)
	}
}

// acquireBoth polls both side queues until one snapshot each is in hand.
// Returns ok=false when the session stops first.
func (o *Orchestrator) acquireBoth() (home, away statefeed.Snapshot, ok bool) {
	var haveHome, haveAway bool
	poll := o.cfg.PollInterval()
	for o.state.Running() && !o.stopReq.Load() {
		if !haveHome {
			select {
			case home = <-o.home.Out():
				haveHome = true
			default:
			}
		}
		if !haveAway {
			select {
			case away = <-o.away.Out():
				haveAway = true
			default:
			}
		}
		if haveHome && haveAway {
			return home, away, true
		}
		time.Sleep(poll)
	}
	return home, away, false
}

// checkTerminal evaluates the stop conditions and performs teardown once.
func (o *Orchestrator) checkTerminal() bool {
	if win, ok := o.state.Win(); ok {
		o.log.Printf("%s won", win)
		o.Stop()
		return true
	}
	if !o.state.Running() || o.stopReq.Load() || (o.launchedOnce() && !o.launch.Running()) {
		o.Stop()
		return true
	}
	return false
}

func (o *Orchestrator) launchedOnce() bool {
	// The launcher reports not-running before Start as well; only treat a
	// dead child as terminal when one was actually started.
	return o.launch != nil && o.launch.Started()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
