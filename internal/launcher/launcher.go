// Package launcher owns the external sim process: argv construction, stale
// artifact cleanup, start, and bounded-grace stop.
package launcher

import (
	"fmt"
	"log"
	"os"
	"os/exec"
	"strconv"
	"time"

	"skirmish.ai/internal/config"
)

type Launcher struct {
	cfg config.Session
	log *log.Logger

	cmd  *exec.Cmd
	done chan struct{}
}

func New(cfg config.Session, logger *log.Logger) *Launcher {
	return &Launcher{cfg: cfg, log: logger}
}

// Args is the sim argv derived from the session config. Exposed so the
// runner can print the exact invocation.
func (l *Launcher) Args() []string {
	c := l.cfg
	args := []string{
		"-mode", c.Mode,
		"-home_feed_port", strconv.Itoa(c.HomePort),
		"-away_feed_port", strconv.Itoa(c.AwayPort),
		"-timescale", strconv.FormatFloat(c.TimeScale, 'f', -1, 64),
		"-ticks_per_observation", strconv.Itoa(c.TicksPerObs),
		"-command_file", c.CommandPath,
		"-console_log", c.LogPath,
	}
	if c.BotScriptDir != "" {
		args = append(args, "-bot_dir", c.BotScriptDir)
	}
	if c.Dedicated {
		args = append(args, "-dedicated")
	}
	if c.Draft {
		args = append(args, "-draft")
	}
	return args
}

// Start clears the stale file-channel artifacts of a previous run and
// launches the sim. A missing executable is fatal to the caller.
func (l *Launcher) Start() error {
	for _, p := range []string{l.cfg.CommandPath, l.cfg.CommandPath + "_tmp", l.cfg.LogPath} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			l.log.Printf("remove stale artifact %s: %v", p, err)
		}
	}

	cmd := exec.Command(l.cfg.Executable, l.Args()...)
	// Sim output is noise; the command log is the channel that matters.
	cmd.Stdout = nil
	cmd.Stderr = nil
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("launch %s: %w", l.cfg.Executable, err)
	}

	l.cmd = cmd
	l.done = make(chan struct{})
	go func() {
		_ = cmd.Wait()
		close(l.done)
	}()
	l.log.Printf("sim started pid=%d", cmd.Process.Pid)
	return nil
}

// Started reports whether a child was ever launched.
func (l *Launcher) Started() bool { return l.cmd != nil }

// Running reports whether the child is still alive.
func (l *Launcher) Running() bool {
	if l.cmd == nil {
		return false
	}
	select {
	case <-l.done:
		return false
	default:
		return true
	}
}

// Stop waits up to grace for a voluntary exit, then kills. Safe to call on
// an already-exited or never-started child; teardown errors are logged only.
func (l *Launcher) Stop(grace time.Duration) {
	if l.cmd == nil {
		return
	}
	select {
	case <-l.done:
		return
	case <-time.After(grace):
	}

	l.log.Printf("sim did not exit within %s, killing", grace)
	if err := l.cmd.Process.Kill(); err != nil {
		l.log.Printf("kill sim: %v", err)
	}
	<-l.done
}
