package launcher

import (
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"
	"time"

	"skirmish.ai/internal/config"
)

func testLogger() *log.Logger { return log.New(io.Discard, "", 0) }

func testConfig(t *testing.T) config.Session {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Defaults()
	cfg.Executable = "/bin/sleep"
	cfg.CommandPath = filepath.Join(dir, "commands.lua")
	cfg.LogPath = filepath.Join(dir, "console.log")
	return cfg
}

func TestArgsReflectConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Mode = "duel"
	cfg.Draft = true
	cfg.BotScriptDir = "/opt/bots"
	args := New(cfg, testLogger()).Args()

	want := map[string]bool{"-mode": false, "-dedicated": false, "-draft": false, "-bot_dir": false}
	for _, a := range args {
		if _, ok := want[a]; ok {
			want[a] = true
		}
	}
	for flag, seen := range want {
		if !seen {
			t.Fatalf("argv missing %s: %v", flag, args)
		}
	}
}

func TestStartClearsStaleArtifacts(t *testing.T) {
	cfg := testConfig(t)
	cfg.Executable = "/bin/sleep"
	for _, p := range []string{cfg.CommandPath, cfg.CommandPath + "_tmp", cfg.LogPath} {
		if err := os.WriteFile(p, []byte("stale"), 0o644); err != nil {
			t.Fatalf("seed %s: %v", p, err)
		}
	}

	l := New(cfg, testLogger())
	// /bin/sleep rejects the argv and exits immediately; only the cleanup
	// and launch mechanics matter here.
	if err := l.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer l.Stop(time.Second)

	for _, p := range []string{cfg.CommandPath, cfg.CommandPath + "_tmp", cfg.LogPath} {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Fatalf("stale artifact %s survived", p)
		}
	}
}

func TestStartMissingExecutable(t *testing.T) {
	cfg := testConfig(t)
	cfg.Executable = filepath.Join(t.TempDir(), "no-such-sim")
	l := New(cfg, testLogger())
	if err := l.Start(); err == nil {
		t.Fatalf("expected launch failure")
	}
	if l.Started() {
		t.Fatalf("failed launch should not count as started")
	}
}

func TestRunningTracksChildExit(t *testing.T) {
	cfg := testConfig(t)
	cfg.Executable = "/bin/sleep" // exits at once on the unknown flags
	l := New(cfg, testLogger())
	if l.Running() {
		t.Fatalf("running before start")
	}
	if err := l.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	deadline := time.Now().Add(5 * time.Second)
	for l.Running() {
		if time.Now().After(deadline) {
			t.Fatalf("child never observed as exited")
		}
		time.Sleep(10 * time.Millisecond)
	}
	// Stop on an exited child is a no-op.
	l.Stop(time.Second)
}

func TestStopNeverStarted(t *testing.T) {
	l := New(testConfig(t), testLogger())
	l.Stop(time.Second) // must not panic
}
