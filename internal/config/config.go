package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"skirmish.ai/internal/protocol"
)

// Session carries every tunable of one harness session. Loaded once at
// startup; treated as immutable afterwards.
type Session struct {
	Executable   string `yaml:"executable"`
	BotScriptDir string `yaml:"bot_script_dir"`
	Dedicated    bool   `yaml:"dedicated"`
	Mode         string `yaml:"mode"`
	Draft        bool   `yaml:"draft"`

	FeedHost string `yaml:"feed_host"`
	HomePort int    `yaml:"home_port"`
	AwayPort int    `yaml:"away_port"`

	// Filesystem channels shared with the sim.
	CommandPath string `yaml:"command_path"` // outbound command artifact
	LogPath     string `yaml:"log_path"`     // remote command log
	StartupPath string `yaml:"startup_path"` // session-start config artifact

	DataDir      string `yaml:"data_dir"`
	BridgeListen string `yaml:"bridge_listen"` // empty disables the bridge front end
	InfoDBPath   string `yaml:"info_db_path"`  // empty disables the telemetry sink

	TickInterval  float64 `yaml:"tick_interval"` // seconds per sim tick
	TicksPerObs   int     `yaml:"ticks_per_observation"`
	TimeScale     float64 `yaml:"time_scale"`
	ExpectedCount int     `yaml:"expected_participants"`

	// Forwarded to the remote scripts through the startup artifact.
	DraftStartWait int `yaml:"draft_start_wait"`
	DraftPickWait  int `yaml:"draft_pick_wait"`

	QueueDepth     int `yaml:"queue_depth"`
	PollIntervalMs int `yaml:"poll_interval_ms"`
	StopGraceMs    int `yaml:"stop_grace_ms"`
	BacklogWarn    int `yaml:"backlog_warn"`

	// ModeBots overrides the announced bot ids for modes known to spawn
	// extra non-playing participants.
	ModeBots map[string][]int `yaml:"mode_bots"`
}

func Defaults() Session {
	return Session{
		Dedicated:      true,
		Mode:           "allpick",
		FeedHost:       "127.0.0.1",
		HomePort:       12120,
		AwayPort:       12121,
		CommandPath:    "bots/commands.lua",
		LogPath:        "bots/console.log",
		StartupPath:    "bots/startup.lua",
		DataDir:        "./data",
		TickInterval:   1.0 / 30.0,
		TicksPerObs:    4,
		TimeScale:      2,
		ExpectedCount:  protocol.ExpectedCount,
		DraftStartWait: 10,
		DraftPickWait:  1,
		QueueDepth:     32,
		PollIntervalMs: 1,
		StopGraceMs:    2000,
		BacklogWarn:    2,
		ModeBots: map[string][]int{
			"duel": {0, protocol.AwayFirstSlot},
		},
	}
}

func Load(path string) (Session, error) {
	s := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return s, err
	}
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return s, fmt.Errorf("session.yaml: %w", err)
	}
	return s, nil
}

// Validate catches the launch-fatal misconfigurations up front.
func (s Session) Validate() error {
	if s.Executable == "" {
		return fmt.Errorf("executable not set")
	}
	if s.HomePort <= 0 || s.AwayPort <= 0 {
		return fmt.Errorf("feed ports must be positive")
	}
	if s.HomePort == s.AwayPort {
		return fmt.Errorf("home and away feed ports clash (%d)", s.HomePort)
	}
	if s.TickInterval <= 0 || s.TicksPerObs <= 0 || s.TimeScale <= 0 {
		return fmt.Errorf("tick budget parameters must be positive")
	}
	if s.ExpectedCount <= 0 {
		return fmt.Errorf("expected_participants must be positive")
	}
	return nil
}

// Deadline is the advisory time budget between two caller-visible
// observations.
func (s Session) Deadline() time.Duration {
	secs := s.TickInterval * float64(s.TicksPerObs) / s.TimeScale
	return time.Duration(secs * float64(time.Second))
}

func (s Session) PollInterval() time.Duration {
	if s.PollIntervalMs <= 0 {
		return time.Millisecond
	}
	return time.Duration(s.PollIntervalMs) * time.Millisecond
}

func (s Session) StopGrace() time.Duration {
	if s.StopGraceMs <= 0 {
		return 2 * time.Second
	}
	return time.Duration(s.StopGraceMs) * time.Millisecond
}

// BotOverride returns the forced bot id set for the configured mode, if any.
func (s Session) BotOverride() ([]int, bool) {
	ids, ok := s.ModeBots[s.Mode]
	return ids, ok
}
