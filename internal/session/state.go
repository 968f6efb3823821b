package session

import "sync"

// State is the session-wide shared view. Single-writer discipline: only the
// orchestrator mutates it; workers and bridge ops read individual keys.
// Reads are atomic per key only; there are no multi-key transactions.
type State struct {
	mu      sync.RWMutex
	running bool
	draft   *bool // nil until the draft phase has been observed
	game    bool
	win     string

	httpTime  float64
	ipcTime   float64
	stateTime float64
}

func NewState() *State {
	return &State{running: true}
}

func (s *State) Running() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// stopRunning is one-way: once false, running never returns to true within
// a session.
func (s *State) stopRunning() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

// Draft reports the draft flag and whether it has been observed at all.
func (s *State) Draft() (active, observed bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.draft == nil {
		return false, false
	}
	return *s.draft, true
}

func (s *State) setDraft(active bool) {
	s.mu.Lock()
	s.draft = &active
	s.mu.Unlock()
}

func (s *State) Game() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.game
}

func (s *State) setGame(v bool) {
	s.mu.Lock()
	s.game = v
	s.mu.Unlock()
}

// Win returns the winning side name once one has been observed.
func (s *State) Win() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.win, s.win != ""
}

func (s *State) setWin(side string) {
	s.mu.Lock()
	if s.win == "" {
		s.win = side
	}
	s.mu.Unlock()
}

func (s *State) setHTTPTime(v float64)  { s.mu.Lock(); s.httpTime = v; s.mu.Unlock() }
func (s *State) setIPCTime(v float64)   { s.mu.Lock(); s.ipcTime = v; s.mu.Unlock() }
func (s *State) setStateTime(v float64) { s.mu.Lock(); s.stateTime = v; s.mu.Unlock() }

// View is an immutable copy for readers that want several keys at once.
// The keys may still reflect slightly different tick boundaries.
type View struct {
	Running   bool    `json:"running"`
	Draft     *bool   `json:"draft,omitempty"`
	Game      bool    `json:"game"`
	Win       string  `json:"win,omitempty"`
	HTTPTime  float64 `json:"http_time"`
	IPCTime   float64 `json:"ipc_time"`
	StateTime float64 `json:"state_time"`
}

func (s *State) Snapshot() View {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v := View{
		Running:   s.running,
		Game:      s.game,
		Win:       s.win,
		HTTPTime:  s.httpTime,
		IPCTime:   s.ipcTime,
		StateTime: s.stateTime,
	}
	if s.draft != nil {
		d := *s.draft
		v.Draft = &d
	}
	return v
}
