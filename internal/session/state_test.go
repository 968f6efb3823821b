package session

import "testing"

func TestStateRunningIsOneWay(t *testing.T) {
	s := NewState()
	if !s.Running() {
		t.Fatalf("fresh state not running")
	}
	s.stopRunning()
	if s.Running() {
		t.Fatalf("stopRunning did not stick")
	}
}

func TestStateDraftTriState(t *testing.T) {
	s := NewState()
	if _, observed := s.Draft(); observed {
		t.Fatalf("draft observed before any event")
	}
	s.setDraft(true)
	if active, observed := s.Draft(); !observed || !active {
		t.Fatalf("draft=(%v,%v) want (true,true)", active, observed)
	}
	s.setDraft(false)
	if active, observed := s.Draft(); !observed || active {
		t.Fatalf("draft=(%v,%v) want (false,true)", active, observed)
	}
}

func TestStateWinFirstObservationWins(t *testing.T) {
	s := NewState()
	if _, ok := s.Win(); ok {
		t.Fatalf("win before any observation")
	}
	s.setWin("home")
	s.setWin("away")
	if win, ok := s.Win(); !ok || win != "home" {
		t.Fatalf("win=%q want home", win)
	}
}

func TestStateSnapshot(t *testing.T) {
	s := NewState()
	s.setDraft(true)
	s.setGame(true)
	s.setHTTPTime(0.001)

	v := s.Snapshot()
	if !v.Running || !v.Game || v.HTTPTime != 0.001 {
		t.Fatalf("snapshot=%+v", v)
	}
	if v.Draft == nil || !*v.Draft {
		t.Fatalf("snapshot draft=%v want true", v.Draft)
	}

	// The snapshot is a copy.
	s.setDraft(false)
	if !*v.Draft {
		t.Fatalf("snapshot aliases live state")
	}
}
