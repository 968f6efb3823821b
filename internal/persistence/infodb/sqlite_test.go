package infodb

import (
	"fmt"
	"path/filepath"
	"testing"
)

func TestSaveAndCount(t *testing.T) {
	path := filepath.Join(t.TempDir(), "info.db")
	s, err := OpenSQLite(path, "sess-1")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	for i := 0; i < 10; i++ {
		s.Save([]byte(fmt.Sprintf(`{"gold":%d}`, i*100)))
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	// Reopen under another session id; the old rows stay attributed to the
	// first one.
	s2, err := OpenSQLite(path, "sess-1")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	n, err := s2.Count()
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 10 {
		t.Fatalf("rows=%d want 10", n)
	}
	if s2.Dropped() != 0 {
		t.Fatalf("dropped=%d want 0", s2.Dropped())
	}
}

func TestSessionsAreIsolated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "info.db")
	a, err := OpenSQLite(path, "sess-a")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	a.Save([]byte(`{"k":1}`))
	if err := a.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	b, err := OpenSQLite(path, "sess-b")
	if err != nil {
		t.Fatalf("open second session: %v", err)
	}
	defer b.Close()
	n, err := b.Count()
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Fatalf("sess-b rows=%d want 0", n)
	}
}

func TestNilSinkIsSafe(t *testing.T) {
	var s *SQLiteSink
	s.Save([]byte(`{"k":1}`))
	if n, err := s.Count(); err != nil || n != 0 {
		t.Fatalf("nil count: n=%d err=%v", n, err)
	}
	if s.Dropped() != 0 {
		t.Fatalf("nil dropped")
	}
	if err := s.Close(); err != nil {
		t.Fatalf("nil close: %v", err)
	}
}

func TestSaveAfterClose(t *testing.T) {
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "info.db"), "sess-1")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	s.Save([]byte(`{"late":true}`)) // must not panic on the closed channel
}
