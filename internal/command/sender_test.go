package command

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"skirmish.ai/internal/protocol"
)

func TestSenderAssignsIncreasingUIDs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cmd.lua")
	var counter Counter
	s := NewSender(path, &counter)

	var prev uint64
	for i := 0; i < 5; i++ {
		uid, err := s.Send(protocol.NewBatch())
		if err != nil {
			t.Fatalf("send %d: %v", i, err)
		}
		if uid <= prev {
			t.Fatalf("uid %d not above %d", uid, prev)
		}
		prev = uid
	}
	if counter.Current() != prev {
		t.Fatalf("counter=%d want %d", counter.Current(), prev)
	}
}

func TestSenderPublishesDecodableArtifact(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cmd.lua")
	var counter Counter
	s := NewSender(path, &counter)

	b := protocol.NewBatch()
	b.Action(2)["move"] = []int{10, 20}
	uid, err := s.Send(b)
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	inner := bytes.TrimSuffix(bytes.TrimPrefix(data, []byte("return '")), []byte("'"))
	var m map[string]json.RawMessage
	if err := json.Unmarshal(inner, &m); err != nil {
		t.Fatalf("decode artifact: %v", err)
	}
	var gotUID uint64
	if err := json.Unmarshal(m["uid"], &gotUID); err != nil || gotUID != uid {
		t.Fatalf("artifact uid=%s want %d", m["uid"], uid)
	}
}

// A reader polling the fixed path must only ever see a complete artifact,
// even while the sender overwrites it.
func TestSenderNeverExposesPartialWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cmd.lua")
	var counter Counter
	s := NewSender(path, &counter)

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			data, err := os.ReadFile(path)
			if err != nil {
				continue // not yet published
			}
			if !bytes.HasPrefix(data, []byte("return '")) || data[len(data)-1] != '\'' {
				t.Errorf("observed partial artifact: %q", data)
				return
			}
		}
	}()

	for i := 0; i < 200; i++ {
		if _, err := s.Send(protocol.NewBatch()); err != nil {
			t.Fatalf("send %d: %v", i, err)
		}
	}
	close(stop)
	wg.Wait()
}

func TestWriteAtomicClearsStaleTemp(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cmd.lua")
	tmp := path + "_tmp"
	if err := os.WriteFile(tmp, []byte("leftover"), 0o644); err != nil {
		t.Fatalf("seed stale temp: %v", err)
	}
	var counter Counter
	if _, err := NewSender(path, &counter).Send(protocol.NewBatch()); err != nil {
		t.Fatalf("send: %v", err)
	}
	if _, err := os.Stat(tmp); !os.IsNotExist(err) {
		t.Fatalf("stale temp still present: %v", err)
	}
}

func TestWriteStartup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "startup.lua")
	if err := WriteStartup(path, 10, 5); err != nil {
		t.Fatalf("write startup: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	inner := bytes.TrimSuffix(bytes.TrimPrefix(data, []byte("return '")), []byte("'"))
	var m map[string]int
	if err := json.Unmarshal(inner, &m); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if m["uid"] != 1 || m["draft_start_wait"] != 10 || m["draft_pick_wait"] != 5 {
		t.Fatalf("startup=%v", m)
	}
}
