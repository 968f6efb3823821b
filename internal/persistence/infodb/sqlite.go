// Package infodb persists `I` telemetry events. It is an optional sink: a
// nil *SQLiteSink silently drops everything.
package infodb

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"
)

type SQLiteSink struct {
	db      *sql.DB
	session string

	ch   chan row
	wg   sync.WaitGroup
	once sync.Once

	closed  atomic.Bool
	dropped atomic.Uint64
}

type row struct {
	receivedAt string
	raw        []byte
}

func OpenSQLite(path, sessionID string) (*SQLiteSink, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteSink{
		db:      db,
		session: sessionID,
		// Telemetry is bursty right after fights; buffer generously so the
		// tick loop never stalls on it.
		ch: make(chan row, 8192),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS info (
			session_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			received_at TEXT NOT NULL,
			raw_json TEXT NOT NULL,
			PRIMARY KEY (session_id, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_info_session ON info(session_id);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// Save enqueues one raw event. Never blocks the tick loop: a full buffer
// drops the event and counts it.
func (s *SQLiteSink) Save(raw json.RawMessage) {
	if s == nil || s.closed.Load() {
		return
	}
	r := row{
		receivedAt: time.Now().UTC().Format(time.RFC3339Nano),
		raw:        append([]byte(nil), raw...),
	}
	select {
	case s.ch <- r:
	default:
		s.dropped.Add(1)
	}
}

func (s *SQLiteSink) Dropped() uint64 {
	if s == nil {
		return 0
	}
	return s.dropped.Load()
}

// Count reports the rows persisted for this session so far.
func (s *SQLiteSink) Count() (int, error) {
	if s == nil {
		return 0, nil
	}
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM info WHERE session_id = ?`, s.session).Scan(&n)
	return n, err
}

// Close drains pending rows and releases the database.
func (s *SQLiteSink) Close() error {
	if s == nil {
		return nil
	}
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteSink) loop() {
	seq := 0
	for r := range s.ch {
		seq++
		if _, err := s.db.Exec(
			`INSERT INTO info (session_id, seq, received_at, raw_json) VALUES (?, ?, ?, ?)`,
			s.session, seq, r.receivedAt, string(r.raw),
		); err != nil {
			s.dropped.Add(1)
		}
	}
}
