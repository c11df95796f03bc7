package indexdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	plog "voxelmind.ai/internal/persistence/log"
)

// SQLiteIndex is a queryable secondary index of decision rounds and chat.
// Writes go through a buffered channel to a single writer goroutine and are
// dropped when it falls behind; the JSONL journal stays the source of truth.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropRoundTotal atomic.Uint64
	dropChatTotal  atomic.Uint64
}

type reqKind int

const (
	reqRound reqKind = iota + 1
	reqChat
)

type req struct {
	kind  reqKind
	round plog.RoundEntry
	chat  plog.ChatEntry
}

// Stats reports queue health.
type Stats struct {
	QueueDepth     int
	QueueCapacity  int
	DropRoundTotal uint64
	DropChatTotal  uint64
}

// RoundRow is one indexed round.
type RoundRow struct {
	ID        int64
	Tick      int64
	RequestID string
	Mode      string
	Provider  string
	Outcome   string
	LatencyMS int64
	Chat      string
	Nav       *[3]int
	RawJSON   string
}

const defaultQueue = 4096

func OpenSQLite(path string) (*SQLiteIndex, error) {
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

	s := &SQLiteIndex{
		db: db,
		ch: make(chan req, defaultQueue),
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
		`CREATE TABLE IF NOT EXISTS rounds (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			tick INTEGER NOT NULL,
			request_id TEXT NOT NULL,
			mode TEXT NOT NULL,
			provider TEXT NOT NULL,
			outcome TEXT NOT NULL,
			latency_ms INTEGER NOT NULL,
			chat TEXT,
			nav_dx INTEGER,
			nav_dy INTEGER,
			nav_dz INTEGER,
			raw_json TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_rounds_tick ON rounds(tick);`,
		`CREATE INDEX IF NOT EXISTS idx_rounds_outcome ON rounds(outcome, tick);`,
		`CREATE TABLE IF NOT EXISTS chat (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			tick INTEGER NOT NULL,
			role TEXT NOT NULL,
			sender TEXT,
			text TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_chat_tick ON chat(tick);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) RecordRound(e plog.RoundEntry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqRound, round: e}:
	default:
		s.dropRoundTotal.Add(1)
	}
	return nil
}

func (s *SQLiteIndex) RecordChat(e plog.ChatEntry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqChat, chat: e}:
	default:
		s.dropChatTotal.Add(1)
	}
	return nil
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:     len(s.ch),
		QueueCapacity:  cap(s.ch),
		DropRoundTotal: s.dropRoundTotal.Load(),
		DropChatTotal:  s.dropChatTotal.Load(),
	}
}

// RecentRounds returns the newest n rounds, newest first. Rounds still in
// the writer's open transaction are not visible yet.
func (s *SQLiteIndex) RecentRounds(ctx context.Context, n int) ([]RoundRow, error) {
	if n <= 0 {
		n = 20
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id,tick,request_id,mode,provider,outcome,latency_ms,
		COALESCE(chat,''),nav_dx,nav_dy,nav_dz,raw_json FROM rounds ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RoundRow
	for rows.Next() {
		var r RoundRow
		var dx, dy, dz sql.NullInt64
		if err := rows.Scan(&r.ID, &r.Tick, &r.RequestID, &r.Mode, &r.Provider, &r.Outcome, &r.LatencyMS,
			&r.Chat, &dx, &dy, &dz, &r.RawJSON); err != nil {
			return nil, err
		}
		if dx.Valid && dy.Valid && dz.Valid {
			r.Nav = &[3]int{int(dx.Int64), int(dy.Int64), int(dz.Int64)}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// OutcomeCounts returns the number of rounds per outcome.
func (s *SQLiteIndex) OutcomeCounts(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT outcome, COUNT(*) FROM rounds GROUP BY outcome`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]int{}
	for rows.Next() {
		var k string
		var n int
		if err := rows.Scan(&k, &n); err != nil {
			return nil, err
		}
		out[k] = n
	}
	return out, rows.Err()
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertRound, _ := s.db.Prepare(`INSERT INTO rounds(tick,request_id,mode,provider,outcome,latency_ms,chat,nav_dx,nav_dy,nav_dz,raw_json) VALUES(?,?,?,?,?,?,?,?,?,?,?)`)
	insertChat, _ := s.db.Prepare(`INSERT INTO chat(tick,role,sender,text) VALUES(?,?,?,?)`)
	defer func() {
		if insertRound != nil {
			_ = insertRound.Close()
		}
		if insertChat != nil {
			_ = insertChat.Close()
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 200
		commitMaxWait = time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}

	for r := range s.ch {
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqRound:
			e := r.round
			if insertRound == nil {
				break
			}
			raw, _ := json.Marshal(e)
			var dx, dy, dz any
			if e.Nav != nil {
				dx, dy, dz = e.Nav[0], e.Nav[1], e.Nav[2]
			}
			var chat any
			if e.Chat != "" {
				chat = e.Chat
			}
			if _, err := tx.Stmt(insertRound).Exec(e.Tick, e.RequestID, e.Mode, e.Provider, e.Outcome, e.LatencyMS,
				chat, dx, dy, dz, string(raw)); err != nil {
				rollback()
				continue
			}
			opCount++

		case reqChat:
			c := r.chat
			if insertChat == nil {
				break
			}
			if _, err := tx.Stmt(insertChat).Exec(c.Tick, c.Role, c.Sender, c.Text); err != nil {
				rollback()
				continue
			}
			opCount++
		}
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}

	commit()
}
