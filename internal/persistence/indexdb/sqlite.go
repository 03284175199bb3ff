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

	"econgrid.ai/internal/persistence/snapshot"
	"econgrid.ai/internal/sim/world"
	"econgrid.ai/internal/sim/world/kernel/model"
)

// SQLiteIndex is a write-behind read model of the tick log. The world calls
// WriteTick on its own goroutine; rows are committed in batches by a single
// writer goroutine and dropped (and counted) when the queue is full.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropTick     atomic.Uint64
	dropSnapshot atomic.Uint64
	writeErrors  atomic.Uint64
}

type reqKind int

const (
	reqTick reqKind = iota + 1
	reqSnapshot
)

type req struct {
	kind reqKind

	tick     world.TickLogEntry
	snapshot snapshotRow
}

type snapshotRow struct {
	Tick    uint64
	Path    string
	Seed    int64
	Agents  int
	Markets int
	Cells   int
}

type Stats struct {
	QueueDepth        int
	QueueCapacity     int
	DropTickTotal     uint64
	DropSnapshotTotal uint64
	WriteErrorTotal   uint64
}

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
		ch: make(chan req, 65536),
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
		"PRAGMA foreign_keys=ON;",
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
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			world_id TEXT NOT NULL,
			seed INTEGER NOT NULL,
			start_tick INTEGER NOT NULL,
			scenario_json TEXT NOT NULL,
			started_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS ticks (
			tick INTEGER PRIMARY KEY,
			digest TEXT NOT NULL,
			mode TEXT NOT NULL,
			trades INTEGER NOT NULL,
			harvests INTEGER NOT NULL,
			moved INTEGER NOT NULL,
			active_pairs INTEGER NOT NULL,
			markets INTEGER NOT NULL,
			rejected INTEGER NOT NULL,
			repairs INTEGER NOT NULL,
			raw_json TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS trades (
			tick INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			buyer INTEGER NOT NULL,
			seller INTEGER NOT NULL,
			good TEXT NOT NULL,
			qty TEXT NOT NULL,
			price TEXT NOT NULL,
			payment TEXT NOT NULL,
			origin TEXT NOT NULL,
			market INTEGER NOT NULL,
			PRIMARY KEY (tick, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_trades_buyer_tick ON trades(buyer, tick);`,
		`CREATE INDEX IF NOT EXISTS idx_trades_seller_tick ON trades(seller, tick);`,
		`CREATE TABLE IF NOT EXISTS market_events (
			tick INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			market INTEGER NOT NULL,
			kind TEXT NOT NULL,
			good TEXT NOT NULL,
			price TEXT NOT NULL,
			qty TEXT NOT NULL,
			participants INTEGER NOT NULL,
			reason TEXT NOT NULL,
			PRIMARY KEY (tick, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_market_events_market_tick ON market_events(market, tick);`,
		`CREATE TABLE IF NOT EXISTS convergence_failures (
			tick INTEGER NOT NULL,
			market INTEGER NOT NULL,
			good TEXT NOT NULL,
			iterations INTEGER NOT NULL,
			last_price TEXT NOT NULL,
			PRIMARY KEY (tick, market, good)
		);`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			tick INTEGER PRIMARY KEY,
			path TEXT NOT NULL,
			seed INTEGER NOT NULL,
			agents INTEGER NOT NULL,
			markets INTEGER NOT NULL,
			cells INTEGER NOT NULL
		);`,
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

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:        len(s.ch),
		QueueCapacity:     cap(s.ch),
		DropTickTotal:     s.dropTick.Load(),
		DropSnapshotTotal: s.dropSnapshot.Load(),
		WriteErrorTotal:   s.writeErrors.Load(),
	}
}

func (s *SQLiteIndex) WriteTick(entry world.TickLogEntry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqTick, tick: entry}:
	default:
		// JSONL logs remain the source of truth.
		s.dropTick.Add(1)
	}
	return nil
}

func (s *SQLiteIndex) RecordSnapshot(path string, snap snapshot.SnapshotV1) {
	if s == nil || s.closed.Load() {
		return
	}
	r := snapshotRow{
		Tick:    snap.Header.Tick,
		Path:    path,
		Seed:    snap.Seed,
		Agents:  len(snap.Agents),
		Markets: len(snap.Markets),
		Cells:   len(snap.Cells),
	}
	select {
	case s.ch <- req{kind: reqSnapshot, snapshot: r}:
	default:
		s.dropSnapshot.Add(1)
	}
}

// RecordRun stores run metadata synchronously. Call it before the world starts.
func (s *SQLiteIndex) RecordRun(runID, worldID string, seed int64, startTick uint64, scenario any) error {
	if s == nil {
		return nil
	}
	b, err := json.Marshal(scenario)
	if err != nil {
		return err
	}
	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('world_id',?)`, worldID); err != nil {
		return err
	}
	if _, err := tx.Exec(
		`INSERT OR REPLACE INTO runs(run_id,world_id,seed,start_tick,scenario_json,started_at) VALUES(?,?,?,?,?,?)`,
		runID, worldID, seed, int64(startTick), string(b), time.Now().UTC().Format(time.RFC3339Nano),
	); err != nil {
		return err
	}
	return tx.Commit()
}

type statements struct {
	tick, trade, marketEvent, failure, snapshot *sql.Stmt
}

func (st *statements) close() {
	for _, s := range []*sql.Stmt{st.tick, st.trade, st.marketEvent, st.failure, st.snapshot} {
		if s != nil {
			_ = s.Close()
		}
	}
}

func (s *SQLiteIndex) prepare() (*statements, error) {
	st := &statements{}
	var err error
	prep := func(q string) *sql.Stmt {
		if err != nil {
			return nil
		}
		var p *sql.Stmt
		p, err = s.db.Prepare(q)
		return p
	}
	st.tick = prep(`INSERT OR REPLACE INTO ticks(tick,digest,mode,trades,harvests,moved,active_pairs,markets,rejected,repairs,raw_json) VALUES(?,?,?,?,?,?,?,?,?,?,?)`)
	st.trade = prep(`INSERT OR REPLACE INTO trades(tick,seq,buyer,seller,good,qty,price,payment,origin,market) VALUES(?,?,?,?,?,?,?,?,?,?)`)
	st.marketEvent = prep(`INSERT OR REPLACE INTO market_events(tick,seq,market,kind,good,price,qty,participants,reason) VALUES(?,?,?,?,?,?,?,?,?)`)
	st.failure = prep(`INSERT OR REPLACE INTO convergence_failures(tick,market,good,iterations,last_price) VALUES(?,?,?,?,?)`)
	st.snapshot = prep(`INSERT OR REPLACE INTO snapshots(tick,path,seed,agents,markets,cells) VALUES(?,?,?,?,?,?)`)
	if err != nil {
		st.close()
		return nil, err
	}
	return st, nil
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	st, err := s.prepare()
	if err != nil {
		// Drain so producers never see a full queue from a dead writer.
		for range s.ch {
			s.writeErrors.Add(1)
		}
		return
	}
	defer st.close()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 2000
		commitMaxWait = 2 * time.Second
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
		if err := tx.Commit(); err != nil {
			s.writeErrors.Add(1)
		}
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		s.writeErrors.Add(1)
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}

	for r := range s.ch {
		begin()
		if tx == nil {
			s.writeErrors.Add(1)
			continue
		}
		var n int
		var err error
		switch r.kind {
		case reqTick:
			n, err = writeTick(tx, st, r.tick)
		case reqSnapshot:
			sn := r.snapshot
			_, err = tx.Stmt(st.snapshot).Exec(int64(sn.Tick), sn.Path, sn.Seed, sn.Agents, sn.Markets, sn.Cells)
			n = 1
		}
		if err != nil {
			rollback()
			continue
		}
		opCount += n
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}

	commit()
}

func writeTick(tx *sql.Tx, st *statements, e world.TickLogEntry) (int, error) {
	raw, err := json.Marshal(e.Summary)
	if err != nil {
		return 0, err
	}
	sum := e.Summary
	tick := int64(e.Tick)
	if _, err := tx.Stmt(st.tick).Exec(
		tick,
		e.Digest,
		string(e.Mode),
		sum.Trades,
		sum.Harvests,
		sum.Moved,
		len(sum.ActivePairs),
		len(sum.Markets),
		len(sum.Rejected),
		len(sum.Repairs),
		string(raw),
	); err != nil {
		return 0, err
	}
	ops := 1

	tradeSeq, marketSeq := 0, 0
	for _, eff := range e.Effects {
		switch eff.Kind {
		case model.EffectTrade:
			if _, err := tx.Stmt(st.trade).Exec(
				tick, tradeSeq,
				int64(eff.Agent), int64(eff.Other),
				eff.Good, eff.Qty.String(), eff.Price.String(), eff.Payment.String(),
				string(eff.Origin), int64(eff.Market),
			); err != nil {
				return ops, err
			}
			tradeSeq++
		case model.EffectMarketClear, model.EffectMarketFormation, model.EffectMarketDissolution:
			if _, err := tx.Stmt(st.marketEvent).Exec(
				tick, marketSeq,
				int64(eff.Market), string(eff.Kind),
				eff.Good, eff.Price.String(), eff.Qty.String(),
				eff.Participants, eff.Reason,
			); err != nil {
				return ops, err
			}
			marketSeq++
		default:
			continue
		}
		ops++
	}
	for _, f := range sum.ConvergenceFailures {
		if _, err := tx.Stmt(st.failure).Exec(tick, int64(f.Market), f.Good, f.Iterations, f.LastPrice); err != nil {
			return ops, err
		}
		ops++
	}
	return ops, nil
}
