package indexdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Reader is the query side of the index, used by cmd/admin. It opens its own
// connection so it can run against a live server's WAL database.
type Reader struct {
	conn *sqlx.DB
}

type TickRow struct {
	Tick        uint64 `db:"tick"`
	Digest      string `db:"digest"`
	Mode        string `db:"mode"`
	Trades      int    `db:"trades"`
	Harvests    int    `db:"harvests"`
	Moved       int    `db:"moved"`
	ActivePairs int    `db:"active_pairs"`
	Markets     int    `db:"markets"`
	Rejected    int    `db:"rejected"`
	Repairs     int    `db:"repairs"`
}

type TradeRow struct {
	Tick    uint64 `db:"tick"`
	Seq     int    `db:"seq"`
	Buyer   uint32 `db:"buyer"`
	Seller  uint32 `db:"seller"`
	Good    string `db:"good"`
	Qty     string `db:"qty"`
	Price   string `db:"price"`
	Payment string `db:"payment"`
	Origin  string `db:"origin"`
	Market  uint32 `db:"market"`
}

type MarketEventRow struct {
	Tick         uint64 `db:"tick"`
	Seq          int    `db:"seq"`
	Market       uint32 `db:"market"`
	Kind         string `db:"kind"`
	Good         string `db:"good"`
	Price        string `db:"price"`
	Qty          string `db:"qty"`
	Participants int    `db:"participants"`
	Reason       string `db:"reason"`
}

type SnapshotRow struct {
	Tick    uint64 `db:"tick"`
	Path    string `db:"path"`
	Seed    int64  `db:"seed"`
	Agents  int    `db:"agents"`
	Markets int    `db:"markets"`
	Cells   int    `db:"cells"`
}

type RunRow struct {
	RunID     string `db:"run_id"`
	WorldID   string `db:"world_id"`
	Seed      int64  `db:"seed"`
	StartTick uint64 `db:"start_tick"`
	StartedAt string `db:"started_at"`
}

type Overview struct {
	Ticks         int            `db:"ticks"`
	FirstTick     sql.NullInt64  `db:"first_tick"`
	LastTick      sql.NullInt64  `db:"last_tick"`
	Trades        int            `db:"trades"`
	Harvests      int            `db:"harvests"`
	Rejected      int            `db:"rejected"`
	LastDigest    sql.NullString `db:"-"`
	Formations    int            `db:"-"`
	Dissolutions  int            `db:"-"`
	ConvergeFails int            `db:"-"`
}

func OpenReader(path string) (*Reader, error) {
	conn, err := sqlx.Open("sqlite", path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("open index: %w", err)
	}
	return &Reader{conn: conn}, nil
}

func (r *Reader) Close() error { return r.conn.Close() }

func (r *Reader) Overview(ctx context.Context) (Overview, error) {
	var o Overview
	err := r.conn.GetContext(ctx, &o, `SELECT
		COUNT(*) AS ticks,
		MIN(tick) AS first_tick,
		MAX(tick) AS last_tick,
		COALESCE(SUM(trades),0) AS trades,
		COALESCE(SUM(harvests),0) AS harvests,
		COALESCE(SUM(rejected),0) AS rejected
		FROM ticks`)
	if err != nil {
		return o, err
	}
	if o.LastTick.Valid {
		err = r.conn.GetContext(ctx, &o.LastDigest, `SELECT digest FROM ticks WHERE tick = ?`, o.LastTick.Int64)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return o, err
		}
	}
	if err := r.conn.GetContext(ctx, &o.Formations, `SELECT COUNT(*) FROM market_events WHERE kind = 'market_formation'`); err != nil {
		return o, err
	}
	if err := r.conn.GetContext(ctx, &o.Dissolutions, `SELECT COUNT(*) FROM market_events WHERE kind = 'market_dissolution'`); err != nil {
		return o, err
	}
	if err := r.conn.GetContext(ctx, &o.ConvergeFails, `SELECT COUNT(*) FROM convergence_failures`); err != nil {
		return o, err
	}
	return o, nil
}

// Ticks lists up to limit ticks starting at from, ascending.
func (r *Reader) Ticks(ctx context.Context, from uint64, limit int) ([]TickRow, error) {
	var rows []TickRow
	err := r.conn.SelectContext(ctx, &rows, `SELECT tick,digest,mode,trades,harvests,moved,active_pairs,markets,rejected,repairs
		FROM ticks WHERE tick >= ? ORDER BY tick LIMIT ?`, int64(from), limit)
	return rows, err
}

// Trades lists trades, optionally restricted to one agent (as buyer or seller).
func (r *Reader) Trades(ctx context.Context, agent uint32, from uint64, limit int) ([]TradeRow, error) {
	var rows []TradeRow
	q := `SELECT tick,seq,buyer,seller,good,qty,price,payment,origin,market FROM trades WHERE tick >= ?`
	args := []any{int64(from)}
	if agent != 0 {
		q += ` AND (buyer = ? OR seller = ?)`
		args = append(args, int64(agent), int64(agent))
	}
	q += ` ORDER BY tick, seq LIMIT ?`
	args = append(args, limit)
	err := r.conn.SelectContext(ctx, &rows, q, args...)
	return rows, err
}

func (r *Reader) MarketEvents(ctx context.Context, market uint32, limit int) ([]MarketEventRow, error) {
	var rows []MarketEventRow
	q := `SELECT tick,seq,market,kind,good,price,qty,participants,reason FROM market_events`
	var args []any
	if market != 0 {
		q += ` WHERE market = ?`
		args = append(args, int64(market))
	}
	q += ` ORDER BY tick, seq LIMIT ?`
	args = append(args, limit)
	err := r.conn.SelectContext(ctx, &rows, q, args...)
	return rows, err
}

func (r *Reader) Snapshots(ctx context.Context) ([]SnapshotRow, error) {
	var rows []SnapshotRow
	err := r.conn.SelectContext(ctx, &rows, `SELECT tick,path,seed,agents,markets,cells FROM snapshots ORDER BY tick`)
	return rows, err
}

func (r *Reader) Runs(ctx context.Context) ([]RunRow, error) {
	var rows []RunRow
	err := r.conn.SelectContext(ctx, &rows, `SELECT run_id,world_id,seed,start_tick,started_at FROM runs ORDER BY started_at`)
	return rows, err
}
