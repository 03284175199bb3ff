// Package redisstream mirrors tick summaries to Redis so external dashboards
// can follow a run without touching the simulator process.
package redisstream

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"econgrid.ai/internal/sim/world"
)

// Message is the payload published per tick.
type Message struct {
	RunID   string            `json:"run_id"`
	WorldID string            `json:"world_id"`
	Digest  string            `json:"digest"`
	Summary world.TickSummary `json:"summary"`
}

// Publisher implements world.TickLogger. WriteTick never blocks: entries are
// queued and published by a background goroutine; overflow is dropped.
type Publisher struct {
	rdb     *redis.Client
	runID   string
	worldID string
	timeout time.Duration

	ch      chan Message
	wg      sync.WaitGroup
	once    sync.Once
	closed  atomic.Bool
	dropped atomic.Uint64
	failed  atomic.Uint64
}

func TickChannel(worldID string) string { return fmt.Sprintf("econgrid:%s:ticks", worldID) }
func LatestKey(worldID string) string   { return fmt.Sprintf("econgrid:%s:latest", worldID) }

func New(opts *redis.Options, worldID, runID string) (*Publisher, error) {
	if worldID == "" {
		return nil, fmt.Errorf("world id cannot be empty")
	}
	p := &Publisher{
		rdb:     redis.NewClient(opts),
		runID:   runID,
		worldID: worldID,
		timeout: 2 * time.Second,
		ch:      make(chan Message, 1024),
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.loop()
	}()
	return p, nil
}

func (p *Publisher) Ping(ctx context.Context) error {
	return p.rdb.Ping(ctx).Err()
}

func (p *Publisher) WriteTick(entry world.TickLogEntry) error {
	if p == nil || p.closed.Load() {
		return nil
	}
	msg := Message{RunID: p.runID, WorldID: p.worldID, Digest: entry.Digest, Summary: entry.Summary}
	select {
	case p.ch <- msg:
	default:
		p.dropped.Add(1)
	}
	return nil
}

// Dropped and Failed report queue overflow and Redis errors since start.
func (p *Publisher) Dropped() uint64 { return p.dropped.Load() }
func (p *Publisher) Failed() uint64  { return p.failed.Load() }

func (p *Publisher) Close() error {
	var err error
	p.once.Do(func() {
		p.closed.Store(true)
		close(p.ch)
		p.wg.Wait()
		err = p.rdb.Close()
	})
	return err
}

func (p *Publisher) loop() {
	for msg := range p.ch {
		if err := p.publish(msg); err != nil {
			p.failed.Add(1)
		}
	}
}

func (p *Publisher) publish(msg Message) error {
	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	pipe := p.rdb.TxPipeline()
	pipe.Set(ctx, LatestKey(p.worldID), b, 0)
	pipe.Publish(ctx, TickChannel(p.worldID), b)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("publish tick %d: %w", msg.Summary.Tick, err)
	}
	return nil
}

// Latest reads the most recent published message, or redis.Nil if none.
func Latest(ctx context.Context, rdb *redis.Client, worldID string) (Message, error) {
	var msg Message
	b, err := rdb.Get(ctx, LatestKey(worldID)).Bytes()
	if err != nil {
		return msg, err
	}
	err = json.Unmarshal(b, &msg)
	return msg, err
}
