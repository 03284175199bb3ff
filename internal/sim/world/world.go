package world

import (
	"fmt"
	"io"
	"log"
	"sort"
	"sync"
	"sync/atomic"

	"econgrid.ai/internal/persistence/snapshot"
	"econgrid.ai/internal/sim/world/feature/bargaining"
	"econgrid.ai/internal/sim/world/feature/market"
	"econgrid.ai/internal/sim/world/feature/matching"
	"econgrid.ai/internal/sim/world/feature/resources"
	"econgrid.ai/internal/sim/world/feature/search"
	"econgrid.ai/internal/sim/world/feature/spatial"
	"econgrid.ai/internal/sim/world/feature/utility"
	"econgrid.ai/internal/sim/world/kernel/model"
)

// World is a single-threaded authoritative simulation.
// All state must be accessed only from the world loop goroutine; other
// goroutines read through RenderState and CurrentTick.
type World struct {
	cfg    WorldConfig
	logger *log.Logger

	tick atomic.Uint64

	agents map[AgentID]*Agent
	order  []AgentID
	index  *spatial.Index
	grid   *resources.Grid

	markets    map[MarketID]*Market
	nextMarket MarketID

	search     search.Protocol
	matching   matching.Protocol
	bargaining bargaining.Protocol
	mechanism  market.Mechanism

	// Optional sinks (may be nil). Implemented in internal/persistence/* and internal/metrics.
	tickLogger   TickLogger
	observer     Observer
	snapshotSink chan<- snapshot.SnapshotV1

	stop     chan struct{}
	stopOnce sync.Once

	render atomic.Pointer[RenderState]

	// Per-tick scratch, reset in beginTick.
	cur tickScratch
}

type tickScratch struct {
	effects []model.Effect
	claims  map[model.CellID]AgentID
	summary TickSummary
}

func New(cfg WorldConfig) (*World, error) {
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.Goods = append([]string(nil), cfg.Goods...)
	sort.Strings(cfg.Goods)

	w := &World{
		cfg:        cfg,
		logger:     log.New(io.Discard, "", 0),
		agents:     map[AgentID]*Agent{},
		index:      spatial.NewIndex(cfg.Width, cfg.Height, cfg.BucketSize),
		grid:       resources.NewGrid(cfg.Width, cfg.Height),
		markets:    map[MarketID]*Market{},
		nextMarket: 1,
		stop:       make(chan struct{}),
	}

	for _, spec := range cfg.Agents {
		u, err := utility.Build(spec.Utility, cfg.Numeraire)
		if err != nil {
			return nil, fmt.Errorf("agent %d: %w", spec.ID, err)
		}
		inv := model.Inventory{}
		for _, g := range cfg.Goods {
			inv[g] = spec.Inventory[g].Round(cfg.QuantityDecimals)
		}
		a := &Agent{
			ID:             spec.ID,
			Pos:            spec.Pos,
			Inventory:      inv,
			Utility:        u,
			Cooldowns:      map[AgentID]uint64{},
			InventoryDirty: true,
		}
		w.agents[a.ID] = a
		w.index.Insert(a.ID, a.Pos)
	}
	w.order = model.SortedAgentIDs(w.agents)

	for _, r := range cfg.Resources {
		if err := w.grid.Seed(r.Pos, r.Good, r.Stock.Round(cfg.QuantityDecimals), r.Cap.Round(cfg.QuantityDecimals)); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrConfig, err)
		}
	}
	for _, f := range cfg.NoiseFields {
		f.Cap = f.Cap.Round(cfg.QuantityDecimals)
		w.grid.SeedNoise(cfg.Seed, f)
	}

	if err := w.initProtocols(); err != nil {
		return nil, err
	}
	w.refreshQuotes()
	w.publishRenderState(0, cfg.Modes.At(0))
	return w, nil
}

func (w *World) SetTickLogger(l TickLogger)                    { w.tickLogger = l }
func (w *World) SetObserver(o Observer)                        { w.observer = o }
func (w *World) SetSnapshotSink(ch chan<- snapshot.SnapshotV1) { w.snapshotSink = ch }

func (w *World) SetLogger(l *log.Logger) {
	if l == nil {
		l = log.New(io.Discard, "", 0)
	}
	w.logger = l
}

func (w *World) ID() string {
	if w == nil {
		return ""
	}
	return w.cfg.ID
}

func (w *World) TickRateHz() int {
	if w == nil {
		return 0
	}
	return w.cfg.TickRateHz
}

func (w *World) Config() WorldConfig { return w.cfg }

// CurrentTick is the next tick to be executed.
func (w *World) CurrentTick() uint64 { return w.tick.Load() }

func (w *World) sortedAgents() []*Agent {
	out := make([]*Agent, 0, len(w.order))
	for _, id := range w.order {
		out = append(out, w.agents[id])
	}
	return out
}

func (w *World) sortedMarketIDs() []MarketID {
	ids := make([]MarketID, 0, len(w.markets))
	for id := range w.markets {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (w *World) sortedMarkets() []*Market {
	ids := w.sortedMarketIDs()
	out := make([]*Market, 0, len(ids))
	for _, id := range ids {
		out = append(out, w.markets[id])
	}
	return out
}

// activePairs lists current pairings as (min, max), ascending.
func (w *World) activePairs() [][2]AgentID {
	var out [][2]AgentID
	for _, id := range w.order {
		a := w.agents[id]
		if a.Partner != 0 && a.ID < a.Partner {
			out = append(out, [2]AgentID{a.ID, a.Partner})
		}
	}
	return out
}

func (w *World) tradeGoods() []string {
	out := make([]string, 0, len(w.cfg.Goods))
	for _, g := range w.cfg.Goods {
		if g != w.cfg.Numeraire {
			out = append(out, g)
		}
	}
	return out
}
