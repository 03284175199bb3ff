package world

import (
	"fmt"
	"slices"

	"econgrid.ai/internal/persistence/snapshot"
	"econgrid.ai/internal/sim/world/kernel/model"
	"econgrid.ai/internal/sim/world/logic/fixedpt"
	"github.com/shopspring/decimal"
)

func fromVec(p [2]int) Vec2 { return Vec2{X: p[0], Y: p[1]} }

func parseDecimals(m map[string]string) (map[string]decimal.Decimal, error) {
	out := make(map[string]decimal.Decimal, len(m))
	for k, v := range m {
		d, err := fixedpt.Parse(v)
		if err != nil {
			return nil, fmt.Errorf("%s=%q: %w", k, v, err)
		}
		out[k] = d
	}
	return out, nil
}

// ImportSnapshot replaces the world's mutable state. The world must have been
// built from the same scenario (grid, goods and agent set). Must not be called
// while Run is active.
func (w *World) ImportSnapshot(s snapshot.SnapshotV1) error {
	if s.Header.Version != snapshot.Version {
		return fmt.Errorf("snapshot version %d", s.Header.Version)
	}
	if s.Width != w.cfg.Width || s.Height != w.cfg.Height || s.Numeraire != w.cfg.Numeraire ||
		!slices.Equal(s.Goods, w.cfg.Goods) {
		return fmt.Errorf("snapshot world shape does not match config")
	}
	if len(s.Agents) != len(w.order) {
		return fmt.Errorf("snapshot has %d agents, config %d", len(s.Agents), len(w.order))
	}

	agents := make(map[AgentID]*Agent, len(s.Agents))
	for _, av := range s.Agents {
		id := AgentID(av.ID)
		cur := w.agents[id]
		if cur == nil {
			return fmt.Errorf("snapshot agent %s not in config", id)
		}
		inv, err := parseDecimals(av.Inventory)
		if err != nil {
			return fmt.Errorf("agent %s inventory: %w", id, err)
		}
		a := &Agent{
			ID:             id,
			Pos:            fromVec(av.Pos),
			Inventory:      model.Inventory(inv),
			Utility:        cur.Utility,
			Partner:        AgentID(av.Partner),
			Market:         MarketID(av.Market),
			Cooldowns:      make(map[AgentID]uint64, len(av.Cooldowns)),
			InventoryDirty: true,
		}
		for _, g := range w.cfg.Goods {
			if _, ok := a.Inventory[g]; !ok {
				a.Inventory[g] = decimal.Zero
			}
		}
		if av.TargetKind != "" {
			var k model.TargetKind
			_ = k.UnmarshalText([]byte(av.TargetKind))
			a.Target = model.Target{Kind: k, ID: av.TargetID, Pos: fromVec(av.TargetPos)}
		}
		for o, until := range av.Cooldowns {
			a.Cooldowns[AgentID(o)] = until
		}
		agents[id] = a
	}

	markets := make(map[MarketID]*Market, len(s.Markets))
	for _, mv := range s.Markets {
		m := model.NewMarket(MarketID(mv.ID), fromVec(mv.Center), mv.Radius, mv.FormedTick)
		m.TicksFormed = mv.TicksFormed
		m.TicksBelowSustain = mv.TicksBelowSustain
		for _, p := range mv.Participants {
			m.Participants = append(m.Participants, AgentID(p))
		}
		prices, err := parseDecimals(mv.Prices)
		if err != nil {
			return fmt.Errorf("market %d prices: %w", mv.ID, err)
		}
		m.Prices = prices
		for g, t := range mv.LastClearTick {
			m.LastClearTick[g] = t
		}
		for _, h := range mv.History {
			price, err1 := fixedpt.Parse(h.Price)
			qty, err2 := fixedpt.Parse(h.Qty)
			if err1 != nil || err2 != nil {
				return fmt.Errorf("market %d history at tick %d is malformed", mv.ID, h.Tick)
			}
			m.History = append(m.History, model.PricePoint{Tick: h.Tick, Good: h.Good, Price: price, Qty: qty})
		}
		markets[m.ID] = m
	}

	for _, cv := range s.Cells {
		stock, err1 := fixedpt.Parse(cv.Stock)
		cp, err2 := fixedpt.Parse(cv.Cap)
		if err1 != nil || err2 != nil {
			return fmt.Errorf("cell %d is malformed", cv.ID)
		}
		w.grid.Restore(model.ResourceCell{
			ID:              model.CellID(cv.ID),
			Pos:             fromVec(cv.Pos),
			Good:            cv.Good,
			Stock:           stock,
			Cap:             cp,
			LastHarvestTick: cv.LastHarvestTick,
			Harvested:       cv.Harvested,
		}, cv.Active)
	}

	w.agents = agents
	w.order = model.SortedAgentIDs(agents)
	for _, id := range w.order {
		w.index.Update(id, agents[id].Pos)
	}
	w.markets = markets
	w.nextMarket = MarketID(s.NextMarket)
	w.tick.Store(s.Header.Tick)
	w.refreshQuotes()
	w.publishRenderState(s.Header.Tick, w.cfg.Modes.At(s.Header.Tick))
	return nil
}
