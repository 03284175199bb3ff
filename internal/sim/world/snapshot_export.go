package world

import (
	"econgrid.ai/internal/persistence/snapshot"
	"econgrid.ai/internal/sim/world/kernel/model"
	"github.com/shopspring/decimal"
)

func vec(p Vec2) [2]int { return [2]int{p.X, p.Y} }

func decStrings(m map[string]decimal.Decimal) map[string]string {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v.String()
	}
	return out
}

// ExportSnapshot captures the full mutable state. Must run on the loop goroutine.
func (w *World) ExportSnapshot() snapshot.SnapshotV1 {
	s := snapshot.SnapshotV1{
		Header: snapshot.Header{
			Version: snapshot.Version,
			WorldID: w.cfg.ID,
			Tick:    w.tick.Load(),
		},
		Seed:       w.cfg.Seed,
		Width:      w.cfg.Width,
		Height:     w.cfg.Height,
		Goods:      append([]string(nil), w.cfg.Goods...),
		Numeraire:  w.cfg.Numeraire,
		NextMarket: uint32(w.nextMarket),
	}

	for _, id := range w.order {
		a := w.agents[id]
		av := snapshot.AgentV1{
			ID:        uint32(a.ID),
			Pos:       vec(a.Pos),
			Inventory: decStrings(a.Inventory),
			Partner:   uint32(a.Partner),
			Market:    uint32(a.Market),
		}
		if a.Target.Kind != model.TargetNone {
			av.TargetKind = a.Target.Kind.String()
			av.TargetID = a.Target.ID
			av.TargetPos = vec(a.Target.Pos)
		}
		if len(a.Cooldowns) > 0 {
			av.Cooldowns = make(map[uint32]uint64, len(a.Cooldowns))
			for o, until := range a.Cooldowns {
				av.Cooldowns[uint32(o)] = until
			}
		}
		s.Agents = append(s.Agents, av)
	}

	for _, m := range w.sortedMarkets() {
		mv := snapshot.MarketV1{
			ID:                uint32(m.ID),
			Center:            vec(m.Center),
			Radius:            m.Radius,
			Prices:            decStrings(m.Prices),
			FormedTick:        m.FormedTick,
			TicksFormed:       m.TicksFormed,
			TicksBelowSustain: m.TicksBelowSustain,
		}
		for _, p := range m.Participants {
			mv.Participants = append(mv.Participants, uint32(p))
		}
		if len(m.LastClearTick) > 0 {
			mv.LastClearTick = make(map[string]uint64, len(m.LastClearTick))
			for g, t := range m.LastClearTick {
				mv.LastClearTick[g] = t
			}
		}
		for _, h := range m.History {
			mv.History = append(mv.History, snapshot.PricePointV1{
				Tick: h.Tick, Good: h.Good, Price: h.Price.String(), Qty: h.Qty.String(),
			})
		}
		s.Markets = append(s.Markets, mv)
	}

	for _, id := range w.grid.SortedIDs() {
		c := w.grid.Cell(id)
		s.Cells = append(s.Cells, snapshot.CellV1{
			ID:              uint32(c.ID),
			Pos:             vec(c.Pos),
			Good:            c.Good,
			Stock:           c.Stock.String(),
			Cap:             c.Cap.String(),
			LastHarvestTick: c.LastHarvestTick,
			Harvested:       c.Harvested,
			Active:          w.grid.IsActive(id),
		})
	}
	return s
}
