package world

import (
	"errors"
	"fmt"

	"econgrid.ai/internal/sim/world/kernel/model"
)

var errRejected = errors.New("effect rejected")

func rejectf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errRejected, fmt.Sprintf(format, args...))
}

// applyAll applies effects in emission order. Rejected effects are logged and
// skipped; the rest of the batch still applies.
func (w *World) applyAll(phase string, effs []model.Effect) {
	now := w.tick.Load()
	for _, e := range effs {
		e.Tick = now
		e.Phase = phase
		if err := w.applyEffect(now, e); err != nil {
			msg := fmt.Sprintf("%s %s: %v", phase, e.Kind, err)
			w.cur.summary.Rejected = append(w.cur.summary.Rejected, msg)
			w.logger.Printf("tick %d: %s", now, msg)
			continue
		}
		w.cur.effects = append(w.cur.effects, e)
	}
}

func (w *World) agentPair(e model.Effect) (*Agent, *Agent, error) {
	a, b := w.agents[e.Agent], w.agents[e.Other]
	if a == nil || b == nil || a == b {
		return nil, nil, rejectf("unknown agents %s/%s", e.Agent, e.Other)
	}
	return a, b, nil
}

func (w *World) applyEffect(now uint64, e model.Effect) error {
	switch e.Kind {
	case model.EffectSetTarget:
		a := w.agents[e.Agent]
		if a == nil {
			return rejectf("unknown agent %s", e.Agent)
		}
		a.Target = e.Target()

	case model.EffectClaimResource:
		if w.agents[e.Agent] == nil || w.grid.Cell(e.Cell) == nil {
			return rejectf("unknown claim %s -> %s", e.Agent, e.Cell)
		}
		if owner, ok := w.cur.claims[e.Cell]; ok && owner != e.Agent {
			return rejectf("cell %s already claimed by %s", e.Cell, owner)
		}
		w.cur.claims[e.Cell] = e.Agent

	case model.EffectPair:
		a, b, err := w.agentPair(e)
		if err != nil {
			return err
		}
		if a.Partner != 0 || b.Partner != 0 || a.Market != 0 || b.Market != 0 {
			return rejectf("%s or %s not free", a.ID, b.ID)
		}
		a.Partner, b.Partner = b.ID, a.ID
		delete(a.Cooldowns, b.ID)
		delete(b.Cooldowns, a.ID)

	case model.EffectUnpair:
		a, b, err := w.agentPair(e)
		if err != nil {
			return err
		}
		if a.Partner != b.ID || b.Partner != a.ID {
			return rejectf("%s and %s are not paired", a.ID, b.ID)
		}
		w.unpair(a, b)
		if e.Reason == model.ReasonNoSurplus {
			until := now + 1 + uint64(w.cfg.TradeCooldownTicks)
			a.Cooldowns[b.ID] = until
			b.Cooldowns[a.ID] = until
		}

	case model.EffectAssignMarket:
		a, m := w.agents[e.Agent], w.markets[e.Market]
		if a == nil || m == nil {
			return rejectf("unknown assignment %s -> %s", e.Agent, e.Market)
		}
		if a.Partner != 0 || (a.Market != 0 && a.Market != m.ID) {
			return rejectf("%s is paired or in another market", a.ID)
		}
		a.Market = m.ID
		m.AddParticipant(a.ID)

	case model.EffectTrade:
		return w.applyTrade(e)

	case model.EffectMarketClear:
		m := w.markets[e.Market]
		if m == nil {
			return rejectf("unknown market %s", e.Market)
		}
		m.RecordClear(now, e.Good, e.Price, e.Qty)

	case model.EffectMarketFormation:
		if e.Market != w.nextMarket || e.Pos == nil {
			return rejectf("unexpected market id %s (next %s)", e.Market, w.nextMarket)
		}
		w.markets[e.Market] = model.NewMarket(e.Market, *e.Pos, w.cfg.MarketRadius, now)
		w.nextMarket++
		w.logger.Printf("tick %d: market %s formed at %v with %d candidates", now, e.Market, *e.Pos, e.Participants)

	case model.EffectMarketCensus:
		m := w.markets[e.Market]
		if m == nil {
			return rejectf("unknown market %s", e.Market)
		}
		m.TicksFormed++
		if e.Participants < w.cfg.SustainThreshold {
			m.TicksBelowSustain++
		} else {
			m.TicksBelowSustain = 0
		}

	case model.EffectMarketDrift:
		m := w.markets[e.Market]
		if m == nil || e.Pos == nil {
			return rejectf("unknown market %s", e.Market)
		}
		m.Center = *e.Pos

	case model.EffectMarketDissolution:
		m := w.markets[e.Market]
		if m == nil {
			return rejectf("unknown market %s", e.Market)
		}
		w.dissolve(m)
		w.logger.Printf("tick %d: market %s dissolved (%s) after %d ticks", now, m.ID, e.Reason, m.TicksFormed)

	case model.EffectHarvest:
		a := w.agents[e.Agent]
		if a == nil {
			return rejectf("unknown agent %s", e.Agent)
		}
		if err := w.grid.ApplyHarvest(e.Cell, e.Qty, now); err != nil {
			return rejectf("%v", err)
		}
		a.Inventory.Add(e.Good, e.Qty)
		a.InventoryDirty = true
		w.cur.summary.Harvests++

	case model.EffectRegenerate:
		if w.grid.Cell(e.Cell) == nil {
			return rejectf("unknown cell %s", e.Cell)
		}
		w.grid.ApplyRegenerate(e.Cell, e.Qty)

	default:
		return rejectf("unknown kind %q", e.Kind)
	}
	return nil
}

// applyTrade is all-or-nothing: nothing moves unless both sides stay
// non-negative.
func (w *World) applyTrade(e model.Effect) error {
	buyer, seller, err := w.agentPair(e)
	if err != nil {
		return err
	}
	num := w.cfg.Numeraire
	if e.Good == num || !e.Qty.IsPositive() || e.Payment.IsNegative() {
		return rejectf("malformed trade %s %s for %s", e.Qty, e.Good, e.Payment)
	}
	if seller.Inventory.Get(e.Good).LessThan(e.Qty) {
		return rejectf("%s holds %s %s < %s", seller.ID, seller.Inventory.Get(e.Good), e.Good, e.Qty)
	}
	if buyer.Inventory.Get(num).LessThan(e.Payment) {
		return rejectf("%s holds %s %s < %s", buyer.ID, buyer.Inventory.Get(num), num, e.Payment)
	}
	seller.Inventory.Add(e.Good, e.Qty.Neg())
	buyer.Inventory.Add(e.Good, e.Qty)
	buyer.Inventory.Add(num, e.Payment.Neg())
	seller.Inventory.Add(num, e.Payment)
	buyer.InventoryDirty = true
	seller.InventoryDirty = true

	w.cur.summary.Trades++
	if e.Origin == model.OriginMarket {
		w.cur.summary.MarketTrades++
	} else {
		w.cur.summary.BilateralTrades++
	}
	return nil
}

func (w *World) unpair(a, b *Agent) {
	a.Partner, b.Partner = 0, 0
	if a.Target.Kind == model.TargetAgent && model.AgentID(a.Target.ID) == b.ID {
		a.Target = model.Target{}
	}
	if b.Target.Kind == model.TargetAgent && model.AgentID(b.Target.ID) == a.ID {
		b.Target = model.Target{}
	}
}

// dissolve releases every member and any agent travelling to m.
func (w *World) dissolve(m *Market) {
	for _, id := range w.order {
		a := w.agents[id]
		if a.Market == m.ID {
			a.Market = 0
		}
		if a.Target.Kind == model.TargetMarket && MarketID(a.Target.ID) == m.ID {
			a.Target = model.Target{}
		}
	}
	delete(w.markets, m.ID)
}
