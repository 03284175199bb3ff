package world

import (
	"fmt"
	"strings"

	"econgrid.ai/internal/sim/world/feature/housekeeping"
	"econgrid.ai/internal/sim/world/kernel/model"
	"github.com/shopspring/decimal"
)

func (w *World) refreshQuotes() int {
	return housekeeping.RefreshQuotes(worldEnv{w}, housekeeping.QuoteParams{
		Goods:         w.cfg.Goods,
		Numeraire:     w.cfg.Numeraire,
		Spread:        w.cfg.BidAskSpread,
		PriceDecimals: w.cfg.PriceDecimals,
	})
}

func (w *World) systemHousekeeping(now uint64) error {
	for _, id := range w.order {
		w.agents[id].ExpireCooldowns(now + 1)
	}

	if vs := housekeeping.Check(worldEnv{w}); len(vs) > 0 {
		if w.cfg.StrictInvariants {
			msgs := make([]string, len(vs))
			for i, v := range vs {
				msgs[i] = v.String()
			}
			return fmt.Errorf("%w: %s", ErrInvariant, strings.Join(msgs, "; "))
		}
		for _, v := range vs {
			w.repair(v)
			w.cur.summary.Repairs = append(w.cur.summary.Repairs, v.String())
			w.logger.Printf("tick %d: repaired %s", now, v)
		}
	}

	w.refreshQuotes()
	return nil
}

// repair restores one invariant with the smallest local change.
func (w *World) repair(v housekeeping.Violation) {
	switch v.Kind {
	case housekeeping.AsymmetricPair:
		a := w.agents[v.Agent]
		if a == nil {
			return
		}
		a.Partner = 0
		if a.Target.Kind == model.TargetAgent {
			a.Target = model.Target{}
		}
	case housekeeping.PairedAndMarket, housekeeping.MissingMembership:
		a := w.agents[v.Agent]
		if a == nil {
			return
		}
		if m := w.markets[a.Market]; m != nil {
			m.RemoveParticipant(a.ID)
		}
		a.Market = 0
	case housekeeping.DuplicateMember:
		if m := w.markets[v.Market]; m != nil {
			m.RemoveParticipant(v.Agent)
		}
	case housekeeping.NegativeInventory:
		if a := w.agents[v.Agent]; a != nil {
			a.Inventory[v.Good] = decimal.Zero
			a.InventoryDirty = true
		}
	}
}
