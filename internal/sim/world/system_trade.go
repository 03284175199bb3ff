package world

import (
	"econgrid.ai/internal/sim/world/feature/bargaining"
	"econgrid.ai/internal/sim/world/feature/market"
	"econgrid.ai/internal/sim/world/feature/movement"
	"econgrid.ai/internal/sim/world/feature/utility"
	"econgrid.ai/internal/sim/world/logic/fixedpt"
)

func (w *World) systemMovement() int {
	return movement.RunMovementSystem(worldEnv{w}, movement.Params{
		Budget:            w.cfg.MoveBudget,
		InteractionRadius: w.cfg.InteractionRadius,
	})
}

func (w *World) systemTrade(now uint64) {
	// Bilateral first, pairs ascending by (min, max).
	for _, k := range w.activePairs() {
		a, b := w.agents[k[0]], w.agents[k[1]]
		if a.Pos.Manhattan(b.Pos) > w.cfg.InteractionRadius {
			continue
		}
		effs := w.bargaining.Negotiate(
			bargaining.Party{ID: a.ID, Inventory: a.Inventory.Clone(), Utility: a.Utility},
			bargaining.Party{ID: b.ID, Inventory: b.Inventory.Clone(), Utility: b.Utility},
		)
		w.applyAll(phaseTrade, effs)
	}

	if !w.cfg.EnableMarkets {
		return
	}
	for _, m := range w.sortedMarkets() {
		if len(m.Participants) == 0 {
			continue
		}
		for _, g := range w.tradeGoods() {
			res := w.mechanism.Clear(market.ClearInput{
				Market:       m.ID,
				Good:         g,
				StartPrice:   m.Prices[g],
				Participants: w.marketParticipants(m, g),
			})
			if res.State != market.StateConverged {
				w.convergenceFailed(m.ID, g, res)
				continue
			}
			w.applyAll(phaseTrade, res.Effects)
		}
	}
}

// marketParticipants reads reservations from current inventories, so earlier
// clearings in the same tick are reflected.
func (w *World) marketParticipants(m *Market, good string) []market.Participant {
	out := make([]market.Participant, 0, len(m.Participants))
	for _, id := range m.Participants {
		a := w.agents[id]
		if a == nil {
			continue
		}
		r := utility.Reservation(a.Utility, a.Inventory, good, w.cfg.Numeraire)
		out = append(out, market.Participant{
			ID:          id,
			Reservation: fixedpt.Price(r, w.cfg.PriceDecimals),
			Holdings:    a.Inventory.Get(good),
			Liquidity:   a.Inventory.Get(w.cfg.Numeraire),
		})
	}
	return out
}

func (w *World) convergenceFailed(id MarketID, good string, res market.ClearResult) {
	w.cur.summary.ConvergenceFailures = append(w.cur.summary.ConvergenceFailures, ConvergenceFailure{
		Market:     id,
		Good:       good,
		Iterations: res.Iterations,
		LastPrice:  res.Price.String(),
	})
	w.logger.Printf("market %s did not clear %s: iterations=%d price=%s excess=%s",
		id, good, res.Iterations, res.Price, res.Demand.Sub(res.Supply))
	if w.observer != nil {
		w.observer.ConvergenceFailed(id, good, res.Iterations)
	}
}
