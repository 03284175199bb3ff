package world

import (
	"econgrid.ai/internal/sim/world/feature/market"
	"econgrid.ai/internal/sim/world/feature/matching"
	"econgrid.ai/internal/sim/world/feature/perception"
	"econgrid.ai/internal/sim/world/feature/search"
	"econgrid.ai/internal/sim/world/kernel/model"
)

func (w *World) systemPerception(now uint64) []perception.View {
	return perception.BuildAll(worldEnv{w}, w.order, now, perception.Options{
		VisionRadius: w.cfg.VisionRadius,
		Goods:        w.cfg.Goods,
		Workers:      w.cfg.PerceptionWorkers,
	})
}

// resetDecisionState clears the per-tick decision outputs. Pairings persist
// across ticks; market membership and targets of free agents do not.
func (w *World) resetDecisionState() {
	for _, m := range w.markets {
		m.Participants = nil
	}
	for _, id := range w.order {
		a := w.agents[id]
		a.Market = 0
		if a.Partner == 0 {
			a.Target = model.Target{}
		}
	}
}

func (w *World) systemDecision(now uint64, mode Mode, views []perception.View) {
	ctx := search.Context{
		AllowTrade:   mode.AllowsTrade(),
		AllowForage:  mode.AllowsForage(),
		AllowMarkets: w.cfg.EnableMarkets,
	}
	prefs := make(map[AgentID][]search.Preference, len(views))
	for _, v := range views {
		prefs[v.Self.ID] = w.search.BuildPreferences(v, ctx)
	}

	w.resetDecisionState()

	if !mode.AllowsTrade() {
		var effs []model.Effect
		for _, k := range w.activePairs() {
			effs = append(effs, model.Unpair(k[0], k[1], model.ReasonModeSwitch))
		}
		w.applyAll(phaseDecision, effs)
	}

	if w.cfg.EnableMarkets {
		var eligible []AgentID
		if mode.AllowsTrade() {
			for _, id := range w.order {
				if w.marketEligible(id, prefs[id]) {
					eligible = append(eligible, id)
				}
			}
		}
		effs := market.Form(worldEnv{w}, market.FormationInput{
			Tick:         now,
			Eligible:     eligible,
			NextMarketID: w.nextMarket,
		}, market.FormationParams{
			FormationThreshold:  w.cfg.FormationThreshold,
			FormationRadius:     w.cfg.FormationRadius,
			MarketRadius:        w.cfg.MarketRadius,
			SustainThreshold:    w.cfg.SustainThreshold,
			DissolutionPatience: w.cfg.DissolutionPatience,
			ReuseTolerance:      w.cfg.ReuseTolerance,
		})
		w.applyAll(phaseDecision, effs)
	}

	var pool []AgentID
	for _, id := range w.order {
		if a := w.agents[id]; a.Partner == 0 && a.Market == 0 {
			pool = append(pool, id)
		}
	}
	effs := w.matching.FindMatches(matching.Input{
		Tick:   now,
		Agents: pool,
		Prefs:  prefs,
		Blocked: func(a, b AgentID) bool {
			return w.agents[a].InCooldown(b, now) || w.agents[b].InCooldown(a, now)
		},
		Pos:    func(id AgentID) Vec2 { return w.agents[id].Pos },
		Search: w.search,
		Claims: search.NewClaims(),
	})
	w.applyAll(phaseDecision, effs)
}

// marketEligible: agents heading for a resource stay out of markets, and so do
// agents travelling to a market they are not yet inside.
func (w *World) marketEligible(id AgentID, prefs []search.Preference) bool {
	top, ok := search.Top(prefs)
	if !ok {
		return true
	}
	switch top.Kind {
	case model.TargetResource:
		return false
	case model.TargetMarket:
		m := w.markets[MarketID(top.TargetID)]
		return m != nil && m.Contains(w.agents[id].Pos)
	}
	return true
}
