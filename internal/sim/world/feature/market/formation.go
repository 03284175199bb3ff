// Package market covers centralized markets: density-based formation,
// per-tick participant assignment, hysteresis lifecycle and price clearing.
package market

import (
	"econgrid.ai/internal/sim/world/kernel/model"
)

type FormationParams struct {
	FormationThreshold  int
	FormationRadius     int
	MarketRadius        int
	SustainThreshold    int
	DissolutionPatience int
	ReuseTolerance      int
}

// FormationEnv is the read-only world surface formation needs.
type FormationEnv interface {
	Pos(id model.AgentID) model.Vec2
	Partner(id model.AgentID) model.AgentID
	Within(pos model.Vec2, r int) []model.AgentID
	// Markets sorted by id.
	Markets() []*model.Market
}

type FormationInput struct {
	Tick uint64
	// Eligible agents in ascending id. Empty when the mode disallows trade.
	Eligible     []model.AgentID
	NextMarketID model.MarketID
}

type site struct {
	id         model.MarketID
	center     model.Vec2
	radius     int
	below      int
	candidates int
	members    []model.AgentID
}

// Form plans this tick's market effects: formations, unpairs for agents moving
// into a market, assignments, census, drift and dissolutions, in that order.
func Form(env FormationEnv, in FormationInput, p FormationParams) []model.Effect {
	eligible := make(map[model.AgentID]bool, len(in.Eligible))
	for _, id := range in.Eligible {
		eligible[id] = true
	}

	var sites []*site
	for _, m := range env.Markets() {
		sites = append(sites, &site{id: m.ID, center: m.Center, radius: m.Radius, below: m.TicksBelowSustain})
	}

	var out []model.Effect

	// Density scan.
	next := in.NextMarketID
	clustered := map[model.AgentID]bool{}
	for _, id := range in.Eligible {
		if clustered[id] {
			continue
		}
		var cluster []model.AgentID
		for _, n := range env.Within(env.Pos(id), p.FormationRadius) {
			if eligible[n] && !clustered[n] {
				cluster = append(cluster, n)
			}
		}
		if len(cluster) < p.FormationThreshold {
			continue
		}
		ps := make([]model.Vec2, 0, len(cluster))
		for _, n := range cluster {
			clustered[n] = true
			ps = append(ps, env.Pos(n))
		}
		center := model.Centroid(ps)
		if reusable(sites, center, p.ReuseTolerance) {
			continue
		}
		sites = append(sites, &site{id: next, center: center, radius: p.MarketRadius})
		out = append(out, model.MarketFormation(next, center, len(cluster)))
		next++
	}

	// Candidate counts drive the assignment priority.
	for _, s := range sites {
		for _, id := range in.Eligible {
			if s.center.Manhattan(env.Pos(id)) <= s.radius {
				s.candidates++
			}
		}
	}

	assigned := map[model.AgentID]*site{}
	for _, id := range in.Eligible {
		pos := env.Pos(id)
		var best *site
		bestDist := 0
		for _, s := range sites {
			d := s.center.Manhattan(pos)
			if d > s.radius {
				continue
			}
			if best == nil || s.candidates > best.candidates ||
				(s.candidates == best.candidates && (d < bestDist || (d == bestDist && s.id < best.id))) {
				best, bestDist = s, d
			}
		}
		if best != nil {
			assigned[id] = best
			best.members = append(best.members, id)
		}
	}

	// Lifecycle: decide dissolutions before assignments so a dissolving
	// market never receives members.
	dissolve := map[model.MarketID]bool{}
	for _, s := range sites {
		if len(s.members) < p.SustainThreshold {
			s.below++
		} else {
			s.below = 0
		}
		if s.below >= p.DissolutionPatience {
			dissolve[s.id] = true
		}
	}

	unpaired := map[model.AgentID]bool{}
	for _, id := range in.Eligible {
		s := assigned[id]
		if s == nil || dissolve[s.id] {
			continue
		}
		if partner := env.Partner(id); partner != 0 && !unpaired[id] {
			unpaired[id], unpaired[partner] = true, true
			out = append(out, model.Unpair(id, partner, model.ReasonMarket))
		}
		out = append(out,
			model.AssignMarket(id, s.id),
			model.SetTarget(id, model.Target{Kind: model.TargetMarket, ID: uint32(s.id), Pos: s.center}),
		)
	}

	for _, s := range sites {
		if dissolve[s.id] {
			out = append(out, model.MarketCensus(s.id, 0), model.MarketDissolution(s.id, "below_sustain"))
			continue
		}
		out = append(out, model.MarketCensus(s.id, len(s.members)))
		if len(s.members) == 0 {
			continue
		}
		ps := make([]model.Vec2, 0, len(s.members))
		for _, id := range s.members {
			ps = append(ps, env.Pos(id))
		}
		if c := model.Centroid(ps); c != s.center {
			out = append(out, model.MarketDrift(s.id, c))
		}
	}
	return out
}

func reusable(sites []*site, center model.Vec2, tol int) bool {
	for _, s := range sites {
		if s.center.Manhattan(center) <= tol {
			return true
		}
	}
	return false
}
