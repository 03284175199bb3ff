// Package matching turns ranked preferences into bilateral pairings.
package matching

import (
	"sort"

	"econgrid.ai/internal/sim/world/feature/search"
	"econgrid.ai/internal/sim/world/kernel/model"
)

type Input struct {
	Tick uint64
	// Agents eligible for matching (unpaired, not market-assigned), ascending.
	Agents []model.AgentID
	Prefs  map[model.AgentID][]search.Preference
	// Blocked reports whether a and b may not pair this tick (cooldown either way).
	Blocked func(a, b model.AgentID) bool
	Pos     func(id model.AgentID) model.Vec2
	Search  search.Protocol
	Claims  *search.Claims
}

type Protocol interface {
	Name() string
	FindMatches(in Input) []model.Effect
}

// ThreePass: mutual first choices, then greedy by surplus, then residual targets.
type ThreePass struct{}

func (ThreePass) Name() string { return "three_pass" }

type edge struct {
	a, b  model.AgentID
	value float64
}

func (ThreePass) FindMatches(in Input) []model.Effect {
	eligible := make(map[model.AgentID]bool, len(in.Agents))
	for _, id := range in.Agents {
		eligible[id] = true
	}
	blocked := func(a, b model.AgentID) bool {
		return in.Blocked != nil && in.Blocked(a, b)
	}
	matched := map[model.AgentID]bool{}
	var out []model.Effect

	pair := func(a, b model.AgentID) {
		matched[a], matched[b] = true, true
		out = append(out,
			model.Pair(a, b),
			model.SetTarget(a, model.Target{Kind: model.TargetAgent, ID: uint32(b), Pos: in.Pos(b)}),
			model.SetTarget(b, model.Target{Kind: model.TargetAgent, ID: uint32(a), Pos: in.Pos(a)}),
		)
	}

	topAgent := func(id model.AgentID) (model.AgentID, bool) {
		for _, p := range in.Prefs[id] {
			if p.Kind != model.TargetAgent {
				continue
			}
			j := model.AgentID(p.TargetID)
			if !eligible[j] || blocked(id, j) {
				continue
			}
			return j, true
		}
		return 0, false
	}

	// Pass 1: mutual consent.
	for _, i := range in.Agents {
		if matched[i] {
			continue
		}
		j, ok := topAgent(i)
		if !ok || matched[j] || j <= i {
			continue
		}
		if back, ok := topAgent(j); ok && back == i {
			pair(i, j)
		}
	}

	// Pass 2: greedy over remaining candidate edges.
	best := map[[2]model.AgentID]float64{}
	for _, i := range in.Agents {
		if matched[i] {
			continue
		}
		for _, p := range in.Prefs[i] {
			if p.Kind != model.TargetAgent {
				continue
			}
			j := model.AgentID(p.TargetID)
			if j == i || !eligible[j] || matched[j] || blocked(i, j) {
				continue
			}
			k := model.PairKey(i, j)
			if v, ok := best[k]; !ok || p.Discounted > v {
				best[k] = p.Discounted
			}
		}
	}
	edges := make([]edge, 0, len(best))
	for k, v := range best {
		edges = append(edges, edge{a: k[0], b: k[1], value: v})
	}
	sort.Slice(edges, func(x, y int) bool {
		if edges[x].value != edges[y].value {
			return edges[x].value > edges[y].value
		}
		if edges[x].a != edges[y].a {
			return edges[x].a < edges[y].a
		}
		return edges[x].b < edges[y].b
	})
	for _, e := range edges {
		if matched[e.a] || matched[e.b] {
			continue
		}
		pair(e.a, e.b)
	}

	// Pass 3: residual agents pursue their best non-agent target.
	if in.Search == nil {
		return out
	}
	for _, i := range in.Agents {
		if matched[i] {
			continue
		}
		var rest []search.Preference
		for _, p := range in.Prefs[i] {
			if p.Kind != model.TargetAgent {
				rest = append(rest, p)
			}
		}
		out = append(out, in.Search.SelectTarget(i, rest, in.Claims)...)
	}
	return out
}
