package matching

import (
	"testing"

	"econgrid.ai/internal/sim/world/feature/search"
	"econgrid.ai/internal/sim/world/kernel/model"
)

func agentPref(id model.AgentID, v float64) search.Preference {
	return search.Preference{Kind: model.TargetAgent, TargetID: uint32(id), Raw: v, Discounted: v}
}

func pos(id model.AgentID) model.Vec2 { return model.Vec2{X: int(id)} }

func pairs(eff []model.Effect) [][2]model.AgentID {
	var out [][2]model.AgentID
	for _, e := range eff {
		if e.Kind == model.EffectPair {
			out = append(out, [2]model.AgentID{e.Agent, e.Other})
		}
	}
	return out
}

func TestMutualConsentFirst(t *testing.T) {
	in := Input{
		Agents: []model.AgentID{1, 2, 3},
		Prefs: map[model.AgentID][]search.Preference{
			1: {agentPref(2, 5), agentPref(3, 9)},
			2: {agentPref(1, 4)},
			3: {agentPref(1, 1)},
		},
		Pos: pos,
	}
	got := pairs(ThreePass{}.FindMatches(in))
	if len(got) != 1 || got[0] != [2]model.AgentID{1, 2} {
		t.Fatalf("pairs=%v", got)
	}
}

func TestGreedyFallbackBySurplusThenIDs(t *testing.T) {
	// 1 wants 2, 2 wants 3, 3 wants 1: no mutual pair.
	in := Input{
		Agents: []model.AgentID{1, 2, 3, 4},
		Prefs: map[model.AgentID][]search.Preference{
			1: {agentPref(2, 3)},
			2: {agentPref(3, 3)},
			3: {agentPref(1, 3)},
			4: {agentPref(1, 1)},
		},
		Pos: pos,
	}
	got := pairs(ThreePass{}.FindMatches(in))
	// Ties at 3 resolve by (min,max): (1,2) first, then (1,3)/(2,3) blocked, 4 left with 1 taken.
	if len(got) != 1 || got[0] != [2]model.AgentID{1, 2} {
		t.Fatalf("pairs=%v", got)
	}
}

func TestCooldownBlocksPairing(t *testing.T) {
	in := Input{
		Agents: []model.AgentID{1, 2},
		Prefs: map[model.AgentID][]search.Preference{
			1: {agentPref(2, 3)},
			2: {agentPref(1, 3)},
		},
		Blocked: func(a, b model.AgentID) bool { return true },
		Pos:     pos,
	}
	if got := pairs(ThreePass{}.FindMatches(in)); len(got) != 0 {
		t.Fatalf("pairs=%v", got)
	}
}

func TestResidualSelectsNonAgentTarget(t *testing.T) {
	s := search.NewDistanceDiscounted(search.Params{Beta: 1})
	in := Input{
		Agents: []model.AgentID{1, 2},
		Prefs: map[model.AgentID][]search.Preference{
			1: {agentPref(9, 5), {Kind: model.TargetResource, TargetID: 4, Discounted: 1}},
			2: {{Kind: model.TargetResource, TargetID: 4, Discounted: 2}, {Kind: model.TargetMarket, TargetID: 1, Discounted: 1}},
		},
		Pos:    pos,
		Search: s,
		Claims: search.NewClaims(),
	}
	eff := ThreePass{}.FindMatches(in)
	var targets []model.Effect
	for _, e := range eff {
		if e.Kind == model.EffectSetTarget {
			targets = append(targets, e)
		}
	}
	if len(targets) != 2 {
		t.Fatalf("effects=%+v", eff)
	}
	if targets[0].Agent != 1 || targets[0].TargetKind != model.TargetResource {
		t.Fatalf("agent 1 target=%+v", targets[0])
	}
	// cell 4 claimed by agent 1 first; agent 2 falls back to the market
	if targets[1].Agent != 2 || targets[1].TargetKind != model.TargetMarket {
		t.Fatalf("agent 2 target=%+v", targets[1])
	}
}

func TestOutputIndependentOfMapOrder(t *testing.T) {
	build := func() Input {
		prefs := map[model.AgentID][]search.Preference{}
		ids := []model.AgentID{}
		for i := model.AgentID(1); i <= 12; i++ {
			ids = append(ids, i)
			for j := model.AgentID(1); j <= 12; j++ {
				if i != j {
					prefs[i] = append(prefs[i], agentPref(j, float64((i*j)%5)))
				}
			}
		}
		return Input{Agents: ids, Prefs: prefs, Pos: pos}
	}
	a := pairs(ThreePass{}.FindMatches(build()))
	for n := 0; n < 5; n++ {
		b := pairs(ThreePass{}.FindMatches(build()))
		if len(a) != len(b) {
			t.Fatalf("len differs")
		}
		for i := range a {
			if a[i] != b[i] {
				t.Fatalf("run %d differs: %v vs %v", n, a, b)
			}
		}
	}
}
