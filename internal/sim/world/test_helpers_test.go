package world

import (
	"testing"

	"econgrid.ai/internal/sim/world/feature/utility"
	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func cd() utility.Spec {
	return utility.Spec{Kind: utility.KindCobbDouglas, Weights: map[string]float64{"x": 0.5, "y": 0.5}}
}

func agentAt(id AgentID, x, y int, gx, gy string) AgentSpec {
	return AgentSpec{
		ID:        id,
		Pos:       Vec2{X: x, Y: y},
		Inventory: map[string]decimal.Decimal{"x": dec(gx), "y": dec(gy)},
		Utility:   cd(),
	}
}

// twoAgentConfig: complementary endowments, adjacent, trade only.
func twoAgentConfig() WorldConfig {
	return WorldConfig{
		ID:     "pair",
		Seed:   1,
		Width:  5,
		Height: 5,
		Goods:  []string{"x", "y"},
		Agents: []AgentSpec{
			agentAt(1, 1, 2, "8", "2"),
			agentAt(2, 2, 2, "2", "8"),
		},
		Modes: ModeSchedule{Mode: ModeTrade},
	}
}

// twoMarketConfig: a cheap cluster on the left, an expensive one on the
// right and one agent in between that can travel to either.
func twoMarketConfig() WorldConfig {
	cfg := WorldConfig{
		ID:              "two-markets",
		Seed:            3,
		Width:           21,
		Height:          11,
		Goods:           []string{"x", "y"},
		EnableMarkets:   true,
		MaxIterations:   500,
		AdjustmentSpeed: dec("0.05"),
		OrderCap:        dec("2"),
		Modes:           ModeSchedule{Mode: ModeTrade},
	}
	left := [][2]int{{2, 5}, {1, 5}, {3, 5}, {2, 4}, {2, 6}}
	right := [][2]int{{18, 5}, {17, 5}, {19, 5}, {18, 4}, {18, 6}}
	id := AgentID(1)
	for _, p := range left {
		cfg.Agents = append(cfg.Agents, agentAt(id, p[0], p[1], "8", "2"))
		id++
	}
	for _, p := range right {
		cfg.Agents = append(cfg.Agents, agentAt(id, p[0], p[1], "2", "8"))
		id++
	}
	cfg.Agents = append(cfg.Agents, agentAt(id, 10, 5, "4", "4"))
	return cfg
}

// foragingConfig exercises resources, noise seeding and both activities.
func foragingConfig() WorldConfig {
	cfg := twoMarketConfig()
	cfg.ID = "forage"
	cfg.Modes = ModeSchedule{Mode: ModeAlternating, TradeTicks: 3, ForageTicks: 4, StartWith: ModeForage}
	cfg.RegenRate = dec("0.5")
	cfg.RegenCooldown = 2
	cfg.Resources = []ResourceSpec{
		{Pos: Vec2{X: 10, Y: 6}, Good: "x", Stock: dec("5"), Cap: dec("5")},
		{Pos: Vec2{X: 9, Y: 5}, Good: "y", Stock: dec("3"), Cap: dec("4")},
	}
	return cfg
}

func mustNew(t *testing.T, cfg WorldConfig) *World {
	t.Helper()
	w, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return w
}

func mustStep(t *testing.T, w *World) (uint64, string) {
	t.Helper()
	tick, digest, err := w.StepOnce()
	if err != nil {
		t.Fatalf("step: %v", err)
	}
	return tick, digest
}

type captureLog struct{ entries []TickLogEntry }

func (c *captureLog) WriteTick(e TickLogEntry) error {
	c.entries = append(c.entries, e)
	return nil
}

func (c *captureLog) effects(kind string) []Effect {
	var out []Effect
	for _, e := range c.entries {
		for _, eff := range e.Effects {
			if string(eff.Kind) == kind {
				out = append(out, eff)
			}
		}
	}
	return out
}

func totals(w *World) map[string]decimal.Decimal {
	out := map[string]decimal.Decimal{}
	for _, id := range w.order {
		for g, q := range w.agents[id].Inventory {
			out[g] = out[g].Add(q)
		}
	}
	return out
}
