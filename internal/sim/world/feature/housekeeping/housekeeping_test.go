package housekeeping

import (
	"testing"

	"econgrid.ai/internal/sim/world/feature/utility"
	"econgrid.ai/internal/sim/world/kernel/model"
	"github.com/shopspring/decimal"
)

type stubEnv struct {
	agents  map[model.AgentID]*model.Agent
	markets map[model.MarketID]*model.Market
}

func (s *stubEnv) SortedAgents() []*model.Agent {
	var out []*model.Agent
	for _, id := range model.SortedAgentIDs(s.agents) {
		out = append(out, s.agents[id])
	}
	return out
}

func (s *stubEnv) Agent(id model.AgentID) *model.Agent { return s.agents[id] }

func (s *stubEnv) Markets() []*model.Market {
	var out []*model.Market
	for id := model.MarketID(1); id <= 10; id++ {
		if m := s.markets[id]; m != nil {
			out = append(out, m)
		}
	}
	return out
}

func (s *stubEnv) Market(id model.MarketID) *model.Market { return s.markets[id] }

func TestCheckFindsEachViolation(t *testing.T) {
	env := &stubEnv{
		agents: map[model.AgentID]*model.Agent{
			1: {ID: 1, Partner: 2, Inventory: model.Inventory{}},
			2: {ID: 2, Inventory: model.Inventory{}},
			3: {ID: 3, Partner: 4, Market: 1, Inventory: model.Inventory{}},
			4: {ID: 4, Partner: 3, Inventory: model.Inventory{"A": decimal.NewFromInt(-1)}},
			5: {ID: 5, Market: 2, Inventory: model.Inventory{}},
		},
		markets: map[model.MarketID]*model.Market{
			1: {ID: 1, Participants: []model.AgentID{3, 5}},
			2: {ID: 2, Participants: []model.AgentID{5}},
		},
	}
	got := map[ViolationKind]int{}
	for _, v := range Check(env) {
		got[v.Kind]++
	}
	want := map[ViolationKind]int{
		AsymmetricPair:    1,
		PairedAndMarket:   1,
		NegativeInventory: 1,
		DuplicateMember:   1, // agent 5 listed by market 1 but assigned to 2
	}
	for k, n := range want {
		if got[k] != n {
			t.Fatalf("%s: got %d want %d (all=%v)", k, got[k], n, got)
		}
	}
}

func TestCleanStateHasNoViolations(t *testing.T) {
	env := &stubEnv{
		agents: map[model.AgentID]*model.Agent{
			1: {ID: 1, Partner: 2, Inventory: model.Inventory{}},
			2: {ID: 2, Partner: 1, Inventory: model.Inventory{}},
			3: {ID: 3, Market: 1, Inventory: model.Inventory{}},
		},
		markets: map[model.MarketID]*model.Market{1: {ID: 1, Participants: []model.AgentID{3}}},
	}
	if v := Check(env); len(v) != 0 {
		t.Fatalf("violations=%v", v)
	}
}

func TestRefreshOnlyDirty(t *testing.T) {
	u, _ := utility.Build(utility.Spec{Kind: utility.KindLinear, Weights: map[string]float64{"A": 2, "B": 1}}, "B")
	clean := &model.Agent{ID: 1, Utility: u, Inventory: model.Inventory{}, Quotes: map[string]model.Quote{}}
	dirty := &model.Agent{ID: 2, Utility: u, Inventory: model.Inventory{}, InventoryDirty: true}
	env := &stubEnv{agents: map[model.AgentID]*model.Agent{1: clean, 2: dirty}}
	n := RefreshQuotes(env, QuoteParams{Goods: []string{"A", "B"}, Numeraire: "B", Spread: 0.1, PriceDecimals: 4})
	if n != 1 || dirty.InventoryDirty {
		t.Fatalf("refreshed=%d dirty=%v", n, dirty.InventoryDirty)
	}
	if !dirty.Quotes["A"].Reservation.Equal(decimal.NewFromInt(2)) {
		t.Fatalf("quote=%+v", dirty.Quotes["A"])
	}
	if len(clean.Quotes) != 0 {
		t.Fatalf("clean agent refreshed")
	}
}
