package bargaining

import (
	"testing"

	"econgrid.ai/internal/sim/world/feature/utility"
	"econgrid.ai/internal/sim/world/kernel/model"
	"github.com/shopspring/decimal"
)

func cd(t *testing.T) model.Utility {
	t.Helper()
	u, err := utility.Build(utility.Spec{Kind: utility.KindCobbDouglas, Weights: map[string]float64{"A": 0.5, "B": 0.5}}, "B")
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	return u
}

func party(id model.AgentID, u model.Utility, a, b int64) Party {
	return Party{ID: id, Utility: u, Inventory: model.Inventory{"A": decimal.NewFromInt(a), "B": decimal.NewFromInt(b)}}
}

func proto() *BlockSearch {
	return NewBlockSearch(Params{
		MaxTradeUnits:   3,
		PriceCandidates: 5,
		Tolerance:       1e-6,
		QtyDecimals:     2,
		PriceDecimals:   4,
		Numeraire:       "B",
		Goods:           []string{"A", "B"},
	})
}

func TestComplementaryEndowmentsTrade(t *testing.T) {
	u := cd(t)
	a, b := party(1, u, 8, 2), party(2, u, 2, 8)
	eff := proto().Negotiate(a, b)
	if len(eff) != 1 || eff[0].Kind != model.EffectTrade {
		t.Fatalf("effects=%+v", eff)
	}
	tr := eff[0]
	if tr.Agent != 2 || tr.Other != 1 || tr.Good != "A" {
		t.Fatalf("buyer must be the A-scarce agent: %+v", tr)
	}
	if !tr.Qty.Equal(decimal.NewFromInt(1)) {
		t.Fatalf("smallest size first: %+v", tr)
	}
	// midpoint of reservations (~0.25, ~3.99) is tried first
	if tr.Price.LessThan(decimal.NewFromFloat(2.0)) || tr.Price.GreaterThan(decimal.NewFromFloat(2.2)) {
		t.Fatalf("price=%s", tr.Price)
	}
	buyerAfter := b.Inventory.With(map[string]decimal.Decimal{"A": tr.Qty, "B": tr.Payment.Neg()})
	sellerAfter := a.Inventory.With(map[string]decimal.Decimal{"A": tr.Qty.Neg(), "B": tr.Payment})
	if u.Value(buyerAfter) <= u.Value(b.Inventory) || u.Value(sellerAfter) <= u.Value(a.Inventory) {
		t.Fatalf("trade not mutually improving")
	}
}

func TestIdenticalAgentsUnpair(t *testing.T) {
	u := cd(t)
	eff := proto().Negotiate(party(3, u, 5, 5), party(1, u, 5, 5))
	if len(eff) != 1 || eff[0].Kind != model.EffectUnpair || eff[0].Reason != model.ReasonNoSurplus {
		t.Fatalf("effects=%+v", eff)
	}
	if eff[0].Agent != 1 || eff[0].Other != 3 {
		t.Fatalf("unpair ids not ordered: %+v", eff[0])
	}
}

func TestSellerWithoutStockCannotTrade(t *testing.T) {
	u := cd(t)
	eff := proto().Negotiate(party(1, u, 0, 2), party(2, u, 0, 8))
	if eff[0].Kind != model.EffectUnpair {
		t.Fatalf("effects=%+v", eff)
	}
}

func TestCandidatesMidpointFirst(t *testing.T) {
	got := Candidates(1, 3, 3, 4)
	want := []string{"2", "1.5", "2.5"}
	if len(got) != len(want) {
		t.Fatalf("got %v", got)
	}
	for i := range want {
		if got[i].String() != want[i] {
			t.Fatalf("got %v want %v", got, want)
		}
	}
}
