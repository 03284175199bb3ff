package model

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func TestCentroidRounds(t *testing.T) {
	got := Centroid([]Vec2{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 2, Y: 1}, {X: 2, Y: 1}})
	// mean (1.25, 0.5) -> (1, 1)
	if got != (Vec2{X: 1, Y: 1}) {
		t.Fatalf("centroid=%+v", got)
	}
}

func TestMarketParticipantsStaySorted(t *testing.T) {
	m := NewMarket(1, Vec2{}, 2, 0)
	for _, id := range []AgentID{5, 2, 9, 2, 7} {
		m.AddParticipant(id)
	}
	want := []AgentID{2, 5, 7, 9}
	if len(m.Participants) != len(want) {
		t.Fatalf("participants=%v", m.Participants)
	}
	for i := range want {
		if m.Participants[i] != want[i] {
			t.Fatalf("participants=%v want %v", m.Participants, want)
		}
	}
	m.RemoveParticipant(5)
	if m.HasParticipant(5) || !m.HasParticipant(7) {
		t.Fatalf("remove failed: %v", m.Participants)
	}
}

func TestMarketHistoryBounded(t *testing.T) {
	m := NewMarket(1, Vec2{}, 2, 0)
	for i := 0; i < PriceHistoryCap+10; i++ {
		m.RecordClear(uint64(i), "A", decimal.NewFromInt(int64(i)), decimal.NewFromInt(1))
	}
	if len(m.History) != PriceHistoryCap {
		t.Fatalf("history len=%d", len(m.History))
	}
	if m.History[0].Tick != 10 {
		t.Fatalf("oldest tick=%d want 10", m.History[0].Tick)
	}
	if age := m.PriceAge("A", uint64(PriceHistoryCap+12)); age != 3 {
		t.Fatalf("age=%d", age)
	}
	if age := m.PriceAge("B", 5); age != -1 {
		t.Fatalf("unknown good age=%d", age)
	}
}

func TestPairEffectOrdersIDs(t *testing.T) {
	e := Pair(9, 3)
	if e.Agent != 3 || e.Other != 9 {
		t.Fatalf("pair=%+v", e)
	}
}

func TestEffectJSONOmitsZeroDecimals(t *testing.T) {
	b, err := json.Marshal(Pair(1, 2))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	s := string(b)
	if strings.Contains(s, "qty") || strings.Contains(s, "payment") {
		t.Fatalf("unexpected zero fields: %s", s)
	}
	b, _ = json.Marshal(Trade(1, 2, "A", decimal.NewFromInt(1), decimal.RequireFromString("2.5"), decimal.RequireFromString("2.5"), OriginBilateral, 0))
	if !strings.Contains(string(b), `"payment":"2.5"`) {
		t.Fatalf("trade json=%s", b)
	}
}

func TestInventoryWithDoesNotMutate(t *testing.T) {
	inv := Inventory{"A": decimal.NewFromInt(3)}
	next := inv.With(map[string]decimal.Decimal{"A": decimal.NewFromInt(-1), "B": decimal.NewFromInt(2)})
	if !inv["A"].Equal(decimal.NewFromInt(3)) {
		t.Fatalf("original mutated")
	}
	if !next["A"].Equal(decimal.NewFromInt(2)) || !next["B"].Equal(decimal.NewFromInt(2)) {
		t.Fatalf("next=%v", next)
	}
	if inv.Equal(next) {
		t.Fatalf("expected unequal")
	}
}
