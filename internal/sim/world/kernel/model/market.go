package model

import (
	"sort"

	"github.com/shopspring/decimal"
)

// PriceHistoryCap bounds Market.History.
const PriceHistoryCap = 64

type PricePoint struct {
	Tick  uint64          `json:"tick"`
	Good  string          `json:"good"`
	Price decimal.Decimal `json:"price"`
	Qty   decimal.Decimal `json:"qty"`
}

type Market struct {
	ID     MarketID
	Center Vec2
	Radius int

	Participants  []AgentID
	Prices        map[string]decimal.Decimal
	LastClearTick map[string]uint64
	History       []PricePoint

	FormedTick        uint64
	TicksFormed       int
	TicksBelowSustain int
}

func NewMarket(id MarketID, center Vec2, radius int, now uint64) *Market {
	return &Market{
		ID:            id,
		Center:        center,
		Radius:        radius,
		Prices:        map[string]decimal.Decimal{},
		LastClearTick: map[string]uint64{},
		FormedTick:    now,
	}
}

func (m *Market) Contains(p Vec2) bool {
	return m.Center.Manhattan(p) <= m.Radius
}

// PriceAge is ticks since the good last cleared here, or -1 if never.
func (m *Market) PriceAge(good string, now uint64) int {
	t, ok := m.LastClearTick[good]
	if !ok {
		return -1
	}
	return int(now - t)
}

func (m *Market) HasParticipant(id AgentID) bool {
	i := sort.Search(len(m.Participants), func(i int) bool { return m.Participants[i] >= id })
	return i < len(m.Participants) && m.Participants[i] == id
}

func (m *Market) AddParticipant(id AgentID) {
	i := sort.Search(len(m.Participants), func(i int) bool { return m.Participants[i] >= id })
	if i < len(m.Participants) && m.Participants[i] == id {
		return
	}
	m.Participants = append(m.Participants, 0)
	copy(m.Participants[i+1:], m.Participants[i:])
	m.Participants[i] = id
}

func (m *Market) RemoveParticipant(id AgentID) {
	i := sort.Search(len(m.Participants), func(i int) bool { return m.Participants[i] >= id })
	if i < len(m.Participants) && m.Participants[i] == id {
		m.Participants = append(m.Participants[:i], m.Participants[i+1:]...)
	}
}

func (m *Market) RecordClear(now uint64, good string, price, qty decimal.Decimal) {
	m.Prices[good] = price
	m.LastClearTick[good] = now
	m.History = append(m.History, PricePoint{Tick: now, Good: good, Price: price, Qty: qty})
	if over := len(m.History) - PriceHistoryCap; over > 0 {
		m.History = append(m.History[:0], m.History[over:]...)
	}
}

func (m *Market) Clone() *Market {
	out := *m
	out.Participants = append([]AgentID(nil), m.Participants...)
	out.Prices = make(map[string]decimal.Decimal, len(m.Prices))
	for k, v := range m.Prices {
		out.Prices[k] = v
	}
	out.LastClearTick = make(map[string]uint64, len(m.LastClearTick))
	for k, v := range m.LastClearTick {
		out.LastClearTick[k] = v
	}
	out.History = append([]PricePoint(nil), m.History...)
	return &out
}
