package world

import (
	"sort"

	"github.com/shopspring/decimal"
)

func (w *World) fillSummary() {
	s := &w.cur.summary
	s.ActivePairs = w.activePairs()

	lo := map[string]decimal.Decimal{}
	hi := map[string]decimal.Decimal{}
	seen := map[string]int{}
	for _, m := range w.sortedMarkets() {
		ms := MarketSummary{ID: m.ID, Center: m.Center, Participants: len(m.Participants)}
		if len(m.Prices) > 0 {
			ms.Prices = make(map[string]string, len(m.Prices))
		}
		for g, p := range m.Prices {
			ms.Prices[g] = p.String()
			if seen[g] == 0 || p.LessThan(lo[g]) {
				lo[g] = p
			}
			if seen[g] == 0 || p.GreaterThan(hi[g]) {
				hi[g] = p
			}
			seen[g]++
		}
		s.Markets = append(s.Markets, ms)
	}

	goods := make([]string, 0, len(seen))
	for g, n := range seen {
		if n >= 2 {
			goods = append(goods, g)
		}
	}
	sort.Strings(goods)
	for _, g := range goods {
		if s.PriceDispersion == nil {
			s.PriceDispersion = map[string]string{}
		}
		s.PriceDispersion[g] = hi[g].Sub(lo[g]).String()
	}
}

// PriceDispersion is max minus min posted price for good across live
// markets, and false when fewer than two markets have a price.
func (w *World) PriceDispersion(good string) (decimal.Decimal, bool) {
	var lo, hi decimal.Decimal
	n := 0
	for _, m := range w.markets {
		p, ok := m.Prices[good]
		if !ok {
			continue
		}
		if n == 0 || p.LessThan(lo) {
			lo = p
		}
		if n == 0 || p.GreaterThan(hi) {
			hi = p
		}
		n++
	}
	if n < 2 {
		return decimal.Zero, false
	}
	return hi.Sub(lo), true
}
