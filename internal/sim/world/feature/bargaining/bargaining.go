// Package bargaining negotiates a single trade between two paired agents.
package bargaining

import (
	"sort"

	"econgrid.ai/internal/sim/world/feature/utility"
	"econgrid.ai/internal/sim/world/kernel/model"
	"econgrid.ai/internal/sim/world/logic/fixedpt"
	"github.com/shopspring/decimal"
)

type Party struct {
	ID        model.AgentID
	Inventory model.Inventory
	Utility   model.Utility
}

type Protocol interface {
	Name() string
	// Negotiate returns exactly one effect: a Trade or an Unpair.
	Negotiate(a, b Party) []model.Effect
}

type Params struct {
	MaxTradeUnits   int
	PriceCandidates int
	Tolerance       float64
	QtyDecimals     int32
	PriceDecimals   int32
	Numeraire       string
	Goods           []string
}

// BlockSearch scans goods in order, sizes 1..MaxTradeUnits and a fixed grid of
// prices between the two reservation prices, and takes the first mutually
// improving combination.
type BlockSearch struct {
	P Params
}

func NewBlockSearch(p Params) *BlockSearch { return &BlockSearch{P: p} }

func (b *BlockSearch) Name() string { return "block_search" }

func (b *BlockSearch) Negotiate(x, y Party) []model.Effect {
	num := b.P.Numeraire
	for _, g := range b.P.Goods {
		if g == num {
			continue
		}
		rx := utility.Reservation(x.Utility, x.Inventory, g, num)
		ry := utility.Reservation(y.Utility, y.Inventory, g, num)
		if rx == ry {
			continue
		}
		buyer, seller := x, y
		hi, lo := rx, ry
		if ry > rx {
			buyer, seller = y, x
			hi, lo = ry, rx
		}
		prices := Candidates(lo, hi, b.P.PriceCandidates, b.P.PriceDecimals)
		for units := 1; units <= b.P.MaxTradeUnits; units++ {
			q := decimal.NewFromInt(int64(units))
			if seller.Inventory.Get(g).LessThan(q) {
				break
			}
			for _, p := range prices {
				pay := q.Mul(p).Round(b.P.QtyDecimals)
				if !pay.IsPositive() || buyer.Inventory.Get(num).LessThan(pay) {
					continue
				}
				duB := utility.Gain(buyer.Utility, buyer.Inventory, map[string]decimal.Decimal{g: q, num: pay.Neg()})
				duS := utility.Gain(seller.Utility, seller.Inventory, map[string]decimal.Decimal{g: q.Neg(), num: pay})
				if duB > b.P.Tolerance && duS > b.P.Tolerance {
					return []model.Effect{model.Trade(buyer.ID, seller.ID, g, q, p, pay, model.OriginBilateral, 0)}
				}
			}
		}
	}
	return []model.Effect{model.Unpair(x.ID, y.ID, model.ReasonNoSurplus)}
}

// Candidates spaces n prices strictly between lo and hi, midpoint first and
// then alternating outward (lower side first). Duplicates after rounding are dropped.
func Candidates(lo, hi float64, n int, places int32) []decimal.Decimal {
	if n < 1 {
		n = 1
	}
	type cand struct {
		frac float64
		dist float64
	}
	cs := make([]cand, n)
	for i := 0; i < n; i++ {
		f := float64(i+1) / float64(n+1)
		d := f - 0.5
		if d < 0 {
			d = -d
		}
		cs[i] = cand{frac: f, dist: d}
	}
	sort.SliceStable(cs, func(i, j int) bool {
		if cs[i].dist != cs[j].dist {
			return cs[i].dist < cs[j].dist
		}
		return cs[i].frac < cs[j].frac
	})
	out := make([]decimal.Decimal, 0, n)
	seen := map[string]bool{}
	for _, c := range cs {
		p := fixedpt.Price(lo+c.frac*(hi-lo), places)
		if !p.IsPositive() || seen[p.String()] {
			continue
		}
		seen[p.String()] = true
		out = append(out, p)
	}
	return out
}
