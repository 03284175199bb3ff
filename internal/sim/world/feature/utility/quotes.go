package utility

import (
	"econgrid.ai/internal/sim/world/kernel/model"
	"econgrid.ai/internal/sim/world/logic/fixedpt"
	"github.com/shopspring/decimal"
)

// Reservation is MU_good / MU_numeraire, floored at zero.
func Reservation(u model.Utility, inv model.Inventory, good, numeraire string) float64 {
	mn := u.Marginal(inv, numeraire)
	if mn < Epsilon {
		mn = Epsilon
	}
	r := u.Marginal(inv, good) / mn
	if r < 0 {
		return 0
	}
	return r
}

// Gain is U(inv + deltas) - U(inv).
func Gain(u model.Utility, inv model.Inventory, deltas map[string]decimal.Decimal) float64 {
	return u.Value(inv.With(deltas)) - u.Value(inv)
}

// InNumeraire converts a utility delta into numeraire units at the current margin.
func InNumeraire(u model.Utility, inv model.Inventory, numeraire string, du float64) float64 {
	mn := u.Marginal(inv, numeraire)
	if mn < Epsilon {
		mn = Epsilon
	}
	return du / mn
}

// Quotes computes reservation/bid/ask for every non-numeraire good.
// bid = r*(1-spread), ask = r*(1+spread).
func Quotes(u model.Utility, inv model.Inventory, goods []string, numeraire string, spread float64, priceDecimals int32) map[string]model.Quote {
	out := make(map[string]model.Quote, len(goods))
	for _, g := range goods {
		if g == numeraire {
			continue
		}
		r := Reservation(u, inv, g, numeraire)
		out[g] = model.Quote{
			Reservation: fixedpt.Price(r, priceDecimals),
			Bid:         fixedpt.Price(r*(1-spread), priceDecimals),
			Ask:         fixedpt.Price(r*(1+spread), priceDecimals),
		}
	}
	return out
}

// QuoteSurplus estimates the best per-unit gain from a bilateral trade between
// two quote books: max over goods of bid_a-ask_b and bid_b-ask_a, positive part.
func QuoteSurplus(a, b map[string]model.Quote, goods []string) float64 {
	best := 0.0
	for _, g := range goods {
		qa, okA := a[g]
		qb, okB := b[g]
		if !okA || !okB {
			continue
		}
		if s := fixedpt.Float(qa.Bid.Sub(qb.Ask)); s > best {
			best = s
		}
		if s := fixedpt.Float(qb.Bid.Sub(qa.Ask)); s > best {
			best = s
		}
	}
	return best
}
