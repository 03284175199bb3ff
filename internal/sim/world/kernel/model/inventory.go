package model

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Inventory maps good symbols to non-negative fixed precision quantities.
type Inventory map[string]decimal.Decimal

func (inv Inventory) Get(good string) decimal.Decimal {
	if inv == nil {
		return decimal.Zero
	}
	return inv[good]
}

func (inv Inventory) Add(good string, d decimal.Decimal) {
	inv[good] = inv[good].Add(d)
}

func (inv Inventory) Clone() Inventory {
	out := make(Inventory, len(inv))
	for k, v := range inv {
		out[k] = v
	}
	return out
}

// With returns a copy adjusted by the given deltas. Used for hypothetical
// utility evaluation without touching the original.
func (inv Inventory) With(deltas map[string]decimal.Decimal) Inventory {
	out := inv.Clone()
	for g, d := range deltas {
		out[g] = out[g].Add(d)
	}
	return out
}

func (inv Inventory) Goods() []string {
	out := make([]string, 0, len(inv))
	for k := range inv {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Negative lists goods with a negative quantity, sorted.
func (inv Inventory) Negative() []string {
	var out []string
	for _, g := range inv.Goods() {
		if inv[g].IsNegative() {
			out = append(out, g)
		}
	}
	return out
}

func (inv Inventory) Equal(o Inventory) bool {
	for _, g := range inv.Goods() {
		if !inv[g].Equal(o.Get(g)) {
			return false
		}
	}
	for _, g := range o.Goods() {
		if !o[g].Equal(inv.Get(g)) {
			return false
		}
	}
	return true
}
