// Package fixedpt holds the decimal conventions for quantities and prices.
//
// Quantities are kept at a fixed number of decimal places (the quantity unit),
// prices at their own precision. Values crossing from float utility math into
// state always go through Qty / Price so every run rounds identically.
package fixedpt

import "github.com/shopspring/decimal"

var (
	Zero = decimal.Zero
	One  = decimal.NewFromInt(1)
)

// Unit is the smallest representable step at the given number of places.
func Unit(places int32) decimal.Decimal {
	return decimal.New(1, -places)
}

func Qty(f float64, places int32) decimal.Decimal {
	return decimal.NewFromFloat(f).Round(places)
}

func Price(f float64, places int32) decimal.Decimal {
	return decimal.NewFromFloat(f).Round(places)
}

// Trunc rounds toward zero. Used for trade slices so no participant is ever
// asked for more than it offered.
func Trunc(d decimal.Decimal, places int32) decimal.Decimal {
	return d.Truncate(places)
}

func Float(d decimal.Decimal) float64 {
	return d.InexactFloat64()
}

func Min(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}

func Max(a, b decimal.Decimal) decimal.Decimal {
	if a.GreaterThan(b) {
		return a
	}
	return b
}

func Clamp(v, lo, hi decimal.Decimal) decimal.Decimal {
	return Max(lo, Min(v, hi))
}

// Parse reads a decimal from scenario or snapshot text. Empty means zero.
func Parse(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}
