package model

// Utility is the preference function an agent evaluates bundles with.
// Implementations live in feature/utility and must be pure.
type Utility interface {
	Kind() string
	Value(inv Inventory) float64
	Marginal(inv Inventory, good string) float64
}
