package world

import (
	"econgrid.ai/internal/sim/world/feature/bargaining"
	"econgrid.ai/internal/sim/world/feature/market"
	"econgrid.ai/internal/sim/world/feature/matching"
	"econgrid.ai/internal/sim/world/feature/search"
)

// initProtocols resolves the configured protocol names once. Nothing
// dispatches on these strings after New.
func (w *World) initProtocols() error {
	c := &w.cfg
	switch c.SearchProtocol {
	case "distance_discounted":
		w.search = search.NewDistanceDiscounted(search.Params{
			Beta:              c.Beta,
			PriceStaleTicks:   c.PriceStaleTicks,
			MarketPlaceholder: c.MarketPlaceholderValue,
			ForageRate:        c.ForageRate,
			Numeraire:         c.Numeraire,
			Goods:             c.Goods,
		})
	default:
		return configErr("unknown search protocol %q", c.SearchProtocol)
	}
	switch c.MatchingProtocol {
	case "three_pass":
		w.matching = matching.ThreePass{}
	default:
		return configErr("unknown matching protocol %q", c.MatchingProtocol)
	}
	switch c.BargainingProtocol {
	case "block_search":
		w.bargaining = bargaining.NewBlockSearch(bargaining.Params{
			MaxTradeUnits:   c.MaxTradeUnits,
			PriceCandidates: c.PriceCandidates,
			Tolerance:       c.TradeTolerance,
			QtyDecimals:     c.QuantityDecimals,
			PriceDecimals:   c.PriceDecimals,
			Numeraire:       c.Numeraire,
			Goods:           c.Goods,
		})
	default:
		return configErr("unknown bargaining protocol %q", c.BargainingProtocol)
	}
	switch c.MarketMechanism {
	case "tatonnement":
		w.mechanism = market.NewTatonnement(market.ClearingParams{
			MaxIterations: c.MaxIterations,
			Tolerance:     c.Tolerance,
			Speed:         c.AdjustmentSpeed,
			PriceFloor:    c.PriceFloor,
			Elasticity:    c.Elasticity,
			OrderCap:      c.OrderCap,
			QtyDecimals:   c.QuantityDecimals,
			PriceDecimals: c.PriceDecimals,
		})
	default:
		return configErr("unknown market mechanism %q", c.MarketMechanism)
	}
	return nil
}
