package resources

import (
	"econgrid.ai/internal/sim/world/kernel/model"
	"github.com/shopspring/decimal"
)

// Forager is an agent allowed to harvest this tick (unpaired, not market-assigned).
type Forager struct {
	ID  model.AgentID
	Pos model.Vec2
}

// PlanForage emits Harvest effects for foragers standing on stocked cells.
// Foragers must be sorted by id; the lowest id wins a contested cell when
// SingleHarvester is set.
func PlanForage(g *Grid, foragers []Forager, p Params) []model.Effect {
	if !p.ForageRate.IsPositive() {
		return nil
	}
	remaining := map[model.CellID]decimal.Decimal{}
	taken := map[model.CellID]bool{}
	var out []model.Effect
	for _, f := range foragers {
		c := g.At(f.Pos)
		if c == nil {
			continue
		}
		if p.SingleHarvester && taken[c.ID] {
			continue
		}
		stock, ok := remaining[c.ID]
		if !ok {
			stock = c.Stock
		}
		if !stock.IsPositive() {
			continue
		}
		q := decimal.Min(p.ForageRate, stock)
		remaining[c.ID] = stock.Sub(q)
		taken[c.ID] = true
		out = append(out, model.Harvest(f.ID, c.ID, c.Good, q))
	}
	return out
}

// PlanRegeneration visits only the active set, in id order.
func PlanRegeneration(g *Grid, now uint64, p Params) []model.Effect {
	if !p.RegenRate.IsPositive() {
		return nil
	}
	var out []model.Effect
	for _, id := range g.ActiveIDs() {
		c := g.cells[id]
		if c.Harvested && now-c.LastHarvestTick < p.RegenCooldown {
			continue
		}
		missing := c.Cap.Sub(c.Stock)
		if !missing.IsPositive() {
			continue
		}
		out = append(out, model.Regenerate(id, c.Good, decimal.Min(p.RegenRate, missing)))
	}
	return out
}
