package world

import (
	"econgrid.ai/internal/sim/world/feature/resources"
)

func (w *World) resourceParams() resources.Params {
	return resources.Params{
		ForageRate:      w.cfg.ForageRate,
		RegenRate:       w.cfg.RegenRate,
		RegenCooldown:   uint64(w.cfg.RegenCooldown),
		SingleHarvester: w.cfg.SingleHarvester,
	}
}

// systemForage lets free agents (unpaired, outside markets) harvest the cell
// they stand on.
func (w *World) systemForage() {
	var foragers []resources.Forager
	for _, id := range w.order {
		a := w.agents[id]
		if a.Partner != 0 || a.Market != 0 {
			continue
		}
		foragers = append(foragers, resources.Forager{ID: a.ID, Pos: a.Pos})
	}
	w.applyAll(phaseForaging, resources.PlanForage(w.grid, foragers, w.resourceParams()))
}

func (w *World) systemRegeneration(now uint64) {
	w.applyAll(phaseRegeneration, resources.PlanRegeneration(w.grid, now, w.resourceParams()))
}
