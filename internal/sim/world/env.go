package world

import (
	"econgrid.ai/internal/sim/world/feature/housekeeping"
	"econgrid.ai/internal/sim/world/feature/market"
	"econgrid.ai/internal/sim/world/feature/movement"
	"econgrid.ai/internal/sim/world/feature/perception"
	"econgrid.ai/internal/sim/world/kernel/model"
)

// worldEnv adapts the world to the feature packages' Env interfaces without
// exporting mutable accessors on World itself.
type worldEnv struct{ w *World }

var (
	_ perception.Env             = worldEnv{}
	_ market.FormationEnv        = worldEnv{}
	_ movement.MovementSystemEnv = worldEnv{}
	_ housekeeping.Env           = worldEnv{}
)

func (e worldEnv) Agent(id model.AgentID) *model.Agent { return e.w.agents[id] }

func (e worldEnv) SortedAgents() []*model.Agent { return e.w.sortedAgents() }

func (e worldEnv) Neighbors(pos model.Vec2, r int) []model.AgentID {
	return e.w.index.QueryRadius(pos, r)
}

func (e worldEnv) Within(pos model.Vec2, r int) []model.AgentID {
	return e.w.index.QueryRadius(pos, r)
}

func (e worldEnv) VisibleResources(pos model.Vec2, r int) []model.ResourceCell {
	return e.w.grid.Visible(pos, r)
}

func (e worldEnv) Markets() []*model.Market { return e.w.sortedMarkets() }

func (e worldEnv) Market(id model.MarketID) *model.Market { return e.w.markets[id] }

func (e worldEnv) Pos(id model.AgentID) model.Vec2 {
	if a := e.w.agents[id]; a != nil {
		return a.Pos
	}
	return model.Vec2{}
}

func (e worldEnv) Partner(id model.AgentID) model.AgentID {
	if a := e.w.agents[id]; a != nil {
		return a.Partner
	}
	return 0
}

func (e worldEnv) Clamp(pos model.Vec2) model.Vec2 { return e.w.grid.Clamp(pos) }

func (e worldEnv) SetPos(a *model.Agent, pos model.Vec2) {
	a.Pos = pos
	e.w.index.Update(a.ID, pos)
}
