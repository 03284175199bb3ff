// Package movement advances agents toward their targets. It is the only
// writer of agent positions.
package movement

import "econgrid.ai/internal/sim/world/kernel/model"

type Params struct {
	Budget            int
	InteractionRadius int
}

type MovementSystemEnv interface {
	SortedAgents() []*model.Agent
	Agent(id model.AgentID) *model.Agent
	Clamp(pos model.Vec2) model.Vec2
	// SetPos writes the position and updates the spatial index.
	SetPos(a *model.Agent, pos model.Vec2)
}

// RunMovementSystem moves every agent with a target up to Budget steps, in id
// order, and returns how many agents changed cell.
func RunMovementSystem(env MovementSystemEnv, p Params) int {
	if env == nil || p.Budget <= 0 {
		return 0
	}
	agents := env.SortedAgents()

	// Paired agents one diagonal apart would swap forever; the higher id waits.
	waits := map[model.AgentID]bool{}
	for _, a := range agents {
		if a.Target.Kind != model.TargetAgent {
			continue
		}
		b := env.Agent(model.AgentID(a.Target.ID))
		if b == nil || b.ID < a.ID || b.Target.Kind != model.TargetAgent || model.AgentID(b.Target.ID) != a.ID {
			continue
		}
		if abs(a.Pos.X-b.Pos.X) == 1 && abs(a.Pos.Y-b.Pos.Y) == 1 {
			waits[b.ID] = true
		}
	}

	moved := 0
	for _, a := range agents {
		if a.Market != 0 || a.Target.Kind == model.TargetNone || waits[a.ID] {
			continue
		}
		target := a.Target.Pos
		stopAt := 0
		if a.Target.Kind == model.TargetAgent {
			other := env.Agent(model.AgentID(a.Target.ID))
			if other == nil {
				continue
			}
			target = other.Pos
			stopAt = p.InteractionRadius
		}
		target = env.Clamp(target)
		start := a.Pos
		cur := a.Pos
		for step := 0; step < p.Budget; step++ {
			if cur.Manhattan(target) <= stopAt {
				break
			}
			cur = env.Clamp(NextStep(cur, target))
		}
		if cur != start {
			env.SetPos(a, cur)
			moved++
		}
	}
	return moved
}
