package movement

import (
	"testing"

	"econgrid.ai/internal/sim/world/kernel/model"
	"econgrid.ai/internal/sim/world/logic/mathx"
)

func TestPrimaryAxisTieBreak(t *testing.T) {
	cases := []struct {
		dx, dy int
		wantX  bool
	}{
		{3, 1, true},
		{1, -3, false},
		{2, 2, true},   // neither negative
		{-2, -2, true}, // both negative
		{2, -2, false}, // y negative
		{-2, 2, true},  // x negative
	}
	for _, c := range cases {
		if got := PrimaryAxis(c.dx, c.dy); got != c.wantX {
			t.Fatalf("PrimaryAxis(%d,%d)=%v want %v", c.dx, c.dy, got, c.wantX)
		}
	}
}

type stubEnv struct {
	agents map[model.AgentID]*model.Agent
	w, h   int
}

func (s *stubEnv) SortedAgents() []*model.Agent {
	out := make([]*model.Agent, 0, len(s.agents))
	for _, id := range model.SortedAgentIDs(s.agents) {
		out = append(out, s.agents[id])
	}
	return out
}
func (s *stubEnv) Agent(id model.AgentID) *model.Agent { return s.agents[id] }
func (s *stubEnv) Clamp(p model.Vec2) model.Vec2 {
	return model.Vec2{X: mathx.ClampInt(p.X, 0, s.w-1), Y: mathx.ClampInt(p.Y, 0, s.h-1)}
}
func (s *stubEnv) SetPos(a *model.Agent, p model.Vec2) { a.Pos = p }

func newStub(agents ...*model.Agent) *stubEnv {
	env := &stubEnv{agents: map[model.AgentID]*model.Agent{}, w: 20, h: 20}
	for _, a := range agents {
		env.agents[a.ID] = a
	}
	return env
}

func TestMovesUpToBudgetTowardResource(t *testing.T) {
	a := &model.Agent{ID: 1, Pos: model.Vec2{X: 0, Y: 0}, Target: model.Target{Kind: model.TargetResource, Pos: model.Vec2{X: 5, Y: 1}}}
	env := newStub(a)
	if n := RunMovementSystem(env, Params{Budget: 3, InteractionRadius: 1}); n != 1 {
		t.Fatalf("moved=%d", n)
	}
	if a.Pos != (model.Vec2{X: 3, Y: 0}) {
		t.Fatalf("pos=%v", a.Pos)
	}
	RunMovementSystem(env, Params{Budget: 5, InteractionRadius: 1})
	if a.Pos != (model.Vec2{X: 5, Y: 1}) {
		t.Fatalf("should stop on the cell: %v", a.Pos)
	}
}

func TestPartnerWithinInteractionRadiusDoesNotMove(t *testing.T) {
	a := &model.Agent{ID: 1, Pos: model.Vec2{X: 2, Y: 2}, Partner: 2, Target: model.Target{Kind: model.TargetAgent, ID: 2}}
	b := &model.Agent{ID: 2, Pos: model.Vec2{X: 3, Y: 2}, Partner: 1, Target: model.Target{Kind: model.TargetAgent, ID: 1}}
	env := newStub(a, b)
	if n := RunMovementSystem(env, Params{Budget: 2, InteractionRadius: 1}); n != 0 {
		t.Fatalf("moved=%d", n)
	}
}

func TestDiagonalMutualApproachHigherIDWaits(t *testing.T) {
	a := &model.Agent{ID: 1, Pos: model.Vec2{X: 2, Y: 2}, Partner: 2, Target: model.Target{Kind: model.TargetAgent, ID: 2}}
	b := &model.Agent{ID: 2, Pos: model.Vec2{X: 3, Y: 3}, Partner: 1, Target: model.Target{Kind: model.TargetAgent, ID: 1}}
	env := newStub(a, b)
	RunMovementSystem(env, Params{Budget: 1, InteractionRadius: 1})
	if b.Pos != (model.Vec2{X: 3, Y: 3}) {
		t.Fatalf("higher id moved: %v", b.Pos)
	}
	if a.Pos.Manhattan(b.Pos) != 1 {
		t.Fatalf("lower id did not close in: %v", a.Pos)
	}
}

func TestMarketAssignedAgentsStay(t *testing.T) {
	a := &model.Agent{ID: 1, Pos: model.Vec2{}, Market: 3, Target: model.Target{Kind: model.TargetMarket, Pos: model.Vec2{X: 9, Y: 9}}}
	env := newStub(a)
	RunMovementSystem(env, Params{Budget: 4})
	if a.Pos != (model.Vec2{}) {
		t.Fatalf("market agent moved to %v", a.Pos)
	}
}

func TestTargetClampedToGrid(t *testing.T) {
	a := &model.Agent{ID: 1, Pos: model.Vec2{X: 18, Y: 0}, Target: model.Target{Kind: model.TargetResource, Pos: model.Vec2{X: 40, Y: 0}}}
	env := newStub(a)
	RunMovementSystem(env, Params{Budget: 5})
	if a.Pos != (model.Vec2{X: 19, Y: 0}) {
		t.Fatalf("pos=%v", a.Pos)
	}
}
