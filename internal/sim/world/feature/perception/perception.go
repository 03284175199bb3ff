// Package perception builds the frozen per-agent views every decision is made from.
package perception

import (
	"sync"

	"econgrid.ai/internal/sim/world/kernel/model"
	"github.com/shopspring/decimal"
)

// Env is the read-only world surface perception needs. Implementations must
// be safe for concurrent readers while no phase is writing.
type Env interface {
	Agent(id model.AgentID) *model.Agent
	Neighbors(pos model.Vec2, r int) []model.AgentID
	VisibleResources(pos model.Vec2, r int) []model.ResourceCell
	Markets() []*model.Market
}

type Self struct {
	ID        model.AgentID
	Pos       model.Vec2
	Inventory model.Inventory
	Quotes    map[string]model.Quote
	Partner   model.AgentID
	Market    model.MarketID
	Cooldowns map[model.AgentID]uint64
	Utility   model.Utility
}

type Neighbor struct {
	ID      model.AgentID
	Pos     model.Vec2
	Quotes  map[string]model.Quote
	Partner model.AgentID
	Market  model.MarketID
}

type MarketView struct {
	ID           model.MarketID
	Center       model.Vec2
	Radius       int
	Participants int
	Prices       map[string]decimal.Decimal
	// PriceAge per good: ticks since last clearing, -1 if never cleared.
	PriceAge map[string]int
}

type View struct {
	Tick      uint64
	Self      Self
	Neighbors []Neighbor
	Resources []model.ResourceCell
	Markets   []MarketView
}

type Options struct {
	VisionRadius int
	Goods        []string
	Workers      int
}

// Build snapshots what agent id can see. Everything is copied.
func Build(env Env, id model.AgentID, now uint64, opt Options) View {
	a := env.Agent(id)
	v := View{Tick: now}
	if a == nil {
		return v
	}
	v.Self = Self{
		ID:        a.ID,
		Pos:       a.Pos,
		Inventory: a.Inventory.Clone(),
		Quotes:    a.CloneQuotes(),
		Partner:   a.Partner,
		Market:    a.Market,
		Cooldowns: a.CloneCooldowns(),
		Utility:   a.Utility,
	}
	for _, nid := range env.Neighbors(a.Pos, opt.VisionRadius) {
		if nid == id {
			continue
		}
		n := env.Agent(nid)
		if n == nil {
			continue
		}
		v.Neighbors = append(v.Neighbors, Neighbor{
			ID:      n.ID,
			Pos:     n.Pos,
			Quotes:  n.CloneQuotes(),
			Partner: n.Partner,
			Market:  n.Market,
		})
	}
	v.Resources = env.VisibleResources(a.Pos, opt.VisionRadius)
	for _, m := range env.Markets() {
		if m.Center.Manhattan(a.Pos) > opt.VisionRadius {
			continue
		}
		mv := MarketView{
			ID:           m.ID,
			Center:       m.Center,
			Radius:       m.Radius,
			Participants: len(m.Participants),
			Prices:       make(map[string]decimal.Decimal, len(m.Prices)),
			PriceAge:     make(map[string]int, len(opt.Goods)),
		}
		for g, p := range m.Prices {
			mv.Prices[g] = p
		}
		for _, g := range opt.Goods {
			mv.PriceAge[g] = m.PriceAge(g, now)
		}
		v.Markets = append(v.Markets, mv)
	}
	return v
}

// BuildAll builds views for ids (result index matches ids). With Workers > 1
// views are built concurrently; each worker writes only its own slots.
func BuildAll(env Env, ids []model.AgentID, now uint64, opt Options) []View {
	out := make([]View, len(ids))
	workers := opt.Workers
	if workers <= 1 || len(ids) < 2*workers {
		for i, id := range ids {
			out[i] = Build(env, id, now, opt)
		}
		return out
	}
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(start int) {
			defer wg.Done()
			for i := start; i < len(ids); i += workers {
				out[i] = Build(env, ids[i], now, opt)
			}
		}(w)
	}
	wg.Wait()
	return out
}
