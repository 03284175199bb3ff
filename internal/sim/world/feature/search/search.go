// Package search ranks what each agent could pursue this tick.
package search

import (
	"math"
	"sort"

	"econgrid.ai/internal/sim/world/feature/perception"
	"econgrid.ai/internal/sim/world/feature/utility"
	"econgrid.ai/internal/sim/world/kernel/model"
	"econgrid.ai/internal/sim/world/logic/fixedpt"
	"github.com/shopspring/decimal"
)

type Preference struct {
	Kind       model.TargetKind
	TargetID   uint32
	Pos        model.Vec2
	Distance   int
	Raw        float64
	Discounted float64
}

func (p Preference) Target() model.Target {
	return model.Target{Kind: p.Kind, ID: p.TargetID, Pos: p.Pos}
}

// Context carries the per-tick gates from the mode schedule.
type Context struct {
	AllowTrade   bool
	AllowForage  bool
	AllowMarkets bool
}

type Protocol interface {
	Name() string
	BuildPreferences(v perception.View, ctx Context) []Preference
	// SelectTarget picks the first feasible preference. Resource picks are
	// recorded in claims so later agents skip them.
	SelectTarget(agent model.AgentID, prefs []Preference, claims *Claims) []model.Effect
}

// Claims tracks resource cells taken during one decision step.
type Claims struct {
	owner map[model.CellID]model.AgentID
}

func NewClaims() *Claims { return &Claims{owner: map[model.CellID]model.AgentID{}} }

func (c *Claims) TakenByOther(cell model.CellID, self model.AgentID) bool {
	o, ok := c.owner[cell]
	return ok && o != self
}

func (c *Claims) Claim(cell model.CellID, self model.AgentID) {
	if _, ok := c.owner[cell]; !ok {
		c.owner[cell] = self
	}
}

func (c *Claims) Owner(cell model.CellID) (model.AgentID, bool) {
	o, ok := c.owner[cell]
	return o, ok
}

type Params struct {
	Beta              float64
	PriceStaleTicks   int
	MarketPlaceholder float64
	ForageRate        decimal.Decimal
	Numeraire         string
	Goods             []string
}

// DistanceDiscounted values every candidate at Raw * Beta^distance.
type DistanceDiscounted struct {
	P Params
}

func NewDistanceDiscounted(p Params) *DistanceDiscounted { return &DistanceDiscounted{P: p} }

func (s *DistanceDiscounted) Name() string { return "distance_discounted" }

func (s *DistanceDiscounted) discount(raw float64, dist int) float64 {
	return raw * math.Pow(s.P.Beta, float64(dist))
}

func (s *DistanceDiscounted) BuildPreferences(v perception.View, ctx Context) []Preference {
	self := v.Self
	var out []Preference
	add := func(kind model.TargetKind, id uint32, pos model.Vec2, raw float64) {
		if !(raw > 0) || math.IsInf(raw, 0) {
			return
		}
		d := pos.Manhattan(self.Pos)
		out = append(out, Preference{Kind: kind, TargetID: id, Pos: pos, Distance: d, Raw: raw, Discounted: s.discount(raw, d)})
	}

	if ctx.AllowTrade {
		for _, n := range v.Neighbors {
			if until, ok := self.Cooldowns[n.ID]; ok && v.Tick < until {
				continue
			}
			if n.Market != 0 || (n.Partner != 0 && n.Partner != self.ID) {
				continue
			}
			add(model.TargetAgent, uint32(n.ID), n.Pos, utility.QuoteSurplus(self.Quotes, n.Quotes, s.P.Goods))
		}
	}
	if ctx.AllowForage && self.Utility != nil && s.P.ForageRate.IsPositive() {
		for _, c := range v.Resources {
			q := decimal.Min(c.Stock, s.P.ForageRate)
			du := utility.Gain(self.Utility, self.Inventory, map[string]decimal.Decimal{c.Good: q})
			add(model.TargetResource, uint32(c.ID), c.Pos, utility.InNumeraire(self.Utility, self.Inventory, s.P.Numeraire, du))
		}
	}
	if ctx.AllowTrade && ctx.AllowMarkets {
		for _, m := range v.Markets {
			add(model.TargetMarket, uint32(m.ID), m.Center, s.marketValue(self, m))
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Discounted != b.Discounted {
			return a.Discounted > b.Discounted
		}
		if a.TargetID != b.TargetID {
			return a.TargetID < b.TargetID
		}
		return a.Kind < b.Kind
	})
	return out
}

// marketValue is the best expected per-unit gap between own reservation and a
// fresh posted price, or the placeholder when no price is fresh.
func (s *DistanceDiscounted) marketValue(self perception.Self, m perception.MarketView) float64 {
	best := 0.0
	fresh := false
	for _, g := range s.P.Goods {
		if g == s.P.Numeraire {
			continue
		}
		age, ok := m.PriceAge[g]
		if !ok || age < 0 || age > s.P.PriceStaleTicks {
			continue
		}
		p, ok := m.Prices[g]
		if !ok {
			continue
		}
		q, ok := self.Quotes[g]
		if !ok {
			continue
		}
		fresh = true
		if gap := math.Abs(fixedpt.Float(q.Reservation.Sub(p))); gap > best {
			best = gap
		}
	}
	if !fresh {
		return s.P.MarketPlaceholder
	}
	return best
}

func (s *DistanceDiscounted) SelectTarget(agent model.AgentID, prefs []Preference, claims *Claims) []model.Effect {
	for _, p := range prefs {
		if p.Kind == model.TargetResource {
			cell := model.CellID(p.TargetID)
			if claims != nil && claims.TakenByOther(cell, agent) {
				continue
			}
			if claims != nil {
				claims.Claim(cell, agent)
			}
			return []model.Effect{model.SetTarget(agent, p.Target()), model.ClaimResource(agent, cell)}
		}
		return []model.Effect{model.SetTarget(agent, p.Target())}
	}
	return nil
}

// Top returns the highest ranked preference.
func Top(prefs []Preference) (Preference, bool) {
	if len(prefs) == 0 {
		return Preference{}, false
	}
	return prefs[0], true
}
