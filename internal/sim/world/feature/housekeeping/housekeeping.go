// Package housekeeping refreshes cached quotes and audits the cross-tick invariants.
package housekeeping

import (
	"fmt"

	"econgrid.ai/internal/sim/world/feature/utility"
	"econgrid.ai/internal/sim/world/kernel/model"
)

type Env interface {
	SortedAgents() []*model.Agent
	Agent(id model.AgentID) *model.Agent
	// Markets sorted by id.
	Markets() []*model.Market
	Market(id model.MarketID) *model.Market
}

type QuoteParams struct {
	Goods         []string
	Numeraire     string
	Spread        float64
	PriceDecimals int32
}

// RefreshQuotes recomputes quotes for agents whose inventory changed and
// returns how many were refreshed.
func RefreshQuotes(env Env, p QuoteParams) int {
	n := 0
	for _, a := range env.SortedAgents() {
		if !a.InventoryDirty && a.Quotes != nil {
			continue
		}
		a.Quotes = utility.Quotes(a.Utility, a.Inventory, p.Goods, p.Numeraire, p.Spread, p.PriceDecimals)
		a.InventoryDirty = false
		n++
	}
	return n
}

type ViolationKind string

const (
	AsymmetricPair    ViolationKind = "asymmetric_pair"
	PairedAndMarket   ViolationKind = "paired_and_market"
	MissingMembership ViolationKind = "missing_membership"
	DuplicateMember   ViolationKind = "duplicate_membership"
	NegativeInventory ViolationKind = "negative_inventory"
)

type Violation struct {
	Kind   ViolationKind
	Agent  model.AgentID
	Other  model.AgentID
	Market model.MarketID
	Good   string
}

func (v Violation) String() string {
	switch v.Kind {
	case AsymmetricPair:
		return fmt.Sprintf("%s: %s -> %s", v.Kind, v.Agent, v.Other)
	case PairedAndMarket, MissingMembership, DuplicateMember:
		return fmt.Sprintf("%s: %s market %s", v.Kind, v.Agent, v.Market)
	default:
		return fmt.Sprintf("%s: %s %s", v.Kind, v.Agent, v.Good)
	}
}

// Check lists every violated invariant in a deterministic order.
func Check(env Env) []Violation {
	var out []Violation
	for _, a := range env.SortedAgents() {
		if a.Partner != 0 {
			b := env.Agent(a.Partner)
			if b == nil || b.Partner != a.ID {
				out = append(out, Violation{Kind: AsymmetricPair, Agent: a.ID, Other: a.Partner})
			}
			if a.Market != 0 {
				out = append(out, Violation{Kind: PairedAndMarket, Agent: a.ID, Market: a.Market})
			}
		}
		if a.Market != 0 {
			if m := env.Market(a.Market); m == nil || !m.HasParticipant(a.ID) {
				out = append(out, Violation{Kind: MissingMembership, Agent: a.ID, Market: a.Market})
			}
		}
		for _, g := range a.Inventory.Negative() {
			out = append(out, Violation{Kind: NegativeInventory, Agent: a.ID, Good: g})
		}
	}
	seen := map[model.AgentID]model.MarketID{}
	for _, m := range env.Markets() {
		for _, id := range m.Participants {
			a := env.Agent(id)
			if _, dup := seen[id]; dup || a == nil || a.Market != m.ID {
				out = append(out, Violation{Kind: DuplicateMember, Agent: id, Market: m.ID})
				continue
			}
			seen[id] = m.ID
		}
	}
	return out
}
