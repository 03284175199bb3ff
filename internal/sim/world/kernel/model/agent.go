package model

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Quote is an agent's cached per-good price signal in numeraire units.
type Quote struct {
	Reservation decimal.Decimal `json:"reservation"`
	Bid         decimal.Decimal `json:"bid"`
	Ask         decimal.Decimal `json:"ask"`
}

type Agent struct {
	ID        AgentID
	Pos       Vec2
	Inventory Inventory
	Utility   Utility

	// Partner is the paired agent (0 = none). The partner holds the reverse reference.
	Partner AgentID
	Target  Target
	// Market is this tick's market assignment (0 = none).
	Market MarketID

	// Cooldowns: other agent -> first tick at which re-pairing is allowed again.
	Cooldowns map[AgentID]uint64

	Quotes         map[string]Quote
	InventoryDirty bool
}

func (a *Agent) InCooldown(other AgentID, now uint64) bool {
	until, ok := a.Cooldowns[other]
	return ok && now < until
}

func (a *Agent) CloneQuotes() map[string]Quote {
	out := make(map[string]Quote, len(a.Quotes))
	for k, v := range a.Quotes {
		out[k] = v
	}
	return out
}

func (a *Agent) CloneCooldowns() map[AgentID]uint64 {
	out := make(map[AgentID]uint64, len(a.Cooldowns))
	for k, v := range a.Cooldowns {
		out[k] = v
	}
	return out
}

// ExpireCooldowns drops entries that no longer block pairing.
func (a *Agent) ExpireCooldowns(now uint64) {
	for id, until := range a.Cooldowns {
		if now >= until {
			delete(a.Cooldowns, id)
		}
	}
}

func SortedAgentIDs(m map[AgentID]*Agent) []AgentID {
	out := make([]AgentID, 0, len(m))
	for id := range m {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
