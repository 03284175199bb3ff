package model

import "github.com/shopspring/decimal"

type EffectKind string

const (
	EffectSetTarget         EffectKind = "set_target"
	EffectClaimResource     EffectKind = "claim_resource"
	EffectPair              EffectKind = "pair"
	EffectUnpair            EffectKind = "unpair"
	EffectAssignMarket      EffectKind = "assign_market"
	EffectTrade             EffectKind = "trade"
	EffectMarketClear       EffectKind = "market_clear"
	EffectMarketFormation   EffectKind = "market_formation"
	EffectMarketCensus      EffectKind = "market_census"
	EffectMarketDrift       EffectKind = "market_drift"
	EffectMarketDissolution EffectKind = "market_dissolution"
	EffectHarvest           EffectKind = "harvest"
	EffectRegenerate        EffectKind = "regenerate"
)

type Origin string

const (
	OriginBilateral Origin = "bilateral"
	OriginMarket    Origin = "market"
)

// Unpair reasons.
const (
	ReasonNoSurplus  = "no_surplus"
	ReasonMarket     = "market_assigned"
	ReasonModeSwitch = "mode_switch"
	ReasonRepair     = "invariant_repair"
)

// Effect is a declarative state change. Features emit effects; only the world
// applies them. Values are never mutated after construction except for the
// Tick/Phase stamp the world adds when logging.
type Effect struct {
	Kind  EffectKind `json:"kind"`
	Tick  uint64     `json:"tick"`
	Phase string     `json:"phase,omitempty"`

	Agent  AgentID  `json:"agent,omitempty"`
	Other  AgentID  `json:"other,omitempty"`
	Market MarketID `json:"market,omitempty"`
	Cell   CellID   `json:"cell,omitempty"`

	TargetKind TargetKind `json:"target_kind,omitempty"`
	TargetID   uint32     `json:"target_id,omitempty"`
	Pos        *Vec2      `json:"pos,omitempty"`

	Good    string          `json:"good,omitempty"`
	Qty     decimal.Decimal `json:"qty,omitzero"`
	Price   decimal.Decimal `json:"price,omitzero"`
	Payment decimal.Decimal `json:"payment,omitzero"`
	Origin  Origin          `json:"origin,omitempty"`

	Participants int    `json:"participants,omitempty"`
	Reason       string `json:"reason,omitempty"`
}

func posPtr(p Vec2) *Vec2 { return &p }

// Target reconstructs the Target a SetTarget effect carries.
func (e Effect) Target() Target {
	t := Target{Kind: e.TargetKind, ID: e.TargetID}
	if e.Pos != nil {
		t.Pos = *e.Pos
	}
	return t
}

func SetTarget(agent AgentID, t Target) Effect {
	return Effect{Kind: EffectSetTarget, Agent: agent, TargetKind: t.Kind, TargetID: t.ID, Pos: posPtr(t.Pos)}
}

func ClaimResource(agent AgentID, cell CellID) Effect {
	return Effect{Kind: EffectClaimResource, Agent: agent, Cell: cell}
}

// Pair is always emitted with Agent < Other.
func Pair(a, b AgentID) Effect {
	k := PairKey(a, b)
	return Effect{Kind: EffectPair, Agent: k[0], Other: k[1]}
}

func Unpair(a, b AgentID, reason string) Effect {
	k := PairKey(a, b)
	return Effect{Kind: EffectUnpair, Agent: k[0], Other: k[1], Reason: reason}
}

func AssignMarket(agent AgentID, m MarketID) Effect {
	return Effect{Kind: EffectAssignMarket, Agent: agent, Market: m}
}

// Trade moves qty of good from seller to buyer and payment of the numeraire
// from buyer to seller.
func Trade(buyer, seller AgentID, good string, qty, price, payment decimal.Decimal, origin Origin, m MarketID) Effect {
	return Effect{
		Kind:    EffectTrade,
		Agent:   buyer,
		Other:   seller,
		Market:  m,
		Good:    good,
		Qty:     qty,
		Price:   price,
		Payment: payment,
		Origin:  origin,
	}
}

func MarketClear(m MarketID, good string, price, qty decimal.Decimal, participants int) Effect {
	return Effect{Kind: EffectMarketClear, Market: m, Good: good, Price: price, Qty: qty, Participants: participants}
}

func MarketFormation(m MarketID, center Vec2, participants int) Effect {
	return Effect{Kind: EffectMarketFormation, Market: m, Pos: posPtr(center), Participants: participants}
}

// MarketCensus reports this tick's participant count; the world advances the
// market's sustain counters from it.
func MarketCensus(m MarketID, participants int) Effect {
	return Effect{Kind: EffectMarketCensus, Market: m, Participants: participants}
}

func MarketDrift(m MarketID, center Vec2) Effect {
	return Effect{Kind: EffectMarketDrift, Market: m, Pos: posPtr(center)}
}

func MarketDissolution(m MarketID, reason string) Effect {
	return Effect{Kind: EffectMarketDissolution, Market: m, Reason: reason}
}

func Harvest(agent AgentID, cell CellID, good string, qty decimal.Decimal) Effect {
	return Effect{Kind: EffectHarvest, Agent: agent, Cell: cell, Good: good, Qty: qty}
}

func Regenerate(cell CellID, good string, qty decimal.Decimal) Effect {
	return Effect{Kind: EffectRegenerate, Cell: cell, Good: good, Qty: qty}
}
