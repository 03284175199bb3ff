package market

import (
	"econgrid.ai/internal/sim/world/kernel/model"
	"econgrid.ai/internal/sim/world/logic/fixedpt"
	"github.com/shopspring/decimal"
)

type State string

const (
	StateSearching State = "searching"
	StateConverged State = "converged"
	StateFailed    State = "failed"
)

type ClearingParams struct {
	MaxIterations int
	Tolerance     decimal.Decimal
	Speed         decimal.Decimal
	PriceFloor    decimal.Decimal
	Elasticity    decimal.Decimal
	OrderCap      decimal.Decimal
	QtyDecimals   int32
	PriceDecimals int32
}

// Participant is one market member's position in the good being cleared.
type Participant struct {
	ID          model.AgentID
	Reservation decimal.Decimal
	Holdings    decimal.Decimal // of the good
	Liquidity   decimal.Decimal // of the numeraire
}

type ClearInput struct {
	Market     model.MarketID
	Good       string
	StartPrice decimal.Decimal
	// Participants in ascending id.
	Participants []Participant
}

type ClearResult struct {
	State      State
	Price      decimal.Decimal
	Iterations int
	Demand     decimal.Decimal
	Supply     decimal.Decimal
	Effects    []model.Effect
}

type Mechanism interface {
	Name() string
	Clear(in ClearInput) ClearResult
}

// Tatonnement adjusts the price by Speed*(D-S) until excess demand is within
// Tolerance. Demand follows a linear gap heuristic: a member wants to buy when
// its reservation exceeds the price, in proportion to the relative gap.
type Tatonnement struct {
	P ClearingParams
}

func NewTatonnement(p ClearingParams) *Tatonnement { return &Tatonnement{P: p} }

func (t *Tatonnement) Name() string { return "tatonnement" }

func (t *Tatonnement) orders(ps []Participant, price decimal.Decimal) (buy, sell []decimal.Decimal, d, s decimal.Decimal) {
	buy = make([]decimal.Decimal, len(ps))
	sell = make([]decimal.Decimal, len(ps))
	d, s = decimal.Zero, decimal.Zero
	for i, p := range ps {
		switch {
		case p.Reservation.GreaterThan(price):
			want := t.P.Elasticity.Mul(p.Reservation.Sub(price)).Div(price)
			q := fixedpt.Min(t.P.OrderCap, fixedpt.Min(want, p.Liquidity.Div(price)))
			if q.IsPositive() {
				buy[i] = q
				d = d.Add(q)
			}
		case price.GreaterThan(p.Reservation):
			want := t.P.Elasticity.Mul(price.Sub(p.Reservation)).Div(price)
			q := fixedpt.Min(t.P.OrderCap, fixedpt.Min(want, p.Holdings))
			if q.IsPositive() {
				sell[i] = q
				s = s.Add(q)
			}
		}
	}
	return buy, sell, d, s
}

func (t *Tatonnement) Clear(in ClearInput) ClearResult {
	price := in.StartPrice
	if !price.IsPositive() {
		price = fixedpt.One
	}
	price = fixedpt.Max(t.P.PriceFloor, price)

	res := ClearResult{State: StateSearching}
	for it := 1; it <= t.P.MaxIterations; it++ {
		_, _, d, s := t.orders(in.Participants, price)
		res.Iterations, res.Demand, res.Supply, res.Price = it, d, s, price
		excess := d.Sub(s)
		if excess.Abs().LessThan(t.P.Tolerance) {
			res.State = StateConverged
			res.Effects = t.settle(in, price)
			return res
		}
		price = fixedpt.Max(t.P.PriceFloor, price.Add(t.P.Speed.Mul(excess)).Round(t.P.PriceDecimals))
	}
	res.State = StateFailed
	res.Price = price
	return res
}

// settle fills orders at the cleared price. Buyers and sellers are walked in
// id order; every quantity and payment is truncated to the quantity unit.
func (t *Tatonnement) settle(in ClearInput, price decimal.Decimal) []model.Effect {
	buy, sell, _, _ := t.orders(in.Participants, price)
	sumB, sumS := decimal.Zero, decimal.Zero
	for i := range buy {
		buy[i] = fixedpt.Trunc(buy[i], t.P.QtyDecimals)
		sell[i] = fixedpt.Trunc(sell[i], t.P.QtyDecimals)
		sumB = sumB.Add(buy[i])
		sumS = sumS.Add(sell[i])
	}
	capB := fixedpt.Min(sumB, sumS)
	capS := capB
	for i := range buy {
		buy[i] = fixedpt.Min(buy[i], capB)
		capB = capB.Sub(buy[i])
		sell[i] = fixedpt.Min(sell[i], capS)
		capS = capS.Sub(sell[i])
	}

	var out []model.Effect
	traded := decimal.Zero
	i, j := 0, 0
	for {
		for i < len(buy) && !buy[i].IsPositive() {
			i++
		}
		for j < len(sell) && !sell[j].IsPositive() {
			j++
		}
		if i >= len(buy) || j >= len(sell) {
			break
		}
		slice := fixedpt.Min(buy[i], sell[j])
		buy[i] = buy[i].Sub(slice)
		sell[j] = sell[j].Sub(slice)
		payment := fixedpt.Trunc(slice.Mul(price), t.P.QtyDecimals)
		if !payment.IsPositive() {
			continue
		}
		out = append(out, model.Trade(in.Participants[i].ID, in.Participants[j].ID, in.Good, slice, price, payment, model.OriginMarket, in.Market))
		traded = traded.Add(slice)
	}
	out = append(out, model.MarketClear(in.Market, in.Good, price, traded, len(in.Participants)))
	return out
}
