// Package utility implements the agent preference functions and the quote
// math derived from them.
package utility

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"econgrid.ai/internal/sim/world/kernel/model"
	"econgrid.ai/internal/sim/world/logic/fixedpt"
)

// Epsilon shifts quantities away from zero so marginal utilities stay finite.
const Epsilon = 0.01

const (
	KindCobbDouglas = "cobb_douglas"
	KindLinear      = "linear"
	KindCES         = "ces"
	KindQuadratic   = "quadratic"
)

var ErrUnknownKind = errors.New("unknown utility kind")

// Spec is the scenario form of a utility function.
type Spec struct {
	Kind string `yaml:"kind" json:"kind"`
	// Weights: Cobb-Douglas exponents, linear weights or CES shares.
	Weights map[string]float64 `yaml:"weights" json:"weights"`
	Rho     float64            `yaml:"rho,omitempty" json:"rho,omitempty"`
	// Quadratic: u = -sum c_g (q_g - bliss_g)^2.
	Bliss     map[string]float64 `yaml:"bliss,omitempty" json:"bliss,omitempty"`
	Curvature map[string]float64 `yaml:"curvature,omitempty" json:"curvature,omitempty"`
	// MoneyLambda is the marginal utility of the numeraire when the base
	// function does not value it. Defaults to 1.
	MoneyLambda float64 `yaml:"money_lambda,omitempty" json:"money_lambda,omitempty"`
}

func (s Spec) goods() []string {
	set := map[string]bool{}
	for g := range s.Weights {
		set[g] = true
	}
	for g := range s.Bliss {
		set[g] = true
	}
	out := make([]string, 0, len(set))
	for g := range set {
		out = append(out, g)
	}
	sort.Strings(out)
	return out
}

// Build turns a spec into a Utility. When the numeraire is not one of the
// valued goods, the result is wrapped so money has constant marginal utility.
func Build(s Spec, numeraire string) (model.Utility, error) {
	goods := s.goods()
	if len(goods) == 0 {
		return nil, fmt.Errorf("utility %q: no goods", s.Kind)
	}
	var base model.Utility
	switch s.Kind {
	case KindCobbDouglas:
		for _, g := range goods {
			if s.Weights[g] <= 0 {
				return nil, fmt.Errorf("cobb_douglas: exponent for %s must be > 0", g)
			}
		}
		base = &CobbDouglas{goods: goods, alpha: s.Weights}
	case KindLinear:
		base = &Linear{goods: goods, w: s.Weights}
	case KindCES:
		if s.Rho == 0 || s.Rho >= 1 {
			return nil, fmt.Errorf("ces: rho must be < 1 and != 0, got %v", s.Rho)
		}
		base = &CES{goods: goods, share: s.Weights, rho: s.Rho}
	case KindQuadratic:
		base = &Quadratic{goods: goods, bliss: s.Bliss, curv: s.Curvature}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, s.Kind)
	}
	for _, g := range goods {
		if g == numeraire {
			return base, nil
		}
	}
	lambda := s.MoneyLambda
	if lambda <= 0 {
		lambda = 1
	}
	return &MoneyWrapped{Base: base, Numeraire: numeraire, Lambda: lambda}, nil
}

func qty(inv model.Inventory, g string) float64 {
	return fixedpt.Float(inv.Get(g))
}

type CobbDouglas struct {
	goods []string
	alpha map[string]float64
}

func (u *CobbDouglas) Kind() string { return KindCobbDouglas }

func (u *CobbDouglas) Value(inv model.Inventory) float64 {
	v := 1.0
	for _, g := range u.goods {
		v *= math.Pow(qty(inv, g)+Epsilon, u.alpha[g])
	}
	return v
}

func (u *CobbDouglas) Marginal(inv model.Inventory, good string) float64 {
	a, ok := u.alpha[good]
	if !ok {
		return 0
	}
	return a / (qty(inv, good) + Epsilon) * u.Value(inv)
}

type Linear struct {
	goods []string
	w     map[string]float64
}

func (u *Linear) Kind() string { return KindLinear }

func (u *Linear) Value(inv model.Inventory) float64 {
	v := 0.0
	for _, g := range u.goods {
		v += u.w[g] * qty(inv, g)
	}
	return v
}

func (u *Linear) Marginal(_ model.Inventory, good string) float64 { return u.w[good] }

type CES struct {
	goods []string
	share map[string]float64
	rho   float64
}

func (u *CES) Kind() string { return KindCES }

func (u *CES) inner(inv model.Inventory) float64 {
	s := 0.0
	for _, g := range u.goods {
		s += u.share[g] * math.Pow(qty(inv, g)+Epsilon, u.rho)
	}
	return s
}

func (u *CES) Value(inv model.Inventory) float64 {
	return math.Pow(u.inner(inv), 1/u.rho)
}

func (u *CES) Marginal(inv model.Inventory, good string) float64 {
	a, ok := u.share[good]
	if !ok {
		return 0
	}
	return a * math.Pow(qty(inv, good)+Epsilon, u.rho-1) * math.Pow(u.inner(inv), 1/u.rho-1)
}

// Quadratic has a bliss point per good; marginal utility turns negative past it.
type Quadratic struct {
	goods []string
	bliss map[string]float64
	curv  map[string]float64
}

func (u *Quadratic) Kind() string { return KindQuadratic }

func (u *Quadratic) c(g string) float64 {
	if c, ok := u.curv[g]; ok && c > 0 {
		return c
	}
	return 1
}

func (u *Quadratic) Value(inv model.Inventory) float64 {
	v := 0.0
	for _, g := range u.goods {
		d := qty(inv, g) - u.bliss[g]
		v -= u.c(g) * d * d
	}
	return v
}

func (u *Quadratic) Marginal(inv model.Inventory, good string) float64 {
	if _, ok := u.bliss[good]; !ok {
		return 0
	}
	return -2 * u.c(good) * (qty(inv, good) - u.bliss[good])
}

// MoneyWrapped adds Lambda * numeraire to a base utility that ignores money.
type MoneyWrapped struct {
	Base      model.Utility
	Numeraire string
	Lambda    float64
}

func (u *MoneyWrapped) Kind() string { return u.Base.Kind() }

func (u *MoneyWrapped) Value(inv model.Inventory) float64 {
	return u.Base.Value(inv) + u.Lambda*qty(inv, u.Numeraire)
}

func (u *MoneyWrapped) Marginal(inv model.Inventory, good string) float64 {
	if good == u.Numeraire {
		return u.Lambda
	}
	return u.Base.Marginal(inv, good)
}
