package world

import (
	"errors"
	"testing"
	"time"

	"econgrid.ai/internal/sim/world/kernel/model"
)

func clusterConfig() WorldConfig {
	cfg := WorldConfig{
		ID:            "cluster",
		Width:         11,
		Height:        11,
		Goods:         []string{"x", "y"},
		EnableMarkets: true,
		Modes:         ModeSchedule{Mode: ModeAlternating, TradeTicks: 1, ForageTicks: 20, StartWith: ModeTrade},
	}
	for i, p := range [][2]int{{5, 5}, {6, 5}, {4, 5}, {5, 6}, {5, 4}} {
		cfg.Agents = append(cfg.Agents, agentAt(AgentID(i+1), p[0], p[1], "4", "4"))
	}
	return cfg
}

func TestMarketFormsAtCentroidAndDissolvesOnce(t *testing.T) {
	w := mustNew(t, clusterConfig())
	log := &captureLog{}
	w.SetTickLogger(log)
	for i := 0; i < 22; i++ {
		mustStep(t, w)
	}

	forms := log.effects(string(model.EffectMarketFormation))
	if len(forms) != 2 {
		t.Fatalf("formations=%+v", forms)
	}
	if forms[0].Tick != 0 || forms[0].Market != 1 || *forms[0].Pos != (Vec2{X: 5, Y: 5}) {
		t.Fatalf("first formation=%+v", forms[0])
	}
	// The next trade tick sees the same density again; the old id is gone.
	if forms[1].Tick != 21 || forms[1].Market != 2 {
		t.Fatalf("second formation=%+v", forms[1])
	}

	diss := log.effects(string(model.EffectMarketDissolution))
	if len(diss) != 1 || diss[0].Market != 1 || diss[0].Tick != 5 {
		t.Fatalf("dissolutions=%+v", diss)
	}
	if got := len(log.entries[0].Summary.Markets); got != 1 {
		t.Fatalf("tick 0 markets=%d", got)
	}
	if p := log.entries[0].Summary.Markets[0].Participants; p != 5 {
		t.Fatalf("tick 0 participants=%d", p)
	}
	if got := len(log.entries[4].Summary.Markets); got != 1 {
		t.Fatalf("market gone before patience ran out (tick 4 markets=%d)", got)
	}
	if got := len(log.entries[5].Summary.Markets); got != 0 {
		t.Fatalf("tick 5 markets=%d", got)
	}
}

func TestMarketMembersAreNotPaired(t *testing.T) {
	cfg := clusterConfig()
	cfg.Modes = ModeSchedule{Mode: ModeTrade}
	// Give the cluster something to trade about.
	cfg.Agents[0].Inventory["x"], cfg.Agents[0].Inventory["y"] = dec("9"), dec("1")
	cfg.Agents[1].Inventory["x"], cfg.Agents[1].Inventory["y"] = dec("1"), dec("9")
	w := mustNew(t, cfg)
	for i := 0; i < 10; i++ {
		mustStep(t, w)
		for _, id := range w.order {
			a := w.agents[id]
			if a.Market == 0 {
				t.Fatalf("tick %d: %s left the market", i, id)
			}
			if a.Partner != 0 {
				t.Fatalf("tick %d: %s paired inside a market", i, id)
			}
		}
	}
}

func TestPriceDivergenceShrinksWithTraveler(t *testing.T) {
	w := mustNew(t, twoMarketConfig())
	log := &captureLog{}
	w.SetTickLogger(log)

	mustStep(t, w)
	if got := len(w.markets); got != 2 {
		t.Fatalf("markets after first tick=%d", got)
	}
	early, ok := w.PriceDispersion("x")
	if !ok {
		t.Fatalf("both markets should have cleared x on tick 0: %+v", log.entries[0].Summary)
	}
	if early.LessThan(dec("3")) {
		t.Fatalf("early dispersion=%s, want a wide gap", early)
	}

	for i := 0; i < 25; i++ {
		mustStep(t, w)
	}
	late, ok := w.PriceDispersion("x")
	if !ok {
		t.Fatalf("lost a market price")
	}
	if !late.LessThan(early) {
		t.Fatalf("dispersion did not shrink: early=%s late=%s", early, late)
	}

	traveler := w.agents[11]
	if traveler.Market == 0 {
		t.Fatalf("traveler never joined a market (pos=%v)", traveler.Pos)
	}
	if n := len(log.effects(string(model.EffectTrade))); n == 0 {
		t.Fatalf("no market trades")
	}
}

func TestNonPositiveToleranceRejected(t *testing.T) {
	for _, tol := range []string{"-0.01", "-5"} {
		cfg := clusterConfig()
		cfg.Tolerance = dec(tol)
		if _, err := New(cfg); !errors.Is(err, ErrConfig) {
			t.Fatalf("tolerance %s: err=%v, want ErrConfig", tol, err)
		}
	}
	// Zero falls back to the default.
	mustNew(t, clusterConfig())
}

type failureObserver struct {
	ticks    int
	failures []ConvergenceFailure
}

func (o *failureObserver) ObserveTick(TickSummary, time.Duration) { o.ticks++ }

func (o *failureObserver) ConvergenceFailed(m MarketID, good string, iterations int) {
	o.failures = append(o.failures, ConvergenceFailure{Market: m, Good: good, Iterations: iterations})
}

func TestFailedClearingLeavesPricesAndSignals(t *testing.T) {
	cfg := clusterConfig()
	cfg.Modes = ModeSchedule{Mode: ModeTrade}
	cfg.MaxIterations = 1
	cfg.Agents[0].Inventory["x"], cfg.Agents[0].Inventory["y"] = dec("9"), dec("1")
	cfg.Agents[1].Inventory["x"], cfg.Agents[1].Inventory["y"] = dec("1"), dec("9")
	w := mustNew(t, cfg)
	log := &captureLog{}
	obs := &failureObserver{}
	w.SetTickLogger(log)
	w.SetObserver(obs)
	before := totals(w)

	mustStep(t, w)

	if len(w.markets) != 1 {
		t.Fatalf("markets=%d", len(w.markets))
	}
	for _, m := range w.markets {
		if len(m.Prices) != 0 {
			t.Fatalf("failed clearing stored prices: %v", m.Prices)
		}
	}
	if n := len(log.effects(string(model.EffectTrade))); n != 0 {
		t.Fatalf("trades=%d after failed clearing", n)
	}
	if n := len(log.effects(string(model.EffectMarketClear))); n != 0 {
		t.Fatalf("market clears=%d after failed clearing", n)
	}
	after := totals(w)
	for g, q := range before {
		if !after[g].Equal(q) {
			t.Fatalf("%s changed: %s -> %s", g, q, after[g])
		}
	}

	sum := log.entries[0].Summary.ConvergenceFailures
	if len(sum) != 1 || sum[0].Market != 1 || sum[0].Good != "x" || sum[0].Iterations != 1 || sum[0].LastPrice == "" {
		t.Fatalf("summary failures=%+v", sum)
	}
	if obs.ticks != 1 || len(obs.failures) != 1 || obs.failures[0].Market != 1 || obs.failures[0].Good != "x" {
		t.Fatalf("observer ticks=%d failures=%+v", obs.ticks, obs.failures)
	}
}
