package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"econgrid.ai/internal/sim/world"
)

func TestObserveTick(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveTick(world.TickSummary{
		Trades:          3,
		BilateralTrades: 1,
		MarketTrades:    2,
		Harvests:        4,
		ActivePairs:     [][2]world.AgentID{{1, 2}},
		Markets:         []world.MarketSummary{{ID: 1}, {ID: 2}},
		Rejected:        []string{"trade: overdrawn"},
		PriceDispersion: map[string]string{"x": "3.7268"},
	}, 2*time.Millisecond)
	m.ObserveTick(world.TickSummary{BilateralTrades: 1}, time.Millisecond)
	m.ConvergenceFailed(1, "x", 200)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ticks))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.trades.WithLabelValues("bilateral")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.trades.WithLabelValues("market")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.harvests))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rejected))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.activePairs))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.markets))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.convergeFailed.WithLabelValues("x")))
	// The second tick had no dispersion, so the series is gone.
	assert.Equal(t, 0, testutil.CollectAndCount(m.dispersion))
}

func TestQueueGauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	depth := 7.0
	QueueGauge(reg, "econgrid_index_queue_depth", "depth", func() float64 { return depth })
	n, err := testutil.GatherAndCount(reg, "econgrid_index_queue_depth")
	assert.NoError(t, err)
	assert.Equal(t, 1, n)
}
