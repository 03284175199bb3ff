// Package metrics exposes simulator health as Prometheus series. Labels stay
// bounded: no per-agent or per-market labels.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"econgrid.ai/internal/sim/world"
)

// Metrics implements world.Observer.
type Metrics struct {
	tickDuration   prometheus.Histogram
	ticks          prometheus.Counter
	trades         *prometheus.CounterVec
	harvests       prometheus.Counter
	moved          prometheus.Counter
	rejected       prometheus.Counter
	repairs        prometheus.Counter
	convergeFailed *prometheus.CounterVec
	activePairs    prometheus.Gauge
	markets        prometheus.Gauge
	dispersion     *prometheus.GaugeVec

	WSConnections      prometheus.Gauge
	ConnectionRejected *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		tickDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "econgrid_tick_duration_seconds",
			Help:    "Time spent in one simulation tick",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}),
		ticks: f.NewCounter(prometheus.CounterOpts{
			Name: "econgrid_ticks_total",
			Help: "Completed ticks",
		}),
		trades: f.NewCounterVec(prometheus.CounterOpts{
			Name: "econgrid_trades_total",
			Help: "Applied trades by origin",
		}, []string{"origin"}), // bilateral, market
		harvests: f.NewCounter(prometheus.CounterOpts{
			Name: "econgrid_harvests_total",
			Help: "Applied harvests",
		}),
		moved: f.NewCounter(prometheus.CounterOpts{
			Name: "econgrid_moves_total",
			Help: "Agent moves",
		}),
		rejected: f.NewCounter(prometheus.CounterOpts{
			Name: "econgrid_effects_rejected_total",
			Help: "Effects rejected at apply time",
		}),
		repairs: f.NewCounter(prometheus.CounterOpts{
			Name: "econgrid_invariant_repairs_total",
			Help: "Invariant violations repaired in housekeeping",
		}),
		convergeFailed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "econgrid_convergence_failures_total",
			Help: "Market clearings that hit the iteration cap",
		}, []string{"good"}),
		activePairs: f.NewGauge(prometheus.GaugeOpts{
			Name: "econgrid_active_pairs",
			Help: "Bilateral pairs at the end of the last tick",
		}),
		markets: f.NewGauge(prometheus.GaugeOpts{
			Name: "econgrid_markets",
			Help: "Markets alive at the end of the last tick",
		}),
		dispersion: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "econgrid_price_dispersion",
			Help: "Max minus min posted price across markets",
		}, []string{"good"}),
		WSConnections: f.NewGauge(prometheus.GaugeOpts{
			Name: "econgrid_observer_connections_active",
			Help: "Currently connected observers",
		}),
		ConnectionRejected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "econgrid_observer_rejected_total",
			Help: "Observer connections rejected",
		}, []string{"reason"}), // rate_limit, ws_limit, upgrade
	}
}

func (m *Metrics) ObserveTick(s world.TickSummary, took time.Duration) {
	m.tickDuration.Observe(took.Seconds())
	m.ticks.Inc()
	m.trades.WithLabelValues("bilateral").Add(float64(s.BilateralTrades))
	m.trades.WithLabelValues("market").Add(float64(s.MarketTrades))
	m.harvests.Add(float64(s.Harvests))
	m.moved.Add(float64(s.Moved))
	m.rejected.Add(float64(len(s.Rejected)))
	m.repairs.Add(float64(len(s.Repairs)))
	m.activePairs.Set(float64(len(s.ActivePairs)))
	m.markets.Set(float64(len(s.Markets)))
	m.dispersion.Reset()
	for good, v := range s.PriceDispersion {
		if d, err := parseFloat(v); err == nil {
			m.dispersion.WithLabelValues(good).Set(d)
		}
	}
}

func (m *Metrics) ConvergenceFailed(_ world.MarketID, good string, _ int) {
	m.convergeFailed.WithLabelValues(good).Inc()
}

// QueueGauge registers a gauge sampled from fn at scrape time.
func QueueGauge(reg prometheus.Registerer, name, help string, fn func() float64) {
	promauto.With(reg).NewGaugeFunc(prometheus.GaugeOpts{Name: name, Help: help}, fn)
}
