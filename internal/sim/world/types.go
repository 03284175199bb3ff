package world

import (
	"time"

	"econgrid.ai/internal/sim/world/kernel/model"
)

type (
	Agent        = model.Agent
	AgentID      = model.AgentID
	Market       = model.Market
	MarketID     = model.MarketID
	ResourceCell = model.ResourceCell
	Effect       = model.Effect
	Vec2         = model.Vec2
)

// TickLogger receives one entry per completed tick. Implementations must not
// block the world loop (see internal/persistence/*).
type TickLogger interface {
	WriteTick(entry TickLogEntry) error
}

// Observer is notified after each tick and on clearing failures. Metrics live here.
type Observer interface {
	ObserveTick(s TickSummary, took time.Duration)
	ConvergenceFailed(market MarketID, good string, iterations int)
}

type TickLogEntry struct {
	Tick    uint64         `json:"tick"`
	Mode    Mode           `json:"mode"`
	Effects []model.Effect `json:"effects,omitempty"`
	Summary TickSummary    `json:"summary"`
	Digest  string         `json:"digest"`
}

type MarketSummary struct {
	ID           MarketID          `json:"id"`
	Center       Vec2              `json:"center"`
	Participants int               `json:"participants"`
	Prices       map[string]string `json:"prices,omitempty"`
}

type ConvergenceFailure struct {
	Market     MarketID `json:"market"`
	Good       string   `json:"good"`
	Iterations int      `json:"iterations"`
	LastPrice  string   `json:"last_price"`
}

type TickSummary struct {
	Tick                uint64               `json:"tick"`
	Mode                Mode                 `json:"mode"`
	ActivePairs         [][2]AgentID         `json:"active_pairs,omitempty"`
	Markets             []MarketSummary      `json:"markets,omitempty"`
	Trades              int                  `json:"trades"`
	BilateralTrades     int                  `json:"bilateral_trades"`
	MarketTrades        int                  `json:"market_trades"`
	Harvests            int                  `json:"harvests"`
	Moved               int                  `json:"moved"`
	ConvergenceFailures []ConvergenceFailure `json:"convergence_failures,omitempty"`
	Repairs             []string             `json:"repairs,omitempty"`
	Rejected            []string             `json:"rejected,omitempty"`
	// PriceDispersion per good: max minus min posted price across markets.
	PriceDispersion map[string]string `json:"price_dispersion,omitempty"`
}
