package world

import (
	"errors"
	"fmt"

	"econgrid.ai/internal/sim/world/feature/resources"
	"econgrid.ai/internal/sim/world/feature/utility"
	"econgrid.ai/internal/sim/world/kernel/model"
	"github.com/shopspring/decimal"
)

var ErrConfig = errors.New("invalid world config")

type Mode string

const (
	ModeBoth        Mode = "both"
	ModeForage      Mode = "forage"
	ModeTrade       Mode = "trade"
	ModeAlternating Mode = "alternating"
)

func (m Mode) AllowsTrade() bool  { return m == ModeBoth || m == ModeTrade }
func (m Mode) AllowsForage() bool { return m == ModeBoth || m == ModeForage }

// ModeSchedule decides which activities a tick allows. Alternating cycles
// through StartWith for its own tick count and then the other mode.
type ModeSchedule struct {
	Mode        Mode
	ForageTicks int
	TradeTicks  int
	StartWith   Mode
}

func (s ModeSchedule) At(tick uint64) Mode {
	if s.Mode != ModeAlternating {
		if s.Mode == "" {
			return ModeBoth
		}
		return s.Mode
	}
	first, second := ModeForage, ModeTrade
	firstLen, secondLen := s.ForageTicks, s.TradeTicks
	if s.StartWith == ModeTrade {
		first, second = second, first
		firstLen, secondLen = secondLen, firstLen
	}
	cycle := uint64(firstLen + secondLen)
	if tick%cycle < uint64(firstLen) {
		return first
	}
	return second
}

type AgentSpec struct {
	ID        model.AgentID
	Pos       model.Vec2
	Inventory map[string]decimal.Decimal
	Utility   utility.Spec
}

type ResourceSpec struct {
	Pos   model.Vec2
	Good  string
	Stock decimal.Decimal
	Cap   decimal.Decimal
}

type WorldConfig struct {
	ID         string
	Seed       int64
	TickRateHz int

	Width  int
	Height int

	Goods     []string
	Numeraire string

	Agents      []AgentSpec
	Resources   []ResourceSpec
	NoiseFields []resources.NoiseField

	VisionRadius      int
	InteractionRadius int
	MoveBudget        int
	Beta              float64
	BucketSize        int
	PerceptionWorkers int

	// Markets.
	EnableMarkets          bool
	PriceStaleTicks        int
	MarketPlaceholderValue float64
	FormationThreshold     int
	FormationRadius        int
	MarketRadius           int
	SustainThreshold       int
	DissolutionPatience    int
	ReuseTolerance         int

	// Bilateral bargaining.
	MaxTradeUnits      int
	PriceCandidates    int
	TradeTolerance     float64
	TradeCooldownTicks int

	// Tatonnement.
	MaxIterations   int
	Tolerance       decimal.Decimal
	AdjustmentSpeed decimal.Decimal
	PriceFloor      decimal.Decimal
	Elasticity      decimal.Decimal
	OrderCap        decimal.Decimal

	// Foraging and regeneration.
	ForageRate      decimal.Decimal
	RegenRate       decimal.Decimal
	RegenCooldown   int
	SingleHarvester bool

	BidAskSpread     float64
	StrictInvariants bool
	QuantityDecimals int32
	PriceDecimals    int32

	Modes ModeSchedule

	SearchProtocol     string
	MatchingProtocol   string
	BargainingProtocol string
	MarketMechanism    string

	// Operational. Included in snapshots for resume.
	SnapshotEveryTicks int
}

func (c *WorldConfig) applyDefaults() {
	if c.TickRateHz <= 0 {
		c.TickRateHz = 5
	}
	if c.Numeraire == "" && len(c.Goods) > 0 {
		c.Numeraire = c.Goods[len(c.Goods)-1]
	}
	if c.VisionRadius <= 0 {
		c.VisionRadius = 8
	}
	if c.InteractionRadius <= 0 {
		c.InteractionRadius = 1
	}
	if c.MoveBudget <= 0 {
		c.MoveBudget = 1
	}
	if c.Beta == 0 {
		c.Beta = 0.95
	}
	if c.BucketSize <= 0 {
		c.BucketSize = c.VisionRadius
	}
	if c.PriceStaleTicks <= 0 {
		c.PriceStaleTicks = 10
	}
	if c.MarketPlaceholderValue <= 0 {
		c.MarketPlaceholderValue = 0.1
	}
	if c.FormationThreshold == 0 {
		c.FormationThreshold = 5
	}
	if c.FormationRadius <= 0 {
		c.FormationRadius = 3
	}
	if c.MarketRadius <= 0 {
		c.MarketRadius = c.FormationRadius
	}
	if c.SustainThreshold == 0 {
		c.SustainThreshold = 3
	}
	if c.DissolutionPatience == 0 {
		c.DissolutionPatience = 5
	}
	if c.ReuseTolerance <= 0 {
		c.ReuseTolerance = 2
	}
	if c.MaxTradeUnits <= 0 {
		c.MaxTradeUnits = 5
	}
	if c.PriceCandidates <= 0 {
		c.PriceCandidates = 9
	}
	if c.TradeTolerance <= 0 {
		c.TradeTolerance = 1e-6
	}
	if c.TradeCooldownTicks <= 0 {
		c.TradeCooldownTicks = 5
	}
	if c.MaxIterations <= 0 {
		c.MaxIterations = 200
	}
	if c.Tolerance.IsZero() {
		c.Tolerance = decimal.RequireFromString("0.01")
	}
	if c.AdjustmentSpeed.IsZero() {
		c.AdjustmentSpeed = decimal.RequireFromString("0.05")
	}
	if c.PriceFloor.IsZero() {
		c.PriceFloor = decimal.RequireFromString("0.01")
	}
	if c.Elasticity.IsZero() {
		c.Elasticity = decimal.NewFromInt(1)
	}
	if c.OrderCap.IsZero() {
		c.OrderCap = decimal.NewFromInt(5)
	}
	if c.ForageRate.IsZero() {
		c.ForageRate = decimal.NewFromInt(1)
	}
	if c.RegenCooldown < 0 {
		c.RegenCooldown = 0
	}
	if c.BidAskSpread < 0 {
		c.BidAskSpread = 0
	}
	if c.QuantityDecimals <= 0 {
		c.QuantityDecimals = 2
	}
	if c.PriceDecimals <= 0 {
		c.PriceDecimals = 4
	}
	if c.Modes.Mode == "" {
		c.Modes.Mode = ModeBoth
	}
	if c.SearchProtocol == "" {
		c.SearchProtocol = "distance_discounted"
	}
	if c.MatchingProtocol == "" {
		c.MatchingProtocol = "three_pass"
	}
	if c.BargainingProtocol == "" {
		c.BargainingProtocol = "block_search"
	}
	if c.MarketMechanism == "" {
		c.MarketMechanism = "tatonnement"
	}
}

func configErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfig, fmt.Sprintf(format, args...))
}

// WithDefaults returns a copy with zero fields filled in, as New does.
func (c WorldConfig) WithDefaults() WorldConfig {
	c.applyDefaults()
	return c
}

// Validate checks a config after defaults are applied.
func (c *WorldConfig) Validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return configErr("grid %dx%d must be positive", c.Width, c.Height)
	}
	if len(c.Goods) == 0 {
		return configErr("no goods")
	}
	goods := map[string]bool{}
	for _, g := range c.Goods {
		if g == "" || goods[g] {
			return configErr("duplicate or empty good %q", g)
		}
		goods[g] = true
	}
	if !goods[c.Numeraire] {
		return configErr("numeraire %q is not a good", c.Numeraire)
	}
	if !(c.Beta > 0 && c.Beta <= 1) {
		return configErr("beta %v must be in (0,1]", c.Beta)
	}
	if c.BidAskSpread >= 1 {
		return configErr("bid_ask_spread %v must be < 1", c.BidAskSpread)
	}
	if c.EnableMarkets {
		if c.FormationThreshold <= 0 || c.SustainThreshold <= 0 || c.DissolutionPatience <= 0 {
			return configErr("market thresholds must be positive")
		}
		if c.SustainThreshold >= c.FormationThreshold {
			return configErr("sustain_threshold (%d) must be < formation_threshold (%d)", c.SustainThreshold, c.FormationThreshold)
		}
		if !c.AdjustmentSpeed.IsPositive() || !c.Elasticity.IsPositive() || !c.OrderCap.IsPositive() ||
			!c.PriceFloor.IsPositive() || !c.Tolerance.IsPositive() {
			return configErr("tatonnement parameters must be positive")
		}
	}
	if c.Modes.Mode == ModeAlternating && (c.Modes.ForageTicks <= 0 || c.Modes.TradeTicks <= 0) {
		return configErr("alternating mode needs forage_ticks and trade_ticks > 0")
	}
	switch c.Modes.Mode {
	case ModeBoth, ModeForage, ModeTrade, ModeAlternating:
	default:
		return configErr("unknown mode %q", c.Modes.Mode)
	}

	seen := map[model.AgentID]bool{}
	for _, a := range c.Agents {
		if a.ID == 0 || seen[a.ID] {
			return configErr("agent id %d is zero or duplicated", a.ID)
		}
		seen[a.ID] = true
		if a.Pos.X < 0 || a.Pos.Y < 0 || a.Pos.X >= c.Width || a.Pos.Y >= c.Height {
			return configErr("agent %d position %v out of bounds", a.ID, a.Pos)
		}
		for g, q := range a.Inventory {
			if !goods[g] {
				return configErr("agent %d holds unknown good %q", a.ID, g)
			}
			if q.IsNegative() {
				return configErr("agent %d has negative %s", a.ID, g)
			}
		}
		if c.EnableMarkets {
			if _, ok := a.Inventory[c.Numeraire]; !ok {
				return configErr("agent %d has no %s endowment (numeraire, markets enabled)", a.ID, c.Numeraire)
			}
		}
		if _, err := utility.Build(a.Utility, c.Numeraire); err != nil {
			return fmt.Errorf("%w: agent %d: %w", ErrConfig, a.ID, err)
		}
	}
	for _, r := range c.Resources {
		if !goods[r.Good] {
			return configErr("resource at %v has unknown good %q", r.Pos, r.Good)
		}
	}
	for _, f := range c.NoiseFields {
		if !goods[f.Good] {
			return configErr("noise field has unknown good %q", f.Good)
		}
	}
	return nil
}
