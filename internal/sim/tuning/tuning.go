package tuning

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"strconv"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"econgrid.ai/internal/sim/world"
	"econgrid.ai/internal/sim/world/feature/resources"
	"econgrid.ai/internal/sim/world/feature/utility"
	"econgrid.ai/internal/sim/world/kernel/model"
	"econgrid.ai/internal/sim/world/logic/mathx"
)

// Dec is a decimal that accepts either a YAML number or a quoted string.
// Quoting keeps values like "0.1" exact.
type Dec struct{ decimal.Decimal }

func (d *Dec) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: expected a decimal, got %s", n.Line, n.Tag)
	}
	v, err := decimal.NewFromString(n.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", n.Line, err)
	}
	d.Decimal = v
	return nil
}

func (d Dec) MarshalYAML() (any, error) { return d.String(), nil }

// Scenario is the on-disk form of a run. Zero values fall back to the
// world's defaults.
type Scenario struct {
	ID         string `yaml:"id"`
	Seed       int64  `yaml:"seed"`
	TickRateHz int    `yaml:"tick_rate_hz"`

	Grid      Grid     `yaml:"grid"`
	Goods     []string `yaml:"goods"`
	Numeraire string   `yaml:"numeraire"`

	Agents      []AgentEntry `yaml:"agents"`
	Populations []Population `yaml:"populations"`
	Resources   []Resource   `yaml:"resources"`
	NoiseFields []NoiseField `yaml:"noise_fields"`
	Perception  Perception   `yaml:"perception"`
	Markets     Markets      `yaml:"markets"`
	Bargaining  Bargaining   `yaml:"bargaining"`
	Tatonnement Tatonnement  `yaml:"tatonnement"`
	Forage      Forage       `yaml:"forage"`
	Modes       Modes        `yaml:"modes"`
	Protocols   Protocols    `yaml:"protocols"`
	Precision   Precision    `yaml:"precision"`

	BidAskSpread       float64 `yaml:"bid_ask_spread"`
	StrictInvariants   bool    `yaml:"strict_invariants"`
	SnapshotEveryTicks int     `yaml:"snapshot_every_ticks"`

	digest string
}

type Grid struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

type AgentEntry struct {
	ID        uint32         `yaml:"id"`
	Pos       []int          `yaml:"pos"`
	Inventory map[string]Dec `yaml:"inventory"`
	Utility   utility.Spec   `yaml:"utility"`
}

// Population places Count agents at seeded positions inside Region
// ([x0,y0,x1,y1], inclusive; whole grid when empty).
type Population struct {
	Count     int            `yaml:"count"`
	Region    []int          `yaml:"region"`
	Inventory map[string]Dec `yaml:"inventory"`
	Utility   utility.Spec   `yaml:"utility"`
}

type Resource struct {
	Pos   []int  `yaml:"pos"`
	Good  string `yaml:"good"`
	Stock Dec    `yaml:"stock"`
	Cap   Dec    `yaml:"cap"`
}

type NoiseField struct {
	Good      string  `yaml:"good"`
	Threshold float64 `yaml:"threshold"`
	Frequency float64 `yaml:"frequency"`
	Octaves   int     `yaml:"octaves"`
	Cap       Dec     `yaml:"cap"`
}

type Perception struct {
	VisionRadius      int     `yaml:"vision_radius"`
	InteractionRadius int     `yaml:"interaction_radius"`
	MoveBudget        int     `yaml:"move_budget"`
	Beta              float64 `yaml:"beta"`
	BucketSize        int     `yaml:"bucket_size"`
	Workers           int     `yaml:"workers"`
}

type Markets struct {
	Enabled             bool    `yaml:"enabled"`
	PriceStaleTicks     int     `yaml:"price_stale_ticks"`
	PlaceholderValue    float64 `yaml:"placeholder_value"`
	FormationThreshold  int     `yaml:"formation_threshold"`
	FormationRadius     int     `yaml:"formation_radius"`
	MarketRadius        int     `yaml:"market_radius"`
	SustainThreshold    int     `yaml:"sustain_threshold"`
	DissolutionPatience int     `yaml:"dissolution_patience"`
	ReuseTolerance      int     `yaml:"reuse_tolerance"`
}

type Bargaining struct {
	MaxTradeUnits   int     `yaml:"max_trade_units"`
	PriceCandidates int     `yaml:"price_candidates"`
	Tolerance       float64 `yaml:"tolerance"`
	CooldownTicks   int     `yaml:"cooldown_ticks"`
}

type Tatonnement struct {
	MaxIterations   int `yaml:"max_iterations"`
	Tolerance       Dec `yaml:"tolerance"`
	AdjustmentSpeed Dec `yaml:"adjustment_speed"`
	PriceFloor      Dec `yaml:"price_floor"`
	Elasticity      Dec `yaml:"elasticity"`
	OrderCap        Dec `yaml:"order_cap"`
}

type Forage struct {
	Rate            Dec  `yaml:"rate"`
	RegenRate       Dec  `yaml:"regen_rate"`
	RegenCooldown   int  `yaml:"regen_cooldown"`
	SingleHarvester bool `yaml:"single_harvester"`
}

type Modes struct {
	Mode        string `yaml:"mode"`
	ForageTicks int    `yaml:"forage_ticks"`
	TradeTicks  int    `yaml:"trade_ticks"`
	StartWith   string `yaml:"start_with"`
}

type Protocols struct {
	Search     string `yaml:"search"`
	Matching   string `yaml:"matching"`
	Bargaining string `yaml:"bargaining"`
	Market     string `yaml:"market"`
}

type Precision struct {
	Quantity int32 `yaml:"quantity"`
	Price    int32 `yaml:"price"`
}

// LoadScenario reads, schema-validates and decodes a scenario file.
func LoadScenario(path string) (Scenario, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Scenario{}, err
	}
	s, err := ParseScenario(raw)
	if err != nil {
		return Scenario{}, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

func ParseScenario(raw []byte) (Scenario, error) {
	var s Scenario
	if err := validateSchema(raw); err != nil {
		return s, err
	}
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return s, fmt.Errorf("decode: %w", err)
	}
	sum := sha256.Sum256(raw)
	s.digest = hex.EncodeToString(sum[:])
	return s, nil
}

// Digest is the sha256 of the file the scenario was parsed from.
func (s Scenario) Digest() string { return s.digest }

func decMap(in map[string]Dec) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(in))
	for g, d := range in {
		out[g] = d.Decimal
	}
	return out
}

func vec(p []int) model.Vec2 {
	if len(p) != 2 {
		return model.Vec2{X: -1, Y: -1}
	}
	return model.Vec2{X: p[0], Y: p[1]}
}

// Validate runs the config checks of world.New without building a world.
func (s Scenario) Validate() error {
	cfg, err := s.WorldConfig()
	if err != nil {
		return err
	}
	cfg = cfg.WithDefaults()
	return cfg.Validate()
}

// WorldConfig converts the scenario. Semantic validation happens in world.New.
func (s Scenario) WorldConfig() (world.WorldConfig, error) {
	cfg := world.WorldConfig{
		ID:         s.ID,
		Seed:       s.Seed,
		TickRateHz: s.TickRateHz,
		Width:      s.Grid.Width,
		Height:     s.Grid.Height,
		Goods:      append([]string(nil), s.Goods...),
		Numeraire:  s.Numeraire,

		VisionRadius:      s.Perception.VisionRadius,
		InteractionRadius: s.Perception.InteractionRadius,
		MoveBudget:        s.Perception.MoveBudget,
		Beta:              s.Perception.Beta,
		BucketSize:        s.Perception.BucketSize,
		PerceptionWorkers: s.Perception.Workers,

		EnableMarkets:          s.Markets.Enabled,
		PriceStaleTicks:        s.Markets.PriceStaleTicks,
		MarketPlaceholderValue: s.Markets.PlaceholderValue,
		FormationThreshold:     s.Markets.FormationThreshold,
		FormationRadius:        s.Markets.FormationRadius,
		MarketRadius:           s.Markets.MarketRadius,
		SustainThreshold:       s.Markets.SustainThreshold,
		DissolutionPatience:    s.Markets.DissolutionPatience,
		ReuseTolerance:         s.Markets.ReuseTolerance,

		MaxTradeUnits:      s.Bargaining.MaxTradeUnits,
		PriceCandidates:    s.Bargaining.PriceCandidates,
		TradeTolerance:     s.Bargaining.Tolerance,
		TradeCooldownTicks: s.Bargaining.CooldownTicks,

		MaxIterations:   s.Tatonnement.MaxIterations,
		Tolerance:       s.Tatonnement.Tolerance.Decimal,
		AdjustmentSpeed: s.Tatonnement.AdjustmentSpeed.Decimal,
		PriceFloor:      s.Tatonnement.PriceFloor.Decimal,
		Elasticity:      s.Tatonnement.Elasticity.Decimal,
		OrderCap:        s.Tatonnement.OrderCap.Decimal,

		ForageRate:      s.Forage.Rate.Decimal,
		RegenRate:       s.Forage.RegenRate.Decimal,
		RegenCooldown:   s.Forage.RegenCooldown,
		SingleHarvester: s.Forage.SingleHarvester,

		BidAskSpread:     s.BidAskSpread,
		StrictInvariants: s.StrictInvariants,
		QuantityDecimals: s.Precision.Quantity,
		PriceDecimals:    s.Precision.Price,

		Modes: world.ModeSchedule{
			Mode:        world.Mode(s.Modes.Mode),
			ForageTicks: s.Modes.ForageTicks,
			TradeTicks:  s.Modes.TradeTicks,
			StartWith:   world.Mode(s.Modes.StartWith),
		},

		SearchProtocol:     s.Protocols.Search,
		MatchingProtocol:   s.Protocols.Matching,
		BargainingProtocol: s.Protocols.Bargaining,
		MarketMechanism:    s.Protocols.Market,

		SnapshotEveryTicks: s.SnapshotEveryTicks,
	}

	used := map[uint32]bool{}
	var maxID uint32
	for _, a := range s.Agents {
		used[a.ID] = true
		maxID = max(maxID, a.ID)
		cfg.Agents = append(cfg.Agents, world.AgentSpec{
			ID:        model.AgentID(a.ID),
			Pos:       vec(a.Pos),
			Inventory: decMap(a.Inventory),
			Utility:   a.Utility,
		})
	}
	next := maxID + 1
	for i, p := range s.Populations {
		placed, err := p.place(s.Seed, i, s.Grid)
		if err != nil {
			return cfg, fmt.Errorf("%w: population %d: %w", world.ErrConfig, i, err)
		}
		for _, pos := range placed {
			cfg.Agents = append(cfg.Agents, world.AgentSpec{
				ID:        model.AgentID(next),
				Pos:       pos,
				Inventory: decMap(p.Inventory),
				Utility:   p.Utility,
			})
			next++
		}
	}

	for _, r := range s.Resources {
		cfg.Resources = append(cfg.Resources, world.ResourceSpec{
			Pos:   vec(r.Pos),
			Good:  r.Good,
			Stock: r.Stock.Decimal,
			Cap:   r.Cap.Decimal,
		})
	}
	for _, f := range s.NoiseFields {
		cfg.NoiseFields = append(cfg.NoiseFields, resources.NoiseField{
			Good:      f.Good,
			Threshold: f.Threshold,
			Frequency: f.Frequency,
			Octaves:   f.Octaves,
			Cap:       f.Cap.Decimal,
		})
	}
	return cfg, nil
}

func (p Population) region(g Grid) ([4]int, error) {
	if len(p.Region) == 0 {
		return [4]int{0, 0, g.Width - 1, g.Height - 1}, nil
	}
	if len(p.Region) != 4 {
		return [4]int{}, fmt.Errorf("region needs 4 values, got %d", len(p.Region))
	}
	r := [4]int{p.Region[0], p.Region[1], p.Region[2], p.Region[3]}
	if r[0] < 0 || r[1] < 0 || r[2] >= g.Width || r[3] >= g.Height || r[0] > r[2] || r[1] > r[3] {
		return r, fmt.Errorf("region %v outside %dx%d grid", r, g.Width, g.Height)
	}
	return r, nil
}

// place derives positions from the scenario seed, so the same file always
// yields the same layout.
func (p Population) place(seed int64, group int, g Grid) ([]model.Vec2, error) {
	r, err := p.region(g)
	if err != nil {
		return nil, err
	}
	w, h := r[2]-r[0]+1, r[3]-r[1]+1
	out := make([]model.Vec2, 0, p.Count)
	for i := 0; i < p.Count; i++ {
		hx := mathx.HashString(seed, "pop"+strconv.Itoa(group)+"x"+strconv.Itoa(i))
		hy := mathx.HashString(seed, "pop"+strconv.Itoa(group)+"y"+strconv.Itoa(i))
		out = append(out, model.Vec2{X: r[0] + int(hx%uint64(w)), Y: r[1] + int(hy%uint64(h))})
	}
	return out, nil
}
