package observerproto

import "econgrid.ai/internal/sim/world"

// Version is the observer protocol version.
const Version = "1.0"

const (
	TypeSubscribe = "SUBSCRIBE"
	TypeTick      = "TICK"
)

// Client -> Server. First message on the observer WS connection; may be re-sent
// to change settings.
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	// EveryTicks thins the stream to one message per N ticks.
	EveryTicks int `json:"every_ticks,omitempty"`
	// Resources adds resource cells to every message. They can be large.
	Resources bool `json:"resources,omitempty"`
}

// HTTP response for GET /v1/bootstrap.
type BootstrapResponse struct {
	ProtocolVersion string      `json:"protocol_version"`
	WorldID         string      `json:"world_id"`
	Tick            uint64      `json:"tick"`
	WorldParams     WorldParams `json:"world_params"`
}

type WorldParams struct {
	TickRateHz    int      `json:"tick_rate_hz"`
	Width         int      `json:"width"`
	Height        int      `json:"height"`
	Seed          int64    `json:"seed"`
	Goods         []string `json:"goods"`
	Numeraire     string   `json:"numeraire"`
	VisionRadius  int      `json:"vision_radius"`
	MarketsOn     bool     `json:"markets_enabled"`
	MarketRadius  int      `json:"market_radius"`
	SearchProto   string   `json:"search_protocol"`
	MatchingProto string   `json:"matching_protocol"`
}

// Server -> Client. Sent after every (or every Nth) tick.
type TickMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Tick            uint64 `json:"tick"`
	Mode            string `json:"mode"`

	Agents    []world.RenderAgent  `json:"agents"`
	Markets   []world.RenderMarket `json:"markets,omitempty"`
	Resources []world.RenderCell   `json:"resources,omitempty"`
}

func NewBootstrap(cfg world.WorldConfig, tick uint64) BootstrapResponse {
	return BootstrapResponse{
		ProtocolVersion: Version,
		WorldID:         cfg.ID,
		Tick:            tick,
		WorldParams: WorldParams{
			TickRateHz:    cfg.TickRateHz,
			Width:         cfg.Width,
			Height:        cfg.Height,
			Seed:          cfg.Seed,
			Goods:         append([]string(nil), cfg.Goods...),
			Numeraire:     cfg.Numeraire,
			VisionRadius:  cfg.VisionRadius,
			MarketsOn:     cfg.EnableMarkets,
			MarketRadius:  cfg.MarketRadius,
			SearchProto:   cfg.SearchProtocol,
			MatchingProto: cfg.MatchingProtocol,
		},
	}
}

func NewTick(rs world.RenderState, resources bool) TickMsg {
	m := TickMsg{
		Type:            TypeTick,
		ProtocolVersion: Version,
		Tick:            rs.Tick,
		Mode:            string(rs.Mode),
		Agents:          rs.Agents,
		Markets:         rs.Markets,
	}
	if resources {
		m.Resources = rs.Resources
	}
	return m
}
