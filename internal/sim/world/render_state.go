package world

import (
	"econgrid.ai/internal/sim/world/kernel/model"
)

type RenderAgent struct {
	ID        AgentID           `json:"id"`
	Pos       Vec2              `json:"pos"`
	Partner   AgentID           `json:"partner,omitempty"`
	Market    MarketID          `json:"market,omitempty"`
	Target    model.Target      `json:"target"`
	Inventory map[string]string `json:"inventory"`
}

type RenderMarket struct {
	ID           MarketID          `json:"id"`
	Center       Vec2              `json:"center"`
	Radius       int               `json:"radius"`
	Participants []AgentID         `json:"participants,omitempty"`
	Prices       map[string]string `json:"prices,omitempty"`
}

type RenderCell struct {
	ID    model.CellID `json:"id"`
	Pos   Vec2         `json:"pos"`
	Good  string       `json:"good"`
	Stock string       `json:"stock"`
	Cap   string       `json:"cap"`
}

// RenderState is a read-only copy of the world published after every tick.
// Readers must not mutate it.
type RenderState struct {
	Tick      uint64         `json:"tick"`
	Mode      Mode           `json:"mode"`
	Width     int            `json:"width"`
	Height    int            `json:"height"`
	Goods     []string       `json:"goods"`
	Numeraire string         `json:"numeraire"`
	Agents    []RenderAgent  `json:"agents"`
	Markets   []RenderMarket `json:"markets,omitempty"`
	Resources []RenderCell   `json:"resources,omitempty"`
}

// RenderState returns the latest published state. Safe from any goroutine.
func (w *World) RenderState() RenderState {
	if p := w.render.Load(); p != nil {
		return *p
	}
	return RenderState{}
}

func (w *World) publishRenderState(tick uint64, mode Mode) {
	rs := &RenderState{
		Tick:      tick,
		Mode:      mode,
		Width:     w.cfg.Width,
		Height:    w.cfg.Height,
		Goods:     append([]string(nil), w.cfg.Goods...),
		Numeraire: w.cfg.Numeraire,
		Agents:    make([]RenderAgent, 0, len(w.order)),
	}
	for _, id := range w.order {
		a := w.agents[id]
		rs.Agents = append(rs.Agents, RenderAgent{
			ID:        a.ID,
			Pos:       a.Pos,
			Partner:   a.Partner,
			Market:    a.Market,
			Target:    a.Target,
			Inventory: decStrings(a.Inventory),
		})
	}
	for _, m := range w.sortedMarkets() {
		rs.Markets = append(rs.Markets, RenderMarket{
			ID:           m.ID,
			Center:       m.Center,
			Radius:       m.Radius,
			Participants: append([]AgentID(nil), m.Participants...),
			Prices:       decStrings(m.Prices),
		})
	}
	for _, id := range w.grid.SortedIDs() {
		c := w.grid.Cell(id)
		rs.Resources = append(rs.Resources, RenderCell{
			ID:    c.ID,
			Pos:   c.Pos,
			Good:  c.Good,
			Stock: c.Stock.String(),
			Cap:   c.Cap.String(),
		})
	}
	w.render.Store(rs)
}
