// Package resources owns the harvestable cells of the grid: seeding,
// visibility queries, foraging plans and the active-set regeneration scan.
package resources

import (
	"fmt"
	"sort"

	"econgrid.ai/internal/sim/world/kernel/model"
	"econgrid.ai/internal/sim/world/logic/mathx"
	"github.com/shopspring/decimal"
	"golang.org/x/exp/maps"
)

type Params struct {
	ForageRate      decimal.Decimal
	RegenRate       decimal.Decimal
	RegenCooldown   uint64
	SingleHarvester bool
}

type Grid struct {
	width, height int
	cells         map[model.CellID]*model.ResourceCell
	// active holds cells below cap that regeneration must visit.
	active map[model.CellID]struct{}
}

func NewGrid(width, height int) *Grid {
	return &Grid{
		width:  width,
		height: height,
		cells:  map[model.CellID]*model.ResourceCell{},
		active: map[model.CellID]struct{}{},
	}
}

func (g *Grid) Width() int  { return g.width }
func (g *Grid) Height() int { return g.height }

func (g *Grid) InBounds(p model.Vec2) bool {
	return p.X >= 0 && p.Y >= 0 && p.X < g.width && p.Y < g.height
}

func (g *Grid) Clamp(p model.Vec2) model.Vec2 {
	return model.Vec2{X: mathx.ClampInt(p.X, 0, g.width-1), Y: mathx.ClampInt(p.Y, 0, g.height-1)}
}

func (g *Grid) CellIDAt(p model.Vec2) model.CellID {
	return model.CellID(p.Y*g.width + p.X + 1)
}

func (g *Grid) PosOf(id model.CellID) model.Vec2 {
	i := int(id) - 1
	return model.Vec2{X: i % g.width, Y: i / g.width}
}

// Seed places a resource cell. Cells below cap start in the active set.
func (g *Grid) Seed(p model.Vec2, good string, stock, cap decimal.Decimal) error {
	if !g.InBounds(p) {
		return fmt.Errorf("resource at %v out of bounds", p)
	}
	id := g.CellIDAt(p)
	if _, ok := g.cells[id]; ok {
		return fmt.Errorf("duplicate resource cell at %v", p)
	}
	if cap.LessThan(stock) {
		cap = stock
	}
	g.cells[id] = &model.ResourceCell{ID: id, Pos: p, Good: good, Stock: stock, Cap: cap}
	if stock.LessThan(cap) {
		g.active[id] = struct{}{}
	}
	return nil
}

func (g *Grid) Cell(id model.CellID) *model.ResourceCell { return g.cells[id] }

func (g *Grid) At(p model.Vec2) *model.ResourceCell {
	if !g.InBounds(p) {
		return nil
	}
	return g.cells[g.CellIDAt(p)]
}

func (g *Grid) Len() int { return len(g.cells) }

func (g *Grid) SortedIDs() []model.CellID {
	ids := maps.Keys(g.cells)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (g *Grid) ActiveIDs() []model.CellID {
	ids := maps.Keys(g.active)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (g *Grid) IsActive(id model.CellID) bool {
	_, ok := g.active[id]
	return ok
}

// Visible returns copies of cells with stock > 0 within Manhattan radius r, sorted by id.
func (g *Grid) Visible(p model.Vec2, r int) []model.ResourceCell {
	var out []model.ResourceCell
	if (2*r+1)*(2*r+1) > len(g.cells) {
		for _, id := range g.SortedIDs() {
			c := g.cells[id]
			if c.Pos.Manhattan(p) <= r && c.Stock.IsPositive() {
				out = append(out, *c)
			}
		}
		return out
	}
	// Row-major scan yields ascending ids.
	for dy := -r; dy <= r; dy++ {
		span := r - mathx.AbsInt(dy)
		for dx := -span; dx <= span; dx++ {
			q := p.Add(dx, dy)
			if !g.InBounds(q) {
				continue
			}
			if c := g.cells[g.CellIDAt(q)]; c != nil && c.Stock.IsPositive() {
				out = append(out, *c)
			}
		}
	}
	return out
}

// ApplyHarvest removes qty from the cell and marks it for regeneration.
func (g *Grid) ApplyHarvest(id model.CellID, qty decimal.Decimal, now uint64) error {
	c := g.cells[id]
	if c == nil {
		return fmt.Errorf("harvest: unknown cell %s", id)
	}
	if c.Stock.LessThan(qty) {
		return fmt.Errorf("harvest: cell %s stock %s < %s", id, c.Stock, qty)
	}
	c.Stock = c.Stock.Sub(qty)
	c.LastHarvestTick = now
	c.Harvested = true
	g.active[id] = struct{}{}
	return nil
}

// ApplyRegenerate adds qty up to cap; a full cell leaves the active set.
func (g *Grid) ApplyRegenerate(id model.CellID, qty decimal.Decimal) {
	c := g.cells[id]
	if c == nil {
		return
	}
	c.Stock = decimal.Min(c.Cap, c.Stock.Add(qty))
	if !c.Stock.LessThan(c.Cap) {
		delete(g.active, id)
	}
}

// Restore overwrites a cell's mutable state (snapshot import).
func (g *Grid) Restore(c model.ResourceCell, active bool) {
	cp := c
	g.cells[c.ID] = &cp
	if active {
		g.active[c.ID] = struct{}{}
	} else {
		delete(g.active, c.ID)
	}
}
