// Package render draws a world render state as a PNG for quick inspection.
package render

import (
	"image"
	"image/color"
	"image/png"
	"io"
	"strconv"

	"github.com/fogleman/gg"
	"github.com/shopspring/decimal"

	"econgrid.ai/internal/sim/world"
)

type Options struct {
	CellPx int
	// Labels draws market ids and the tick in the corner. Needs no font file;
	// gg falls back to its built-in face.
	Labels bool
}

var (
	background = color.RGBA{12, 12, 28, 255}
	gridLine   = color.RGBA{30, 30, 45, 255}
	pairLine   = color.RGBA{240, 200, 80, 255}
	agentFree  = color.RGBA{220, 220, 230, 255}
	agentPair  = color.RGBA{240, 200, 80, 255}
	agentMkt   = color.RGBA{90, 200, 250, 255}
	marketRing = color.RGBA{90, 200, 250, 90}
)

// goodColors is indexed by the good's position in RenderState.Goods.
var goodColors = []color.RGBA{
	{70, 160, 80, 255},
	{170, 110, 60, 255},
	{150, 90, 190, 255},
	{200, 80, 80, 255},
	{80, 130, 200, 255},
}

func (o *Options) applyDefaults() {
	if o.CellPx <= 0 {
		o.CellPx = 16
	}
}

// Frame draws rs into a new image.
func Frame(rs world.RenderState, opts Options) image.Image {
	opts.applyDefaults()
	px := float64(opts.CellPx)
	w, h := max(rs.Width, 1)*opts.CellPx, max(rs.Height, 1)*opts.CellPx
	dc := gg.NewContext(w, h)

	dc.SetColor(background)
	dc.DrawRectangle(0, 0, float64(w), float64(h))
	dc.Fill()

	dc.SetColor(gridLine)
	dc.SetLineWidth(1)
	for x := 0; x <= rs.Width; x++ {
		dc.DrawLine(float64(x)*px, 0, float64(x)*px, float64(h))
		dc.Stroke()
	}
	for y := 0; y <= rs.Height; y++ {
		dc.DrawLine(0, float64(y)*px, float64(w), float64(y)*px)
		dc.Stroke()
	}

	goodIdx := map[string]int{}
	for i, g := range rs.Goods {
		goodIdx[g] = i
	}
	for _, c := range rs.Resources {
		col := goodColors[goodIdx[c.Good]%len(goodColors)]
		col.A = uint8(60 + 195*fill(c.Stock, c.Cap))
		dc.SetColor(col)
		dc.DrawRectangle(float64(c.Pos.X)*px+1, float64(c.Pos.Y)*px+1, px-2, px-2)
		dc.Fill()
	}

	for _, m := range rs.Markets {
		cx, cy := center(m.Center, px)
		dc.SetColor(marketRing)
		dc.DrawCircle(cx, cy, float64(m.Radius)*px+px/2)
		dc.Fill()
		if opts.Labels {
			dc.SetColor(color.White)
			dc.DrawStringAnchored(m.ID.String(), cx, cy, 0.5, 0.5)
		}
	}

	pos := make(map[world.AgentID]world.Vec2, len(rs.Agents))
	for _, a := range rs.Agents {
		pos[a.ID] = a.Pos
	}
	dc.SetColor(pairLine)
	dc.SetLineWidth(2)
	for _, a := range rs.Agents {
		if a.Partner == 0 || a.Partner < a.ID {
			continue
		}
		p, ok := pos[a.Partner]
		if !ok {
			continue
		}
		x1, y1 := center(a.Pos, px)
		x2, y2 := center(p, px)
		dc.DrawLine(x1, y1, x2, y2)
		dc.Stroke()
	}

	for _, a := range rs.Agents {
		switch {
		case a.Market != 0:
			dc.SetColor(agentMkt)
		case a.Partner != 0:
			dc.SetColor(agentPair)
		default:
			dc.SetColor(agentFree)
		}
		x, y := center(a.Pos, px)
		dc.DrawCircle(x, y, px*0.3)
		dc.Fill()
	}

	if opts.Labels {
		dc.SetColor(color.White)
		dc.DrawString("t="+strconv.FormatUint(rs.Tick, 10)+" "+string(rs.Mode), 4, 12)
	}
	return dc.Image()
}

// WritePNG renders rs and encodes it to out.
func WritePNG(out io.Writer, rs world.RenderState, opts Options) error {
	return png.Encode(out, Frame(rs, opts))
}

func center(p world.Vec2, px float64) (float64, float64) {
	return float64(p.X)*px + px/2, float64(p.Y)*px + px/2
}

func fill(stock, capacity string) float64 {
	s, err1 := decimal.NewFromString(stock)
	c, err2 := decimal.NewFromString(capacity)
	if err1 != nil || err2 != nil || !c.IsPositive() {
		return 1
	}
	f := s.Div(c).InexactFloat64()
	return min(max(f, 0), 1)
}
