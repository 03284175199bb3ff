package model

import "econgrid.ai/internal/sim/world/logic/mathx"

type Vec2 struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func (v Vec2) Manhattan(o Vec2) int {
	return mathx.Manhattan(v.X, v.Y, o.X, o.Y)
}

func (v Vec2) Add(dx, dy int) Vec2 {
	return Vec2{X: v.X + dx, Y: v.Y + dy}
}

// Centroid returns the rounded mean position. Empty input yields the zero vector.
func Centroid(ps []Vec2) Vec2 {
	if len(ps) == 0 {
		return Vec2{}
	}
	sx, sy := 0, 0
	for _, p := range ps {
		sx += p.X
		sy += p.Y
	}
	return Vec2{X: mathx.RoundDiv(sx, len(ps)), Y: mathx.RoundDiv(sy, len(ps))}
}
