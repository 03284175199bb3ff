// Package spatial is the agent position index used for neighbor queries.
//
// Positions are bucketed into square cells of BucketSize grid cells stored in
// row-major order (buckets[row*cols+col]). Queries are exact Manhattan radius
// queries and return ids in ascending order.
package spatial

import (
	"sort"

	"econgrid.ai/internal/sim/world/kernel/model"
	"econgrid.ai/internal/sim/world/logic/mathx"
)

type Index struct {
	bucketSize int
	cols, rows int
	buckets    [][]model.AgentID // each bucket kept sorted
	pos        map[model.AgentID]model.Vec2
}

// NewIndex covers a width x height grid. bucketSize <= 0 means 1.
func NewIndex(width, height, bucketSize int) *Index {
	if bucketSize <= 0 {
		bucketSize = 1
	}
	cols := (width + bucketSize - 1) / bucketSize
	rows := (height + bucketSize - 1) / bucketSize
	if cols < 1 {
		cols = 1
	}
	if rows < 1 {
		rows = 1
	}
	return &Index{
		bucketSize: bucketSize,
		cols:       cols,
		rows:       rows,
		buckets:    make([][]model.AgentID, cols*rows),
		pos:        map[model.AgentID]model.Vec2{},
	}
}

func (ix *Index) bucketOf(p model.Vec2) int {
	col := mathx.ClampInt(mathx.FloorDiv(p.X, ix.bucketSize), 0, ix.cols-1)
	row := mathx.ClampInt(mathx.FloorDiv(p.Y, ix.bucketSize), 0, ix.rows-1)
	return row*ix.cols + col
}

func (ix *Index) Len() int { return len(ix.pos) }

func (ix *Index) Pos(id model.AgentID) (model.Vec2, bool) {
	p, ok := ix.pos[id]
	return p, ok
}

func (ix *Index) Insert(id model.AgentID, p model.Vec2) {
	if _, ok := ix.pos[id]; ok {
		ix.Update(id, p)
		return
	}
	ix.pos[id] = p
	ix.bucketAdd(ix.bucketOf(p), id)
}

func (ix *Index) Update(id model.AgentID, p model.Vec2) {
	old, ok := ix.pos[id]
	if !ok {
		ix.Insert(id, p)
		return
	}
	ix.pos[id] = p
	ob, nb := ix.bucketOf(old), ix.bucketOf(p)
	if ob == nb {
		return
	}
	ix.bucketRemove(ob, id)
	ix.bucketAdd(nb, id)
}

func (ix *Index) Remove(id model.AgentID) {
	p, ok := ix.pos[id]
	if !ok {
		return
	}
	delete(ix.pos, id)
	ix.bucketRemove(ix.bucketOf(p), id)
}

func (ix *Index) bucketAdd(b int, id model.AgentID) {
	s := ix.buckets[b]
	i := sort.Search(len(s), func(i int) bool { return s[i] >= id })
	s = append(s, 0)
	copy(s[i+1:], s[i:])
	s[i] = id
	ix.buckets[b] = s
}

func (ix *Index) bucketRemove(b int, id model.AgentID) {
	s := ix.buckets[b]
	i := sort.Search(len(s), func(i int) bool { return s[i] >= id })
	if i < len(s) && s[i] == id {
		ix.buckets[b] = append(s[:i], s[i+1:]...)
	}
}

// QueryRadius returns ids within Manhattan distance r of p (inclusive), sorted ascending.
// The result is a fresh slice.
func (ix *Index) QueryRadius(p model.Vec2, r int) []model.AgentID {
	if r < 0 {
		return nil
	}
	minCol := mathx.ClampInt(mathx.FloorDiv(p.X-r, ix.bucketSize), 0, ix.cols-1)
	maxCol := mathx.ClampInt(mathx.FloorDiv(p.X+r, ix.bucketSize), 0, ix.cols-1)
	minRow := mathx.ClampInt(mathx.FloorDiv(p.Y-r, ix.bucketSize), 0, ix.rows-1)
	maxRow := mathx.ClampInt(mathx.FloorDiv(p.Y+r, ix.bucketSize), 0, ix.rows-1)

	var out []model.AgentID
	for row := minRow; row <= maxRow; row++ {
		for col := minCol; col <= maxCol; col++ {
			for _, id := range ix.buckets[row*ix.cols+col] {
				if ix.pos[id].Manhattan(p) <= r {
					out = append(out, id)
				}
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
