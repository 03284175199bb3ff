package resources

import (
	"econgrid.ai/internal/sim/world/kernel/model"
	"econgrid.ai/internal/sim/world/logic/mathx"
	"github.com/ojrac/opensimplex-go"
	"github.com/shopspring/decimal"
)

// NoiseField scatters cells of one good wherever seeded simplex noise is above Threshold.
type NoiseField struct {
	Good      string
	Threshold float64
	Frequency float64
	Octaves   int
	Cap       decimal.Decimal
}

// SeedNoise fills empty positions and returns how many cells it created.
// The same seed and field always produce the same layout.
func (g *Grid) SeedNoise(seed int64, f NoiseField) int {
	noise := opensimplex.NewNormalized(int64(mathx.HashString(seed, f.Good)))
	freq := f.Frequency
	if freq <= 0 {
		freq = 0.15
	}
	octaves := f.Octaves
	if octaves <= 0 {
		octaves = 1
	}
	n := 0
	for y := 0; y < g.height; y++ {
		for x := 0; x < g.width; x++ {
			if octaveNoise(noise, float64(x), float64(y), octaves, freq) < f.Threshold {
				continue
			}
			p := model.Vec2{X: x, Y: y}
			if g.At(p) != nil {
				continue
			}
			if err := g.Seed(p, f.Good, f.Cap, f.Cap); err == nil {
				n++
			}
		}
	}
	return n
}

func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency float64) float64 {
	total, amp, norm := 0.0, 1.0, 0.0
	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amp
		norm += amp
		amp *= 0.5
		frequency *= 2
	}
	return total / norm
}
