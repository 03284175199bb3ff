package mathx

func FloorDiv(a, b int) int {
	// b > 0
	q := a / b
	r := a % b
	if r < 0 {
		q--
	}
	return q
}

func AbsInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func ClampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Manhattan is the grid distance used everywhere in the simulation.
func Manhattan(ax, ay, bx, by int) int {
	return AbsInt(ax-bx) + AbsInt(ay-by)
}

// RoundDiv divides sum by n rounding half away from zero. n > 0.
func RoundDiv(sum, n int) int {
	if sum >= 0 {
		return (2*sum + n) / (2 * n)
	}
	return -((-2*sum + n) / (2 * n))
}

func mix64(z uint64) uint64 {
	z += 0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

// Hash2 mixes a seed with a grid coordinate. Used to derive per-good noise seeds.
func Hash2(seed int64, x, y int) uint64 {
	ux := uint64(uint32(int32(x)))
	uy := uint64(uint32(int32(y)))
	v := uint64(seed) ^ (ux * 0x9e3779b97f4a7c15) ^ (uy * 0xbf58476d1ce4e5b9)
	return mix64(v)
}

// HashString folds s into a seed (FNV-1a then mixed).
func HashString(seed int64, s string) uint64 {
	h := uint64(14695981039346656037)
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= 1099511628211
	}
	return mix64(h ^ uint64(seed))
}
