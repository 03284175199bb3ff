package movement

import "econgrid.ai/internal/sim/world/kernel/model"

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// PrimaryAxis reports whether the next step goes along x. The larger delta
// wins; on a tie the axis with a negative direction wins, x when both or neither are.
func PrimaryAxis(dx, dy int) bool {
	if abs(dx) != abs(dy) {
		return abs(dx) > abs(dy)
	}
	if dx < 0 && dy >= 0 {
		return true
	}
	if dy < 0 && dx >= 0 {
		return false
	}
	return true
}

// NextStep moves one cell from cur toward target. cur == target yields cur.
func NextStep(cur, target model.Vec2) model.Vec2 {
	dx, dy := target.X-cur.X, target.Y-cur.Y
	if dx == 0 && dy == 0 {
		return cur
	}
	if PrimaryAxis(dx, dy) {
		if dx > 0 {
			return cur.Add(1, 0)
		}
		return cur.Add(-1, 0)
	}
	if dy > 0 {
		return cur.Add(0, 1)
	}
	return cur.Add(0, -1)
}
