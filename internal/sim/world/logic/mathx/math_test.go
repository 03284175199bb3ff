package mathx

import "testing"

func TestFloorDiv(t *testing.T) {
	cases := []struct{ a, b, want int }{
		{7, 2, 3},
		{-7, 2, -4},
		{-8, 4, -2},
		{0, 5, 0},
	}
	for _, c := range cases {
		if got := FloorDiv(c.a, c.b); got != c.want {
			t.Fatalf("FloorDiv(%d,%d)=%d want %d", c.a, c.b, got, c.want)
		}
	}
}

func TestRoundDiv(t *testing.T) {
	cases := []struct{ sum, n, want int }{
		{10, 4, 3}, // 2.5 rounds up
		{9, 4, 2},  // 2.25
		{11, 4, 3}, // 2.75
		{-10, 4, -3},
		{50, 5, 10},
	}
	for _, c := range cases {
		if got := RoundDiv(c.sum, c.n); got != c.want {
			t.Fatalf("RoundDiv(%d,%d)=%d want %d", c.sum, c.n, got, c.want)
		}
	}
}

func TestManhattan(t *testing.T) {
	if got := Manhattan(1, 2, 4, -2); got != 7 {
		t.Fatalf("Manhattan=%d want 7", got)
	}
}

func TestHashStable(t *testing.T) {
	if Hash2(42, 3, 4) != Hash2(42, 3, 4) {
		t.Fatalf("Hash2 not stable")
	}
	if HashString(1, "A") == HashString(1, "B") {
		t.Fatalf("HashString collision on distinct goods")
	}
}
