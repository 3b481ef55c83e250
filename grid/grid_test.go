package grid

import "testing"

func TestStepMovesOneCellPerDirection(t *testing.T) {
	p := NewPoint(2, 2)
	cases := []struct {
		dir  Direction
		want Point
	}{
		{Up, NewPoint(2, 1)},
		{Down, NewPoint(2, 3)},
		{Left, NewPoint(1, 2)},
		{Right, NewPoint(3, 2)},
		{None, NewPoint(2, 2)},
	}
	for _, c := range cases {
		if got := p.Step(c.dir); got != c.want {
			t.Errorf("Step(%v) = %v, want %v", c.dir, got, c.want)
		}
	}
}

func TestIsAdjacent4(t *testing.T) {
	p := NewPoint(2, 2)
	if !p.IsAdjacent4(NewPoint(3, 2)) {
		t.Error("expected horizontally adjacent cells to be adjacent")
	}
	if !p.IsAdjacent4(NewPoint(2, 1)) {
		t.Error("expected vertically adjacent cells to be adjacent")
	}
	if p.IsAdjacent4(NewPoint(3, 3)) {
		t.Error("diagonal cells must not count as adjacent")
	}
	if p.IsAdjacent4(p) {
		t.Error("a point must not be adjacent to itself")
	}
}

func TestLessOrdersByXThenY(t *testing.T) {
	if !NewPoint(1, 5).Less(NewPoint(2, 0)) {
		t.Error("expected lower X to sort first regardless of Y")
	}
	if !NewPoint(1, 0).Less(NewPoint(1, 1)) {
		t.Error("expected equal X to fall back to Y")
	}
	if NewPoint(1, 1).Less(NewPoint(1, 1)) {
		t.Error("a point must not be Less than itself")
	}
}

func TestIsNull(t *testing.T) {
	if !NullPoint.IsNull() {
		t.Error("expected NullPoint to report null")
	}
	if NewPoint(0, 0).IsNull() {
		t.Error("origin must not be confused with the null sentinel")
	}
}

func TestBoundsContains(t *testing.T) {
	b := Bounds{Width: 5, Height: 5}
	if !b.Contains(NewPoint(0, 0)) || !b.Contains(NewPoint(4, 4)) {
		t.Error("expected the corners of a 5x5 grid to be contained")
	}
	if b.Contains(NewPoint(5, 0)) || b.Contains(NewPoint(-1, 0)) {
		t.Error("expected out-of-range coordinates to be rejected")
	}
}

func TestParseDirectionRoundTripsWithString(t *testing.T) {
	for _, d := range []Direction{Up, Down, Left, Right} {
		got, ok := ParseDirection(d.String())
		if !ok || got != d {
			t.Errorf("ParseDirection(%q) = (%v, %v), want (%v, true)", d.String(), got, ok, d)
		}
	}
}

func TestParseDirectionRejectsNone(t *testing.T) {
	if _, ok := ParseDirection("none"); ok {
		t.Error("expected \"none\" to be rejected, not parsed as a valid heading")
	}
}

func TestIsOppositeCoversBothAxes(t *testing.T) {
	if !IsOpposite(Up, Down) || !IsOpposite(Left, Right) {
		t.Error("expected UP/DOWN and LEFT/RIGHT to be opposite pairs")
	}
	if IsOpposite(Up, Left) {
		t.Error("perpendicular directions must not be opposite")
	}
	if IsOpposite(None, Up) {
		t.Error("None must not be considered opposite to anything")
	}
}
