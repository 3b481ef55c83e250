package world

import "github.com/seve42/CodingSnake/grid"

// OccupancyIndex maps a cell to the number of live snake bodies
// occupying it. It is maintained incrementally by the tick driver from
// each Snake.Move's MoveResult, and rebuilt from scratch whenever the
// driver detects it has drifted from the authoritative bodies.
type OccupancyIndex struct {
	counts map[grid.Point]int
}

// NewOccupancyIndex builds an empty index.
func NewOccupancyIndex() *OccupancyIndex {
	return &OccupancyIndex{counts: make(map[grid.Point]int)}
}

// Count returns how many live bodies occupy p.
func (o *OccupancyIndex) Count(p grid.Point) int {
	return o.counts[p]
}

// Occupied reports whether any live body occupies p.
func (o *OccupancyIndex) Occupied(p grid.Point) bool {
	return o.counts[p] > 0
}

// Add increments the count at p.
func (o *OccupancyIndex) Add(p grid.Point) {
	o.counts[p]++
}

// Remove decrements the count at p, clamped at zero and pruning the
// entry once it reaches zero so the map doesn't grow unbounded.
func (o *OccupancyIndex) Remove(p grid.Point) {
	c, ok := o.counts[p]
	if !ok {
		return
	}
	if c <= 1 {
		delete(o.counts, p)
		return
	}
	o.counts[p] = c - 1
}

// Rebuild discards the current index and recomputes it from the live
// players' snakes. Used by the tick driver's self-healing path when an
// invariant check finds the incremental index has drifted from the
// bodies it is supposed to mirror.
func (o *OccupancyIndex) Rebuild(players []*Player) {
	o.counts = make(map[grid.Point]int)
	for _, p := range players {
		if p.Snake == nil || !p.Snake.Alive() {
			continue
		}
		for cell := range p.Snake.CellSet() {
			o.counts[cell]++
		}
	}
}

// Consistent reports whether the index's total occupied-cell count
// matches the sum of live snake lengths — a cheap structural sanity
// check the driver runs once per tick, after food maintenance, to decide
// whether to rebuild the index.
func (o *OccupancyIndex) Consistent(players []*Player) bool {
	want := 0
	for _, p := range players {
		if p.Snake != nil && p.Snake.Alive() {
			want += p.Snake.Length()
		}
	}
	got := 0
	for _, c := range o.counts {
		got += c
	}
	return want == got
}
