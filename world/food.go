package world

import "github.com/seve42/CodingSnake/grid"

// Food is a single edible cell. The food registry (FoodSet) guarantees
// at most one Food per position.
type Food struct {
	Position grid.Point `json:"position"`
}

// FoodSet is a position-indexed, duplicate-free collection of Food.
// order lists the positions for full-view listing (insertion order until
// a Remove swaps the last entry into the gap); index gives O(1)
// lookup/removal by position.
type FoodSet struct {
	order []grid.Point
	index map[grid.Point]int
}

// NewFoodSet builds an empty registry.
func NewFoodSet() *FoodSet {
	return &FoodSet{index: make(map[grid.Point]int)}
}

// Has reports whether a food currently sits at p.
func (f *FoodSet) Has(p grid.Point) bool {
	_, ok := f.index[p]
	return ok
}

// Add inserts a food at p. A no-op if one is already there.
func (f *FoodSet) Add(p grid.Point) bool {
	if f.Has(p) {
		return false
	}
	f.index[p] = len(f.order)
	f.order = append(f.order, p)
	return true
}

// Remove deletes the food at p, if any, compacting the order slice by
// swap-removal (O(1), order among remaining foods is not preserved —
// acceptable since full-view listing order is not spec-significant).
func (f *FoodSet) Remove(p grid.Point) bool {
	i, ok := f.index[p]
	if !ok {
		return false
	}
	last := len(f.order) - 1
	f.order[i] = f.order[last]
	f.index[f.order[i]] = i
	f.order = f.order[:last]
	delete(f.index, p)
	return true
}

// Len returns the current food count.
func (f *FoodSet) Len() int { return len(f.order) }

// Positions returns a copy of all food positions. Safe for the caller
// to retain.
func (f *FoodSet) Positions() []grid.Point {
	out := make([]grid.Point, len(f.order))
	copy(out, f.order)
	return out
}
