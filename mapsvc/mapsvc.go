// Package mapsvc implements safe-spawn search, collision classification,
// and food generation against the world's occupancy.
package mapsvc

import (
	"math/rand"

	"github.com/seve42/CodingSnake/grid"
	"github.com/seve42/CodingSnake/world"
)

// CollisionType is the result of classifying a snake's proposed step.
type CollisionType int

const (
	CollisionNone CollisionType = iota
	CollisionWall
	CollisionSelf
	CollisionOtherSnake
)

// Service holds the arena bounds and its own random source. It has no
// other state — callers pass the live players/occupancy in on every
// call; the only thing this service carries across calls is the RNG.
type Service struct {
	bounds grid.Bounds
	rng    *rand.Rand
}

// New builds a Service for a width x height arena.
func New(width, height int, rng *rand.Rand) *Service {
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	return &Service{bounds: grid.Bounds{Width: width, Height: height}, rng: rng}
}

// Bounds returns the arena's width/height.
func (s *Service) Bounds() grid.Bounds { return s.bounds }

// IsValidPosition reports whether p is in-bounds.
func (s *Service) IsValidPosition(p grid.Point) bool {
	return s.bounds.Contains(p)
}

// RandomSafeSpawn samples a cell uniformly at random within the
// shrunk rectangle [safeRadius, W-1-safeRadius] x [safeRadius,
// H-1-safeRadius]; if that rectangle is empty it falls back to the
// full grid. A candidate is accepted only if it and every cell in its
// (2*safeRadius+1) square are free of any live body. Returns
// grid.NullPoint on failure.
func (s *Service) RandomSafeSpawn(players []*world.Player, safeRadius int) grid.Point {
	if safeRadius < 0 {
		safeRadius = 0
	}
	if s.bounds.Width <= 0 || s.bounds.Height <= 0 {
		return grid.NullPoint
	}

	totalCells := s.bounds.Area()
	floor := totalCells / 10
	if floor < 100 {
		floor = 100
	}
	maxAttempts := totalCells
	if floor < maxAttempts {
		maxAttempts = floor
	}

	minX, maxX := safeRadius, s.bounds.Width-1-safeRadius
	minY, maxY := safeRadius, s.bounds.Height-1-safeRadius
	if minX > maxX || minY > maxY {
		minX, maxX = 0, s.bounds.Width-1
		minY, maxY = 0, s.bounds.Height-1
	}
	if minX > maxX || minY > maxY {
		return grid.NullPoint
	}

	occupied := collectOccupied(players)

	for attempt := 0; attempt < maxAttempts; attempt++ {
		candidate := grid.NewPoint(minX+s.rng.Intn(maxX-minX+1), minY+s.rng.Intn(maxY-minY+1))
		if s.IsValidPosition(candidate) && isSafeArea(candidate, safeRadius, s.bounds, occupied) {
			return candidate
		}
	}
	return grid.NullPoint
}

func collectOccupied(players []*world.Player) map[grid.Point]struct{} {
	occ := make(map[grid.Point]struct{})
	for _, p := range players {
		if p == nil || !p.InGame || p.Snake == nil || !p.Snake.Alive() {
			continue
		}
		for _, c := range p.Snake.Body() {
			occ[c] = struct{}{}
		}
	}
	return occ
}

func isSafeArea(center grid.Point, radius int, bounds grid.Bounds, occupied map[grid.Point]struct{}) bool {
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			p := grid.NewPoint(center.X+dx, center.Y+dy)
			if !bounds.Contains(p) {
				continue
			}
			if _, hit := occupied[p]; hit {
				return false
			}
		}
	}
	return true
}

// ClassifyCollision checks wall, then self-body (excluding head), then
// any other live snake's body, against the pre-move world. Invincibility
// does not affect classification; only the driver decides whether a
// classification becomes a death.
func (s *Service) ClassifyCollision(player *world.Player, newHead grid.Point, allPlayers []*world.Player) CollisionType {
	if !s.IsValidPosition(newHead) {
		return CollisionWall
	}
	if player.Snake.CollidesWithSelf(newHead) {
		return CollisionSelf
	}
	for _, other := range allPlayers {
		if other == nil || other.ID == player.ID {
			continue
		}
		if !other.InGame || other.Snake == nil || !other.Snake.Alive() {
			continue
		}
		if other.Snake.CollidesWithBody(newHead) {
			return CollisionOtherSnake
		}
	}
	return CollisionNone
}

// GenerateFood uniformly samples up to count new cells, rejecting cells
// already in existingFoods, already produced in this call, or present
// in occupancy. Retries up to 100 times per food. Requests for more
// than half the grid are clamped to half the grid.
func (s *Service) GenerateFood(count int, occupancy *world.OccupancyIndex, existingFoods *world.FoodSet) []grid.Point {
	if count <= 0 || s.bounds.Width <= 0 || s.bounds.Height <= 0 {
		return nil
	}

	totalCells := s.bounds.Area()
	if count > totalCells/2 {
		count = totalCells / 2
		if count < 1 {
			count = 1
		}
	}

	const maxAttemptsPerFood = 100
	generated := make(map[grid.Point]struct{}, count)
	out := make([]grid.Point, 0, count)

	for i := 0; i < count; i++ {
		for attempt := 0; attempt < maxAttemptsPerFood; attempt++ {
			candidate := grid.NewPoint(s.rng.Intn(s.bounds.Width), s.rng.Intn(s.bounds.Height))
			if _, dup := generated[candidate]; dup {
				continue
			}
			if existingFoods.Has(candidate) {
				continue
			}
			if occupancy.Occupied(candidate) {
				continue
			}
			generated[candidate] = struct{}{}
			out = append(out, candidate)
			break
		}
	}
	return out
}

// GenerateByDensity generates round(density * W * H) foods, clamping
// density to [0, 1] first.
func (s *Service) GenerateByDensity(density float64, occupancy *world.OccupancyIndex, existingFoods *world.FoodSet) []grid.Point {
	if density < 0 {
		density = 0
	}
	if density > 1 {
		density = 1
	}
	count := int(density*float64(s.bounds.Area()) + 0.5)
	return s.GenerateFood(count, occupancy, existingFoods)
}
