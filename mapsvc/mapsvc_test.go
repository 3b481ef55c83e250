package mapsvc

import (
	"math/rand"
	"testing"

	"github.com/seve42/CodingSnake/grid"
	"github.com/seve42/CodingSnake/world"
)

func TestRandomSafeSpawnFallsBackToFullMap(t *testing.T) {
	// A 3x3 map with safeRadius 5 makes the shrunk rectangle empty; the
	// implementation must fall back to sampling the whole grid.
	svc := New(3, 3, rand.New(rand.NewSource(42)))
	p := svc.RandomSafeSpawn(nil, 5)
	if p.IsNull() {
		t.Fatal("expected a fallback spawn, got null point")
	}
	if !svc.IsValidPosition(p) {
		t.Fatalf("fallback spawn %v out of bounds", p)
	}
}

func TestGenerateFoodClampsToHalfGrid(t *testing.T) {
	svc := New(4, 4, rand.New(rand.NewSource(1)))
	occ := world.NewOccupancyIndex()
	existing := world.NewFoodSet()
	foods := svc.GenerateFood(100, occ, existing)
	if len(foods) > 8 {
		t.Fatalf("expected at most half of 16 cells (8), got %d", len(foods))
	}
}

func TestClassifyCollisionOrder(t *testing.T) {
	svc := New(5, 5, rand.New(rand.NewSource(1)))
	p := world.NewPlayer("u1", "p_u1_a", "a", "#fff")
	_ = p.InitSnake(grid.NewPoint(2, 2), 1)
	p.InGame = true

	// wall check wins regardless of body state
	if got := svc.ClassifyCollision(p, grid.NewPoint(-1, 2), nil); got != CollisionWall {
		t.Fatalf("expected WALL, got %v", got)
	}
}
