package snake

import (
	"testing"

	"github.com/seve42/CodingSnake/grid"
)

func TestNewRejectsZeroLength(t *testing.T) {
	if _, err := New(grid.NewPoint(0, 0), 0); err == nil {
		t.Fatal("expected error for initialLength 0")
	}
}

func TestGrowthOnInit(t *testing.T) {
	s, err := New(grid.NewPoint(4, 4), 3)
	if err != nil {
		t.Fatal(err)
	}
	if s.Length() != 1 {
		t.Fatalf("expected initial length 1, got %d", s.Length())
	}
	s.SetDirection(grid.Right)
	for i := 0; i < 2; i++ {
		res := s.Move()
		if !res.Moved {
			t.Fatalf("move %d should have moved", i)
		}
		if res.TailRemoved {
			t.Fatalf("move %d should retain tail while growth pending", i)
		}
	}
	if s.Length() != 3 {
		t.Fatalf("expected length 3 after two growth moves, got %d", s.Length())
	}
	// fourth cell onward should start dropping the tail.
	res := s.Move()
	if !res.TailRemoved {
		t.Fatal("expected tail removal once growth is exhausted")
	}
	if s.Length() != 3 {
		t.Fatalf("expected length to stay at 3, got %d", s.Length())
	}
}

func TestSetDirectionRejectsOpposite(t *testing.T) {
	s, _ := New(grid.NewPoint(5, 5), 1)
	s.SetDirection(grid.Right)
	s.SetDirection(grid.Left)
	if s.Direction() != grid.Right {
		t.Fatalf("expected direction to remain RIGHT, got %v", s.Direction())
	}
}

func TestCollisionHelpers(t *testing.T) {
	s, _ := New(grid.NewPoint(2, 2), 3)
	s.SetDirection(grid.Right)
	s.Move()
	s.Move()
	head := s.Head()
	if s.CollidesWithSelf(head) {
		t.Fatal("head should never collide with self")
	}
	body := s.Body()
	tail := body[len(body)-1]
	if !s.CollidesWithSelf(tail) {
		t.Fatal("tail cell should collide with self")
	}
	if !s.CollidesWithBody(head) {
		t.Fatal("collidesWithBody must include the head")
	}
}

func TestKillClearsBody(t *testing.T) {
	s, _ := New(grid.NewPoint(0, 0), 2)
	s.Kill()
	if s.Alive() {
		t.Fatal("expected dead snake")
	}
	if s.Length() != 0 {
		t.Fatalf("expected empty body after kill, got length %d", s.Length())
	}
	if s.Move().Moved {
		t.Fatal("dead snake must not move")
	}
}

func TestUndoMoveRestoresTailDroppingMove(t *testing.T) {
	s, _ := New(grid.NewPoint(2, 2), 1)
	s.SetDirection(grid.Right)

	before := append([]grid.Point{}, s.Body()...)
	result := s.Move()
	if !result.TailRemoved {
		t.Fatal("expected this move to drop the tail")
	}

	s.UndoMove(result)
	if s.Head() != before[0] {
		t.Fatalf("expected head restored to %v, got %v", before[0], s.Head())
	}
	if s.Length() != len(before) {
		t.Fatalf("expected length restored to %d, got %d", len(before), s.Length())
	}
	if s.CollidesWithSelf(result.NewHead) || s.CollidesWithBody(result.NewHead) {
		t.Fatal("expected the undone new head cell to no longer be occupied")
	}
}

func TestUndoMoveRestoresPendingGrowth(t *testing.T) {
	s, _ := New(grid.NewPoint(2, 2), 2) // growthPending starts at 1
	s.SetDirection(grid.Right)

	result := s.Move()
	if result.TailRemoved {
		t.Fatal("expected the first move to retain the tail via pending growth")
	}
	if s.Length() != 2 {
		t.Fatalf("expected length 2 after the growth move, got %d", s.Length())
	}

	s.UndoMove(result)
	if s.Length() != 1 {
		t.Fatalf("expected length restored to 1, got %d", s.Length())
	}
	if s.Head() != grid.NewPoint(2, 2) {
		t.Fatalf("expected head restored to (2,2), got %v", s.Head())
	}

	// The undone growth credit must still be there for the next move.
	res := s.Move()
	if res.TailRemoved {
		t.Fatal("expected the restored pending growth to retain the tail again")
	}
}

func TestInvincibilityDecrement(t *testing.T) {
	s, _ := New(grid.NewPoint(0, 0), 1)
	s.SetInvincibleRounds(2)
	s.DecreaseInvincibleRounds()
	if s.InvincibleRounds() != 1 {
		t.Fatalf("expected 1, got %d", s.InvincibleRounds())
	}
	s.DecreaseInvincibleRounds()
	s.DecreaseInvincibleRounds()
	if s.InvincibleRounds() != 0 {
		t.Fatalf("expected floor at 0, got %d", s.InvincibleRounds())
	}
}
