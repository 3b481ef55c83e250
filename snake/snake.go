// Package snake implements the per-player body: a head-indexed deque of
// cells with a parallel occupancy set, grown and moved one round at a
// time by the tick driver.
package snake

import (
	"errors"

	"github.com/seve42/CodingSnake/grid"
)

// ErrInvalidLength is returned by New when initialLength < 1.
var ErrInvalidLength = errors.New("snake: initial length must be at least 1")

// MoveResult reports what a move changed, so the driver can update the
// global occupancy index in O(1) instead of rescanning the body.
type MoveResult struct {
	Moved       bool
	NewHead     grid.Point
	TailRemoved bool
	RemovedTail grid.Point
}

// Snake is one player's body. Body[0] is always the head. cellSet
// mirrors body for O(1) membership queries; the two are kept in sync by
// every mutating method, never by the caller.
type Snake struct {
	body      []grid.Point
	cellSet   map[grid.Point]struct{}
	direction grid.Direction
	invincibleRounds int
	alive     bool
	growthPending int
}

// New creates a snake with its head at head and a target length of
// initialLength. The body starts at length 1; the remaining
// (initialLength-1) cells are granted as pending growth so the first
// few moves extend the tail naturally instead of moving it.
func New(head grid.Point, initialLength int) (*Snake, error) {
	if initialLength < 1 {
		return nil, ErrInvalidLength
	}
	s := &Snake{
		body:          []grid.Point{head},
		cellSet:       map[grid.Point]struct{}{head: {}},
		direction:     grid.None,
		alive:         true,
		growthPending: initialLength - 1,
	}
	return s, nil
}

// Alive reports whether the snake has not been killed.
func (s *Snake) Alive() bool { return s.alive }

// Head returns the current head cell. Callers must check Alive first;
// calling Head on a dead snake returns the zero Point.
func (s *Snake) Head() grid.Point {
	if len(s.body) == 0 {
		return grid.Point{}
	}
	return s.body[0]
}

// Body returns the snake's cells, head first. The slice is owned by the
// snake; callers must not mutate it.
func (s *Snake) Body() []grid.Point { return s.body }

// Length returns the current body length.
func (s *Snake) Length() int { return len(s.body) }

// Direction returns the current heading.
func (s *Snake) Direction() grid.Direction { return s.direction }

// InvincibleRounds returns the remaining invincibility counter.
func (s *Snake) InvincibleRounds() int { return s.invincibleRounds }

// SetInvincibleRounds sets the invincibility counter directly.
func (s *Snake) SetInvincibleRounds(rounds int) {
	if rounds < 0 {
		rounds = 0
	}
	s.invincibleRounds = rounds
}

// DecreaseInvincibleRounds decrements the counter, floored at zero.
func (s *Snake) DecreaseInvincibleRounds() {
	if s.invincibleRounds > 0 {
		s.invincibleRounds--
	}
}

// SetDirection records d as the heading for the next move. A request to
// reverse into the current heading is silently ignored once a heading
// has been established (current != NONE).
func (s *Snake) SetDirection(d grid.Direction) {
	if s.direction != grid.None && grid.IsOpposite(s.direction, d) {
		return
	}
	s.direction = d
}

// Grow increments the pending-growth counter; the next Move retains the
// tail instead of dropping it.
func (s *Snake) Grow() {
	s.growthPending++
}

// Move advances the snake one cell in its current direction. It is a
// no-op if the snake is dead or has no heading yet.
func (s *Snake) Move() MoveResult {
	var result MoveResult
	if !s.alive || s.direction == grid.None {
		return result
	}

	newHead := s.Head().Step(s.direction)
	result.Moved = true
	result.NewHead = newHead

	if s.growthPending > 0 {
		s.body = append([]grid.Point{newHead}, s.body...)
		s.cellSet[newHead] = struct{}{}
		s.growthPending--
		result.TailRemoved = false
		return result
	}

	tail := s.body[len(s.body)-1]
	s.body = s.body[:len(s.body)-1]
	delete(s.cellSet, tail)

	s.body = append([]grid.Point{newHead}, s.body...)
	s.cellSet[newHead] = struct{}{}

	result.TailRemoved = true
	result.RemovedTail = tail
	return result
}

// UndoMove reverses the effect of the most recent Move call described by
// result. Used when a later collision check invalidates an
// already-committed step (the tick driver's second-pass head-on
// tie-break). result must be the value that Move just returned; calling
// this with any other value corrupts the body.
func (s *Snake) UndoMove(result MoveResult) {
	if !result.Moved || len(s.body) == 0 {
		return
	}
	delete(s.cellSet, s.body[0])
	s.body = s.body[1:]
	if result.TailRemoved {
		s.body = append(s.body, result.RemovedTail)
		s.cellSet[result.RemovedTail] = struct{}{}
		return
	}
	s.growthPending++
}

// CollidesWithSelf reports whether p is a body cell other than the
// current head — used when classifying a snake's own step against its
// pre-move body.
func (s *Snake) CollidesWithSelf(p grid.Point) bool {
	if len(s.body) <= 1 {
		return false
	}
	if p == s.body[0] {
		return false
	}
	_, ok := s.cellSet[p]
	return ok
}

// CollidesWithBody reports whether p is any body cell, head included —
// used when classifying another snake's step against this snake.
func (s *Snake) CollidesWithBody(p grid.Point) bool {
	_, ok := s.cellSet[p]
	return ok
}

// Kill clears the body and marks the snake dead. Once dead, a Snake is
// never revived; the owning player must start a new session.
func (s *Snake) Kill() {
	s.alive = false
	s.body = nil
	s.cellSet = make(map[grid.Point]struct{})
}

// CellSet exposes the occupancy set for callers that need to rebuild a
// global occupancy index from scratch (self-healing path in the tick
// driver). The returned map is owned by the snake; callers must not
// mutate it.
func (s *Snake) CellSet() map[grid.Point]struct{} { return s.cellSet }
