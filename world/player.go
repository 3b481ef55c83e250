// Package world owns the authoritative per-tick state: player sessions,
// their snakes, the food registry, and the delta-tracking buffers the
// tick driver clears and refills every round.
package world

import (
	"github.com/seve42/CodingSnake/grid"
	"github.com/seve42/CodingSnake/snake"
)

// SessionID identifies one in-game session, formatted "p_{uid}_{rand}".
type SessionID string

// Player is one game session: a stable account UID, a per-session
// display identity, and the embedded Snake the tick driver mutates.
// Other components never copy a Player: the identity directory and the
// world state share the same *Player, each keyed by its SessionID.
type Player struct {
	UID     string
	ID      SessionID
	Name    string
	Color   string
	Key     string
	Token   string
	Snake   *snake.Snake
	InGame  bool
}

// NewPlayer constructs a player with no snake yet; callers must call
// InitSnake before the player is usable in a round.
func NewPlayer(uid, id, name, color string) *Player {
	return &Player{
		UID:   uid,
		ID:    SessionID(id),
		Name:  name,
		Color: color,
	}
}

// InitSnake replaces the player's snake with a freshly spawned one.
func (p *Player) InitSnake(head grid.Point, initialLength int) error {
	s, err := snake.New(head, initialLength)
	if err != nil {
		return err
	}
	p.Snake = s
	return nil
}

// SetInGame flips the in-game flag; leaving the game kills the snake so
// no dead session lingers as if still playing.
func (p *Player) SetInGame(inGame bool) {
	p.InGame = inGame
	if !inGame && p.Snake != nil && p.Snake.Alive() {
		p.Snake.Kill()
	}
}

// PublicSnapshot is the per-tick payload used in the delta view's
// players[] list. Name/Color don't change round to round, so they
// travel once in joined_players[] (FullSnapshot) instead of being
// repeated on every tick.
type PublicSnapshot struct {
	ID               string     `json:"id"`
	Head             grid.Point `json:"head"`
	Direction        string     `json:"direction"`
	Length           int        `json:"length"`
	InvincibleRounds int        `json:"invincible_rounds"`
}

// FullSnapshot is the full-view payload: body cells included, no
// key/token.
type FullSnapshot struct {
	ID               string       `json:"id"`
	Name             string       `json:"name"`
	Color            string       `json:"color"`
	Head             grid.Point   `json:"head"`
	Blocks           []grid.Point `json:"blocks"`
	Direction        string       `json:"direction"`
	Length           int          `json:"length"`
	InvincibleRounds int          `json:"invincible_rounds"`
}

// ToPublicSnapshot flattens the player + snake into the wire shape used
// for per-tick player listings.
func (p *Player) ToPublicSnapshot() PublicSnapshot {
	snap := PublicSnapshot{ID: string(p.ID)}
	if p.Snake != nil && p.Snake.Alive() {
		snap.Head = p.Snake.Head()
		snap.Direction = p.Snake.Direction().String()
		snap.Length = p.Snake.Length()
		snap.InvincibleRounds = p.Snake.InvincibleRounds()
	}
	return snap
}

// ToFullSnapshot flattens the player + snake into the wire shape used
// for full-view and newly-joined player listings (body included).
func (p *Player) ToFullSnapshot() FullSnapshot {
	snap := FullSnapshot{ID: string(p.ID), Name: p.Name, Color: p.Color}
	if p.Snake != nil && p.Snake.Alive() {
		snap.Head = p.Snake.Head()
		body := p.Snake.Body()
		snap.Blocks = make([]grid.Point, len(body))
		copy(snap.Blocks, body)
		snap.Direction = p.Snake.Direction().String()
		snap.Length = p.Snake.Length()
		snap.InvincibleRounds = p.Snake.InvincibleRounds()
	}
	return snap
}
