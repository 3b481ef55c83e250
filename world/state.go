package world

import "github.com/seve42/CodingSnake/grid"

// State is the authoritative per-tick snapshot: the current round, the
// two timestamps, every live player session, and the food registry.
// State carries no lock of its own — the tick driver serializes all
// access to it behind the world reader/writer lock described in the
// spec's concurrency model; State is pure data.
type State struct {
	Round              int64
	TimestampMs        int64
	NextRoundTimestamp int64

	Players map[SessionID]*Player
	Foods   *FoodSet

	// Delta-tracking buffers. Cleared at the start of every tick by the
	// driver, then filled in as the tick resolves.
	JoinedPlayers []SessionID
	DiedPlayers   []SessionID
	AddedFoods    []grid.Point
	RemovedFoods  []grid.Point
}

// NewState builds an empty world ready for the first tick.
func NewState() *State {
	return &State{
		Players: make(map[SessionID]*Player),
		Foods:   NewFoodSet(),
	}
}

// AddPlayer registers a new session and records it in this tick's
// joined-players delta buffer.
func (s *State) AddPlayer(p *Player) {
	s.Players[p.ID] = p
	s.JoinedPlayers = append(s.JoinedPlayers, p.ID)
}

// RemovePlayer drops a session from the world without recording a
// death (used for explicit removal / reset, not in-round death).
func (s *State) RemovePlayer(id SessionID) {
	delete(s.Players, id)
}

// MarkDied removes a session from the world and records it in this
// tick's died-players delta buffer.
func (s *State) MarkDied(id SessionID) {
	delete(s.Players, id)
	s.DiedPlayers = append(s.DiedPlayers, id)
}

// LivePlayers returns every player currently in the world, ascending by
// SessionID — the deterministic order the tick driver's resolution
// pipeline requires.
func (s *State) LivePlayers() []*Player {
	out := make([]*Player, 0, len(s.Players))
	for _, p := range s.Players {
		out = append(out, p)
	}
	sortPlayersBySessionID(out)
	return out
}

func sortPlayersBySessionID(players []*Player) {
	// insertion sort is fine: player counts are small (tens to low
	// hundreds), and this runs once per tick.
	for i := 1; i < len(players); i++ {
		for j := i; j > 0 && players[j-1].ID > players[j].ID; j-- {
			players[j-1], players[j] = players[j], players[j-1]
		}
	}
}

// AddFood inserts a food and records it in this tick's added-foods
// delta buffer.
func (s *State) AddFood(p grid.Point) {
	if s.Foods.Add(p) {
		s.AddedFoods = append(s.AddedFoods, p)
	}
}

// RemoveFood deletes the food at p and records it in this tick's
// removed-foods delta buffer.
func (s *State) RemoveFood(p grid.Point) {
	if s.Foods.Remove(p) {
		s.RemovedFoods = append(s.RemovedFoods, p)
	}
}

// ClearDeltaTracking empties the four per-tick buffers; called at the
// start of every tick before resolution begins.
func (s *State) ClearDeltaTracking() {
	s.JoinedPlayers = nil
	s.DiedPlayers = nil
	s.AddedFoods = nil
	s.RemovedFoods = nil
}

// FullView is the snapshot returned to clients that request the full
// map: every player's full body, every food, no deltas.
type FullView struct {
	Round              int64          `json:"round"`
	TimestampMs        int64          `json:"timestamp"`
	NextRoundTimestamp int64          `json:"next_round_timestamp"`
	Players            []FullSnapshot `json:"players"`
	Foods              []grid.Point   `json:"foods"`
}

// DeltaView is the minimal per-tick update: players carry no body,
// joined players carry the full payload, died players are IDs only.
type DeltaView struct {
	Round              int64            `json:"round"`
	TimestampMs        int64            `json:"timestamp"`
	NextRoundTimestamp int64            `json:"next_round_timestamp"`
	Players            []PublicSnapshot `json:"players"`
	JoinedPlayers      []FullSnapshot   `json:"joined_players"`
	DiedPlayers        []string         `json:"died_players"`
	AddedFoods         []grid.Point     `json:"added_foods"`
	RemovedFoods       []grid.Point     `json:"removed_foods"`
}

// ToFullView renders the current state as a FullView.
func (s *State) ToFullView() FullView {
	players := s.LivePlayers()
	out := FullView{
		Round:              s.Round,
		TimestampMs:        s.TimestampMs,
		NextRoundTimestamp: s.NextRoundTimestamp,
		Players:            make([]FullSnapshot, 0, len(players)),
		Foods:              s.Foods.Positions(),
	}
	for _, p := range players {
		if p.Snake == nil || !p.Snake.Alive() {
			continue
		}
		out.Players = append(out.Players, p.ToFullSnapshot())
	}
	return out
}

// ToDeltaView renders the current state plus this tick's delta buffers
// as a DeltaView.
func (s *State) ToDeltaView() DeltaView {
	players := s.LivePlayers()
	out := DeltaView{
		Round:              s.Round,
		TimestampMs:        s.TimestampMs,
		NextRoundTimestamp: s.NextRoundTimestamp,
		Players:            make([]PublicSnapshot, 0, len(players)),
		AddedFoods:         s.AddedFoods,
		RemovedFoods:       s.RemovedFoods,
	}
	for _, p := range players {
		if p.Snake == nil || !p.Snake.Alive() {
			continue
		}
		out.Players = append(out.Players, p.ToPublicSnapshot())
	}
	for _, id := range s.JoinedPlayers {
		if p, ok := s.Players[id]; ok {
			out.JoinedPlayers = append(out.JoinedPlayers, p.ToFullSnapshot())
		}
	}
	for _, id := range s.DiedPlayers {
		out.DiedPlayers = append(out.DiedPlayers, string(id))
	}
	return out
}
