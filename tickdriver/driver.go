// Package tickdriver runs the authoritative simulation loop: one
// goroutine advancing the world on a fixed period, resolving queued
// direction intents into movement, collisions, food, and deaths.
package tickdriver

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/seve42/CodingSnake/grid"
	"github.com/seve42/CodingSnake/identity"
	"github.com/seve42/CodingSnake/leaderboard"
	"github.com/seve42/CodingSnake/mapsvc"
	"github.com/seve42/CodingSnake/metrics"
	"github.com/seve42/CodingSnake/snake"
	"github.com/seve42/CodingSnake/world"
)

// Config carries the subset of the game config the driver needs. Round
// time and map size are structural and are not hot-reloaded here;
// FoodDensity can be changed later through SetFoodDensity.
type Config struct {
	RoundTime           time.Duration
	InvincibilityRounds int
	FoodDensity         float64
}

// Driver owns the world, the occupancy index, and the double-buffered
// intent queue, and runs the per-tick resolution algorithm.
type Driver struct {
	cfg Config

	worldMu sync.RWMutex
	state   *world.State
	occ     *world.OccupancyIndex

	intentMu sync.Mutex
	current  map[world.SessionID]grid.Direction
	pending  map[world.SessionID]grid.Direction

	identity *identity.Service
	mapsvc   *mapsvc.Service
	board    *leaderboard.Writer
	metrics  *metrics.Registry
	log      *zap.SugaredLogger

	stop chan struct{}
	done chan struct{}
}

// New builds a Driver over an empty world.
func New(cfg Config, ident *identity.Service, mapSvc *mapsvc.Service, board *leaderboard.Writer, reg *metrics.Registry, log *zap.SugaredLogger) *Driver {
	now := time.Now().UnixMilli()
	d := &Driver{
		cfg:      cfg,
		state:    world.NewState(),
		occ:      world.NewOccupancyIndex(),
		current:  make(map[world.SessionID]grid.Direction),
		pending:  make(map[world.SessionID]grid.Direction),
		identity: ident,
		mapsvc:   mapSvc,
		board:    board,
		metrics:  reg,
		log:      log,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	d.state.TimestampMs = now
	d.state.NextRoundTimestamp = now + cfg.RoundTime.Milliseconds()
	return d
}

// SubmitIntent places a direction request for sessionID into the
// pending buffer. A request for a dead or unknown session is silently
// dropped at resolution time, not here — the driver doesn't hold the
// identity directory lock while the intent lock is held.
func (d *Driver) SubmitIntent(sessionID world.SessionID, dir grid.Direction) {
	d.intentMu.Lock()
	d.pending[sessionID] = dir
	d.intentMu.Unlock()
}

// Run drives the tick loop until ctx is cancelled or Stop is called,
// with an explicit stop channel instead of running forever.
func (d *Driver) Run(ctx context.Context) {
	defer close(d.done)
	ticker := time.NewTicker(d.cfg.RoundTime)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-d.stop:
			return
		case <-ticker.C:
			start := time.Now()
			d.tick()
			d.metrics.ObserveRoundDuration(time.Since(start))
		}
	}
}

// Stop signals Run to return and waits for it to finish.
func (d *Driver) Stop() {
	close(d.stop)
	<-d.done
}

func (d *Driver) tick() {
	d.worldMu.Lock()
	defer d.worldMu.Unlock()

	// step 2: swap intent buffers.
	d.intentMu.Lock()
	resolved := d.current
	d.current = d.pending
	d.pending = resolved
	for k := range resolved {
		delete(resolved, k)
	}
	intents := d.current
	d.intentMu.Unlock()

	// step 3: clear delta buffers.
	d.state.ClearDeltaTracking()

	players := d.state.LivePlayers()

	d.resolveDirections(players, intents)
	outcomes := d.resolveMovement(players)
	d.resolveHeadOnTieBreak(players, outcomes)
	d.finalizeFoodHooks(outcomes)
	d.decrementInvincibility(players)
	d.maintainFood()

	if !d.occ.Consistent(d.state.LivePlayers()) {
		d.logWarn("occupancy index drifted, rebuilding")
		d.occ.Rebuild(d.state.LivePlayers())
	}

	d.state.Round++
	nowMs := time.Now().UnixMilli()
	d.state.TimestampMs = nowMs
	d.state.NextRoundTimestamp = nowMs + d.cfg.RoundTime.Milliseconds()

	d.metrics.SetGauge("player_count", float64(len(d.state.Players)))
	d.metrics.SetGauge("food_count", float64(d.state.Foods.Len()))
}

// resolveDirections applies step 4: each live player's queued intent
// becomes its heading unless it's a reversal, which Snake.SetDirection
// already rejects on its own.
func (d *Driver) resolveDirections(players []*world.Player, intents map[world.SessionID]grid.Direction) {
	for _, p := range players {
		if p.Snake == nil || !p.Snake.Alive() {
			continue
		}
		if dir, ok := intents[p.ID]; ok {
			p.Snake.SetDirection(dir)
		}
	}
}

// moveOutcome records enough about one player's step to run the
// second-pass head-on tie-break after every move has committed, and to
// roll one back if that pass finds it collided into another head.
type moveOutcome struct {
	player          *world.Player
	newHead         grid.Point
	moved           bool
	diedAlready     bool
	moveResult      snake.MoveResult
	ateFood         bool
	ateFoodAt       grid.Point
	lengthAfterMove int
	rolledBack      bool
}

// resolveMovement implements step 5. Classification reads a snapshot
// of every body taken before any player in this tick has moved, so
// that a low-session-ID player committing its step first can never
// change what a later player in the same pass collides with.
func (d *Driver) resolveMovement(players []*world.Player) map[world.SessionID]*moveOutcome {
	snapshot := snapshotBodies(players)
	outcomes := make(map[world.SessionID]*moveOutcome, len(players))

	for _, p := range players {
		if p.Snake == nil || !p.Snake.Alive() {
			continue
		}
		if p.Snake.Direction() == grid.None {
			continue
		}
		newHead := p.Snake.Head().Step(p.Snake.Direction())
		class, owner := classifyAgainstSnapshot(d.mapsvc, p, newHead, snapshot)

		if class == mapsvc.CollisionNone {
			outcomes[p.ID] = d.commitMove(p, newHead)
			continue
		}

		if p.Snake.InvincibleRounds() > 0 {
			d.logWarn("invincible collision absorbed, step rejected")
			outcomes[p.ID] = &moveOutcome{player: p, newHead: newHead, moved: false}
			continue
		}

		d.killPlayer(p)
		outcomes[p.ID] = &moveOutcome{player: p, newHead: newHead, moved: false, diedAlready: true}
		if class == mapsvc.CollisionOtherSnake && owner != nil && owner.Snake.InvincibleRounds() == 0 {
			d.creditKill(owner)
		}
	}
	return outcomes
}

// snapshotBodies captures which session owns each occupied cell at the
// start of the movement pass, for pre-move collision classification.
func snapshotBodies(players []*world.Player) map[grid.Point]*world.Player {
	snapshot := make(map[grid.Point]*world.Player)
	for _, p := range players {
		if p.Snake == nil || !p.Snake.Alive() || !p.InGame {
			continue
		}
		for cell := range p.Snake.CellSet() {
			snapshot[cell] = p
		}
	}
	return snapshot
}

// classifyAgainstSnapshot mirrors mapsvc.Service.ClassifyCollision's
// wall/self/other-snake ordering, but checks other-snake membership
// against the frozen pre-move snapshot instead of live bodies.
func classifyAgainstSnapshot(m *mapsvc.Service, p *world.Player, newHead grid.Point, snapshot map[grid.Point]*world.Player) (mapsvc.CollisionType, *world.Player) {
	if !m.IsValidPosition(newHead) {
		return mapsvc.CollisionWall, nil
	}
	if p.Snake.CollidesWithSelf(newHead) {
		return mapsvc.CollisionSelf, nil
	}
	if owner, ok := snapshot[newHead]; ok && owner.ID != p.ID {
		return mapsvc.CollisionOtherSnake, owner
	}
	return mapsvc.CollisionNone, nil
}

// commitMove steps p onto newHead. A snake landing on food grows on
// this same move — Grow is called before Move so Move's own
// pending-growth check retains the tail on the move that ate the food,
// not the next one — and the leaderboard credit for it is deferred to
// finalizeFoodHooks in case the second-pass tie-break rolls this move
// back.
func (d *Driver) commitMove(p *world.Player, newHead grid.Point) *moveOutcome {
	ateFood := d.state.Foods.Has(newHead)
	if ateFood {
		p.Snake.Grow()
	}

	result := p.Snake.Move()
	outcome := &moveOutcome{player: p, newHead: newHead, moveResult: result, moved: result.Moved}
	if !result.Moved {
		return outcome
	}

	d.occ.Add(result.NewHead)
	if result.TailRemoved {
		d.occ.Remove(result.RemovedTail)
	}

	if ateFood {
		d.state.RemoveFood(newHead)
		outcome.ateFood = true
		outcome.ateFoodAt = newHead
	}
	outcome.lengthAfterMove = p.Snake.Length()
	return outcome
}

func (d *Driver) killPlayer(p *world.Player) {
	if p.Snake != nil {
		for cell := range p.Snake.CellSet() {
			d.occ.Remove(cell)
		}
		p.Snake.Kill()
	}
	d.state.MarkDied(p.ID)
	if d.identity != nil {
		d.identity.RemoveSession(p.ID)
	}
	if d.board != nil {
		d.board.OnDeath(p.ID, p.UID, p.Name, d.state.Round, d.state.TimestampMs)
		d.board.ForgetSession(p.ID)
	}
}

func (d *Driver) creditKill(killer *world.Player) {
	if d.board != nil {
		d.board.OnKillCredited(killer.UID, killer.Name, d.state.TimestampMs)
	}
}

// resolveHeadOnTieBreak runs the second collision pass: after every move
// has committed, any two surviving heads that now occupy the same cell
// collide. A non-invincible member of the tie dies outright; an
// invincible member instead has its step rejected — its committed move
// is rolled back to where it stood before this tick, which is what
// keeps two live snakes from ever sharing one cell (I1) even when
// neither side can be killed.
func (d *Driver) resolveHeadOnTieBreak(players []*world.Player, outcomes map[world.SessionID]*moveOutcome) {
	heads := make(map[grid.Point][]*world.Player)
	for _, p := range players {
		if p.Snake == nil || !p.Snake.Alive() {
			continue
		}
		heads[p.Snake.Head()] = append(heads[p.Snake.Head()], p)
	}
	for _, group := range heads {
		if len(group) < 2 {
			continue
		}
		for _, p := range group {
			if p.Snake.InvincibleRounds() > 0 {
				d.rollbackMove(p, outcomes[p.ID])
				continue
			}
			d.killPlayer(p)
		}
	}
}

// rollbackMove undoes a committed step once the second-pass tie-break
// finds it collided into another head: the move, the occupancy index
// update, and any food eaten on that step are all reverted, leaving p
// exactly where it stood at the start of the tick.
func (d *Driver) rollbackMove(p *world.Player, outcome *moveOutcome) {
	if outcome == nil || !outcome.moved || outcome.rolledBack {
		return
	}
	p.Snake.UndoMove(outcome.moveResult)
	d.occ.Remove(outcome.moveResult.NewHead)
	if outcome.moveResult.TailRemoved {
		d.occ.Add(outcome.moveResult.RemovedTail)
	}
	if outcome.ateFood {
		d.state.AddFood(outcome.ateFoodAt)
	}
	outcome.rolledBack = true
}

// finalizeFoodHooks credits the leaderboard for every food-eating move
// that survived the tie-break pass without being rolled back.
func (d *Driver) finalizeFoodHooks(outcomes map[world.SessionID]*moveOutcome) {
	if d.board == nil {
		return
	}
	for _, outcome := range outcomes {
		if outcome.ateFood && !outcome.rolledBack {
			d.board.OnFoodEaten(outcome.player.UID, outcome.player.Name, outcome.lengthAfterMove, d.state.TimestampMs)
		}
	}
}

func (d *Driver) decrementInvincibility(players []*world.Player) {
	for _, p := range players {
		if p.Snake != nil && p.Snake.Alive() {
			p.Snake.DecreaseInvincibleRounds()
		}
	}
}

// maintainFood implements step 7: top the food count up to the
// density target using the live occupancy index.
func (d *Driver) maintainFood() {
	bounds := d.mapsvc.Bounds()
	target := int(d.cfg.FoodDensity*float64(bounds.Area()) + 0.5)
	deficit := target - d.state.Foods.Len()
	if deficit <= 0 {
		return
	}
	for _, p := range d.mapsvc.GenerateFood(deficit, d.occ, d.state.Foods) {
		d.state.AddFood(p)
	}
}

// SetFoodDensity updates the target food density applied by the next
// tick's maintainFood call. Safe to call concurrently with Run; it
// takes the same lock the tick loop holds while reading d.cfg.
func (d *Driver) SetFoodDensity(density float64) {
	d.worldMu.Lock()
	defer d.worldMu.Unlock()
	d.cfg.FoodDensity = density
}

// AddPlayer registers a freshly joined player into the world, adding
// its body to the occupancy index and the join delta buffer. Called by
// the game service outside of a tick, under the driver's write lock.
func (d *Driver) AddPlayer(p *world.Player) {
	d.worldMu.Lock()
	defer d.worldMu.Unlock()
	d.state.AddPlayer(p)
	if p.Snake != nil {
		p.Snake.SetInvincibleRounds(d.cfg.InvincibilityRounds)
		for cell := range p.Snake.CellSet() {
			d.occ.Add(cell)
		}
	}
}

// Status returns the values the status() operation needs.
func (d *Driver) Status() (mapWidth, mapHeight int, roundTimeMs int64, round int64, playerCount int) {
	d.worldMu.RLock()
	defer d.worldMu.RUnlock()
	b := d.mapsvc.Bounds()
	return b.Width, b.Height, d.cfg.RoundTime.Milliseconds(), d.state.Round, len(d.state.Players)
}

// FullView takes the world's shared lock and renders a full snapshot.
func (d *Driver) FullView() world.FullView {
	d.worldMu.RLock()
	defer d.worldMu.RUnlock()
	return d.state.ToFullView()
}

// DeltaView takes the world's shared lock and renders the current
// tick's delta snapshot.
func (d *Driver) DeltaView() world.DeltaView {
	d.worldMu.RLock()
	defer d.worldMu.RUnlock()
	return d.state.ToDeltaView()
}

// Round returns the current round number under the shared lock, used
// by callers deciding whether to request a full view instead of a
// delta (a jump of more than one round since their last delta).
func (d *Driver) Round() int64 {
	d.worldMu.RLock()
	defer d.worldMu.RUnlock()
	return d.state.Round
}

func (d *Driver) logWarn(msg string) {
	if d.log != nil {
		d.log.Warn(msg)
	}
}
