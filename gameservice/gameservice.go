// Package gameservice is the request adapter surface the transport
// layer calls into: status, login, join, move, map reads, and the
// leaderboard read, each taking context.Context first so deadlines
// propagate through to the credential oracle.
package gameservice

import (
	"context"

	"go.uber.org/zap"

	"github.com/seve42/CodingSnake/apperr"
	"github.com/seve42/CodingSnake/grid"
	"github.com/seve42/CodingSnake/identity"
	"github.com/seve42/CodingSnake/leaderboard"
	"github.com/seve42/CodingSnake/mapsvc"
	"github.com/seve42/CodingSnake/tickdriver"
	"github.com/seve42/CodingSnake/world"
)

// Service wires the identity directory, map service, tick driver, and
// leaderboard writer into the seven operations the transport exposes.
type Service struct {
	identity *identity.Service
	mapsvc   *mapsvc.Service
	driver   *tickdriver.Driver
	board    *leaderboard.Writer
	log      *zap.SugaredLogger
}

// New builds a Service over its already-constructed collaborators.
func New(ident *identity.Service, mapSvc *mapsvc.Service, driver *tickdriver.Driver, board *leaderboard.Writer, log *zap.SugaredLogger) *Service {
	return &Service{identity: ident, mapsvc: mapSvc, driver: driver, board: board, log: log}
}

// StatusResult is status()'s payload.
type StatusResult struct {
	MapWidth    int
	MapHeight   int
	RoundTimeMs int64
	Round       int64
	PlayerCount int
}

// Status reports the arena's current top-level shape.
func (s *Service) Status(ctx context.Context) StatusResult {
	w, h, roundTimeMs, round, count := s.driver.Status()
	return StatusResult{MapWidth: w, MapHeight: h, RoundTimeMs: roundTimeMs, Round: round, PlayerCount: count}
}

// Login exchanges a credential proof for an account key.
func (s *Service) Login(ctx context.Context, uid, paste string) (string, error) {
	if uid == "" {
		return "", apperr.BadRequest("uid is required")
	}
	return s.identity.Login(ctx, uid, paste)
}

// JoinResult is join()'s payload.
type JoinResult struct {
	Token     string
	SessionID string
	MapState  world.FullView
}

// Join starts a fresh session for the account behind key.
func (s *Service) Join(ctx context.Context, key, name, color string) (*JoinResult, error) {
	res, err := s.identity.Join(key, name, color, s.mapsvc)
	if err != nil {
		return nil, err
	}
	s.driver.AddPlayer(res.Player)
	return &JoinResult{
		Token:     res.Token,
		SessionID: string(res.SessionID),
		MapState:  s.driver.FullView(),
	}, nil
}

// Move queues a direction intent for the session behind token. It is
// idempotent within a tick: a second call before the next tick simply
// overwrites the first in the pending buffer.
func (s *Service) Move(ctx context.Context, token, direction string) error {
	sessionID, ok := s.identity.ValidateToken(token)
	if !ok {
		return apperr.Forbidden("invalid or expired token")
	}
	player, ok := s.identity.SessionByID(sessionID)
	if !ok || player.Snake == nil || !player.Snake.Alive() {
		return apperr.NotFound("session has died")
	}
	dir, ok := grid.ParseDirection(direction)
	if !ok {
		return apperr.BadRequest("invalid direction")
	}
	s.driver.SubmitIntent(sessionID, dir)
	return nil
}

// MapFull returns the full-view snapshot.
func (s *Service) MapFull(ctx context.Context) world.FullView {
	return s.driver.FullView()
}

// MapDelta returns the current tick's delta snapshot.
func (s *Service) MapDelta(ctx context.Context) world.DeltaView {
	return s.driver.DeltaView()
}

// LeaderboardResult is leaderboard()'s payload.
type LeaderboardResult struct {
	Entries       []leaderboard.Entry
	SeasonID      string
	CacheTTLSecs  int
}

// Leaderboard returns the top-N rows for sort, paginated.
func (s *Service) Leaderboard(ctx context.Context, sortKey leaderboard.SortKey, limit, offset int) (*LeaderboardResult, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	entries, err := s.board.Top(sortKey, limit, offset)
	if err != nil {
		return nil, apperr.Unavailable("leaderboard store unreachable", err)
	}
	return &LeaderboardResult{
		Entries:      entries,
		SeasonID:     s.board.Season().ID,
		CacheTTLSecs: s.board.CacheTTLSeconds(),
	}, nil
}
