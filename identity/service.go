// Package identity implements account key issuance and validation, the
// per-game session token, and the player directory. The player
// directory creates every Player; the world state (and through it the
// tick driver) holds pointers to the same Player values, keyed by
// SessionID, rather than copies or bare SessionIDs.
package identity

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/seve42/CodingSnake/apperr"
	"github.com/seve42/CodingSnake/grid"
	"github.com/seve42/CodingSnake/world"
)

// Spawner supplies a safe spawn position for a freshly joined player's
// snake. Implemented by mapsvc.Service; kept as an interface here so
// identity does not import the tick driver's live player list directly.
type Spawner interface {
	RandomSafeSpawn(players []*world.Player, safeRadius int) grid.Point
}

// Service is the identity/session directory: uid<->key, token->session,
// session->Player. A single RWMutex guards all four maps, matching the
// original's single shared_mutex over the whole directory.
type Service struct {
	mu sync.RWMutex

	uidToKey         map[string]string
	keyToUid         map[string]string
	tokenToSessionID map[string]world.SessionID
	sessions         map[world.SessionID]*world.Player

	db     *sql.DB
	oracle Oracle
	log    *zap.SugaredLogger

	initialLength   int
	safeSpawnRadius int
}

// New builds an identity service. db may be nil in tests that don't
// exercise persistence; production callers always supply one.
func New(db *sql.DB, oracle Oracle, log *zap.SugaredLogger, initialLength, safeSpawnRadius int) *Service {
	return &Service{
		uidToKey:         make(map[string]string),
		keyToUid:         make(map[string]string),
		tokenToSessionID: make(map[string]world.SessionID),
		sessions:         make(map[world.SessionID]*world.Player),
		db:               db,
		oracle:           oracle,
		log:              log,
		initialLength:    initialLength,
		safeSpawnRadius:  safeSpawnRadius,
	}
}

func randomHex(nBytes int) (string, error) {
	buf := make([]byte, nBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// Login delegates to the credential oracle. On success: an existing
// account with a matching stored proof just refreshes last-login and
// returns its key; an existing account with a different proof rotates
// the key (evicting the old one from memory); a brand-new uid gets a
// freshly generated key. The persisted proof/key live in the `players`
// table.
func (s *Service) Login(ctx context.Context, uid, paste string) (string, error) {
	ok, err := s.oracle.Verify(ctx, uid, paste)
	if err != nil {
		return "", apperr.Unavailable("credential oracle unreachable", err)
	}
	if !ok {
		return "", apperr.Unauthorized("credential verification failed")
	}

	nowMs := time.Now().UnixMilli()

	existingKey, existingPaste, found, err := s.loadPlayerRow(ctx, uid)
	if err != nil {
		return "", apperr.Unavailable("player store unreachable", err)
	}

	if found {
		if existingPaste == paste {
			if err := s.touchLastLogin(ctx, uid, nowMs); err != nil {
				s.logWarn("failed to update last_login", "uid", uid, "error", err)
			}
			s.mu.Lock()
			s.uidToKey[uid] = existingKey
			s.keyToUid[existingKey] = uid
			s.mu.Unlock()
			return existingKey, nil
		}

		newKey, err := randomHex(32)
		if err != nil {
			return "", apperr.Internal("key generation failed", err)
		}
		if err := s.rotateKey(ctx, uid, paste, newKey, nowMs); err != nil {
			return "", apperr.Unavailable("player store unreachable", err)
		}
		s.mu.Lock()
		delete(s.keyToUid, existingKey)
		s.uidToKey[uid] = newKey
		s.keyToUid[newKey] = uid
		s.mu.Unlock()
		return newKey, nil
	}

	newKey, err := randomHex(32)
	if err != nil {
		return "", apperr.Internal("key generation failed", err)
	}
	if err := s.insertPlayerRow(ctx, uid, paste, newKey, nowMs); err != nil {
		return "", apperr.Unavailable("player store unreachable", err)
	}
	s.mu.Lock()
	s.uidToKey[uid] = newKey
	s.keyToUid[newKey] = uid
	s.mu.Unlock()
	return newKey, nil
}

// JoinResult is what Join hands back on success.
type JoinResult struct {
	Token     string
	SessionID world.SessionID
	Player    *world.Player
}

// Join validates key->uid, rejects an invalid or already-in-game
// session for that uid, validates name/color, and creates a fresh
// session with a freshly spawned snake.
func (s *Service) Join(key, name, color string, spawner Spawner) (*JoinResult, error) {
	uid, ok := s.ValidateKey(key)
	if !ok {
		return nil, apperr.Forbidden("invalid key")
	}
	if err := validate.Struct(joinParams{Name: name, Color: color}); err != nil {
		return nil, apperr.BadRequest("invalid join parameters")
	}
	if !isValidPlayerName(name) {
		return nil, apperr.BadRequest("invalid player name")
	}
	if color == "" {
		color = randomColor()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.sessions {
		if p.UID == uid && p.InGame {
			return nil, apperr.Conflict("account already has a live session")
		}
	}

	sessionID, err := generateSessionID(uid)
	if err != nil {
		return nil, apperr.Internal("session id generation failed", err)
	}
	token, err := randomHex(32)
	if err != nil {
		return nil, apperr.Internal("token generation failed", err)
	}

	player := world.NewPlayer(uid, string(sessionID), name, color)
	player.Key = key
	player.Token = token
	player.InGame = true

	head := spawner.RandomSafeSpawn(s.livePlayersLocked(), s.safeSpawnRadius)
	if head.IsNull() {
		head = grid.NewPoint(0, 0)
	}
	if err := player.InitSnake(head, s.initialLength); err != nil {
		return nil, apperr.Internal("snake init failed", err)
	}

	s.sessions[sessionID] = player
	s.tokenToSessionID[token] = sessionID

	return &JoinResult{Token: token, SessionID: sessionID, Player: player}, nil
}

func (s *Service) livePlayersLocked() []*world.Player {
	out := make([]*world.Player, 0, len(s.sessions))
	for _, p := range s.sessions {
		out = append(out, p)
	}
	return out
}

// ValidateKey resolves a key to its uid, checking the in-memory cache
// first and falling back to the store.
func (s *Service) ValidateKey(key string) (string, bool) {
	s.mu.RLock()
	uid, ok := s.uidFromKeyLocked(key)
	s.mu.RUnlock()
	if ok {
		return uid, true
	}

	uid, found, err := s.loadUIDByKey(context.Background(), key)
	if err != nil || !found {
		return "", false
	}
	s.mu.Lock()
	s.keyToUid[key] = uid
	s.uidToKey[uid] = key
	s.mu.Unlock()
	return uid, true
}

func (s *Service) uidFromKeyLocked(key string) (string, bool) {
	uid, ok := s.keyToUid[key]
	return uid, ok
}

// ValidateToken resolves a session token to its SessionID, O(1).
func (s *Service) ValidateToken(token string) (world.SessionID, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.tokenToSessionID[token]
	return id, ok
}

// SessionByID returns the live player for a session, if any.
func (s *Service) SessionByID(id world.SessionID) (*world.Player, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.sessions[id]
	return p, ok
}

// RemoveSession drops a session from the directory.
func (s *Service) RemoveSession(id world.SessionID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.sessions[id]; ok {
		delete(s.tokenToSessionID, p.Token)
		delete(s.sessions, id)
	}
}

// ListLiveSessions returns every session, ordered by SessionID for
// deterministic iteration downstream.
func (s *Service) ListLiveSessions() []*world.Player {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.livePlayersLocked()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// generateSessionID mints a per-join session id. The suffix is drawn
// from the same crypto/rand source as the session token: the id is
// echoed back to the owning client and logged, so it should be no more
// guessable than anything else the directory hands out.
func generateSessionID(uid string) (world.SessionID, error) {
	suffix, err := randomHex(32)
	if err != nil {
		return "", err
	}
	return world.SessionID(fmt.Sprintf("p_%s_%s", uid, suffix)), nil
}

func randomColor() string {
	b, err := randomHex(3)
	if err != nil {
		return "#7f7f7f"
	}
	return "#" + b
}

func (s *Service) logWarn(msg string, kv ...any) {
	if s.log != nil {
		s.log.Warnw(msg, kv...)
	}
}

// --- persistence -----------------------------------------------------

func (s *Service) loadPlayerRow(ctx context.Context, uid string) (key, paste string, found bool, err error) {
	if s.db == nil {
		return "", "", false, nil
	}
	row := s.db.QueryRowContext(ctx, `SELECT key, paste FROM players WHERE uid = ?`, uid)
	err = row.Scan(&key, &paste)
	if errors.Is(err, sql.ErrNoRows) {
		return "", "", false, nil
	}
	if err != nil {
		return "", "", false, err
	}
	return key, paste, true, nil
}

func (s *Service) loadUIDByKey(ctx context.Context, key string) (string, bool, error) {
	if s.db == nil {
		return "", false, nil
	}
	var uid string
	err := s.db.QueryRowContext(ctx, `SELECT uid FROM players WHERE key = ?`, key).Scan(&uid)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return uid, true, nil
}

func (s *Service) touchLastLogin(ctx context.Context, uid string, nowMs int64) error {
	if s.db == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `UPDATE players SET last_login = ? WHERE uid = ?`, nowMs, uid)
	return err
}

func (s *Service) rotateKey(ctx context.Context, uid, paste, newKey string, nowMs int64) error {
	if s.db == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE players SET paste = ?, key = ?, last_login = ? WHERE uid = ?`,
		paste, newKey, nowMs, uid)
	return err
}

func (s *Service) insertPlayerRow(ctx context.Context, uid, paste, key string, nowMs int64) error {
	if s.db == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO players (uid, paste, key, created_at, last_login) VALUES (?, ?, ?, ?, ?)`,
		uid, paste, key, nowMs, nowMs)
	return err
}
