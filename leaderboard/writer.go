// Package leaderboard implements the incremental per-round counter
// writer and the cached top-N reader, backed by
// database/sql + github.com/mattn/go-sqlite3.
package leaderboard

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/seve42/CodingSnake/world"
)

// Season names the currently active leaderboard season. Only one
// season is ever active; there is no seasonal-reset scheduler.
type Season struct {
	ID         string
	StartMs    int64
	EndMs      int64
}

// SortKey is one of the two supported top-N orderings.
type SortKey string

const (
	SortKills     SortKey = "kills"
	SortMaxLength SortKey = "max_length"
)

// Entry is one row of the leaderboard read surface.
type Entry struct {
	UID         string `json:"uid"`
	Name        string `json:"name"`
	NowLength   int    `json:"now_length"`
	MaxLength   int    `json:"max_length"`
	Kills       int    `json:"kills"`
	Deaths      int    `json:"deaths"`
	GamesPlayed int    `json:"games_played"`
	TotalFood   int    `json:"total_food"`
	LastRound   int64  `json:"last_round"`
}

// Writer serializes writes to the leaderboard table behind a single
// mutex (the store's own transaction discipline handles read
// concurrency) and caches top-N reads for a configured TTL.
type Writer struct {
	db     *sql.DB
	log    *zap.SugaredLogger
	season Season

	writeMu sync.Mutex

	cacheMu  sync.Mutex
	cache    map[SortKey]cachedPage
	cacheTTL time.Duration

	// deathSeen tracks, per session, whether a death has
	// already incremented games_played for the current join —
	// games_played only increments on a session's *first* death.
	firstDeathMu sync.Mutex
	deathSeen    map[world.SessionID]bool
}

type cachedPage struct {
	entries   []Entry
	expiresAt time.Time
}

// New builds a Writer against db for the given season, caching top-N
// reads for cacheTTL.
func New(db *sql.DB, log *zap.SugaredLogger, season Season, cacheTTL time.Duration) *Writer {
	return &Writer{
		db:        db,
		log:       log,
		season:    season,
		cache:     make(map[SortKey]cachedPage),
		cacheTTL:  cacheTTL,
		deathSeen: make(map[world.SessionID]bool),
	}
}

func (w *Writer) ensureRow(ctx context.Context, uid, name string, nowMs int64) error {
	_, err := w.db.ExecContext(ctx, `
		INSERT INTO leaderboard (uid, player_name, season_id, season_start, season_end, timestamp)
		SELECT ?, ?, ?, ?, ?, ?
		WHERE NOT EXISTS (SELECT 1 FROM leaderboard WHERE uid = ? AND season_id = ?)`,
		uid, name, w.season.ID, w.season.StartMs, w.season.EndMs, nowMs, uid, w.season.ID)
	return err
}

// OnFoodEaten bumps total_food and now_length/max_length for the
// session's owning account.
func (w *Writer) OnFoodEaten(uid, name string, nowLength int, nowMs int64) {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	ctx := context.Background()
	if err := w.ensureRow(ctx, uid, name, nowMs); err != nil {
		w.logWarn("ensureRow failed on food hook", uid, err)
		return
	}
	_, err := w.db.ExecContext(ctx, `
		UPDATE leaderboard
		SET total_food = total_food + 1,
		    now_length = ?,
		    max_length = MAX(max_length, ?),
		    timestamp = ?
		WHERE uid = ? AND season_id = ?`,
		nowLength, nowLength, nowMs, uid, w.season.ID)
	if err != nil {
		w.logWarn("food hook write failed", uid, err)
	}
	w.invalidateCache()
}

// OnKillCredited bumps kills for the credited account.
func (w *Writer) OnKillCredited(uid, name string, nowMs int64) {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	ctx := context.Background()
	if err := w.ensureRow(ctx, uid, name, nowMs); err != nil {
		w.logWarn("ensureRow failed on kill hook", uid, err)
		return
	}
	_, err := w.db.ExecContext(ctx, `
		UPDATE leaderboard SET kills = kills + 1, timestamp = ? WHERE uid = ? AND season_id = ?`,
		nowMs, uid, w.season.ID)
	if err != nil {
		w.logWarn("kill hook write failed", uid, err)
	}
	w.invalidateCache()
}

// OnDeath bumps deaths, and games_played if this is sessionID's first
// death since it joined.
func (w *Writer) OnDeath(sessionID world.SessionID, uid, name string, nowRound, nowMs int64) {
	w.firstDeathMu.Lock()
	firstDeath := !w.deathSeen[sessionID]
	w.deathSeen[sessionID] = true
	w.firstDeathMu.Unlock()

	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	ctx := context.Background()
	if err := w.ensureRow(ctx, uid, name, nowMs); err != nil {
		w.logWarn("ensureRow failed on death hook", uid, err)
		return
	}

	query := `UPDATE leaderboard SET deaths = deaths + 1, last_round = ?, timestamp = ? WHERE uid = ? AND season_id = ?`
	args := []any{nowRound, nowMs, uid, w.season.ID}
	if firstDeath {
		query = `UPDATE leaderboard SET deaths = deaths + 1, games_played = games_played + 1, last_round = ?, timestamp = ? WHERE uid = ? AND season_id = ?`
	}
	if _, err := w.db.ExecContext(ctx, query, args...); err != nil {
		w.logWarn("death hook write failed", uid, err)
	}
	w.invalidateCache()
}

// ForgetSession drops the per-session first-death tracking once a
// session is fully gone (re-join starts a fresh "first death" window).
func (w *Writer) ForgetSession(sessionID world.SessionID) {
	w.firstDeathMu.Lock()
	delete(w.deathSeen, sessionID)
	w.firstDeathMu.Unlock()
}

// Top returns up to limit rows starting at offset, ordered descending
// by sortKey with a stable secondary order by uid, served from an
// in-process TTL cache around the underlying query.
func (w *Writer) Top(sortKey SortKey, limit, offset int) ([]Entry, error) {
	full, err := w.topUncached(sortKey)
	if err != nil {
		return nil, err
	}
	if offset >= len(full) {
		return []Entry{}, nil
	}
	end := offset + limit
	if end > len(full) {
		end = len(full)
	}
	out := make([]Entry, end-offset)
	copy(out, full[offset:end])
	return out, nil
}

func (w *Writer) topUncached(sortKey SortKey) ([]Entry, error) {
	w.cacheMu.Lock()
	if page, ok := w.cache[sortKey]; ok && time.Now().Before(page.expiresAt) {
		w.cacheMu.Unlock()
		return page.entries, nil
	}
	w.cacheMu.Unlock()

	col := "kills"
	if sortKey == SortMaxLength {
		col = "max_length"
	}
	rows, err := w.db.Query(`
		SELECT uid, player_name, now_length, max_length, kills, deaths, games_played, total_food, last_round
		FROM leaderboard WHERE season_id = ? ORDER BY `+col+` DESC, uid ASC`, w.season.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.UID, &e.Name, &e.NowLength, &e.MaxLength, &e.Kills, &e.Deaths, &e.GamesPlayed, &e.TotalFood, &e.LastRound); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(entries, func(i, j int) bool {
		var a, b int
		if sortKey == SortMaxLength {
			a, b = entries[i].MaxLength, entries[j].MaxLength
		} else {
			a, b = entries[i].Kills, entries[j].Kills
		}
		if a != b {
			return a > b
		}
		return entries[i].UID < entries[j].UID
	})

	w.cacheMu.Lock()
	w.cache[sortKey] = cachedPage{entries: entries, expiresAt: time.Now().Add(w.cacheTTL)}
	w.cacheMu.Unlock()

	return entries, nil
}

func (w *Writer) invalidateCache() {
	w.cacheMu.Lock()
	w.cache = make(map[SortKey]cachedPage)
	w.cacheMu.Unlock()
}

// Season returns the writer's active season.
func (w *Writer) Season() Season { return w.season }

// CacheTTLSeconds reports the configured cache TTL for the leaderboard
// response envelope's cache_ttl_seconds field.
func (w *Writer) CacheTTLSeconds() int {
	return int(w.cacheTTL / time.Second)
}

func (w *Writer) logWarn(msg, uid string, err error) {
	if w.log != nil {
		w.log.Warnw(msg, "uid", uid, "error", err)
	}
}
