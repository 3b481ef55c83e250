package leaderboard

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// OpenDB opens (and creates, if missing) the SQLite database at path,
// creates every table if absent, and additively adds any column the
// leaderboard table is missing (with its default). The players table is
// created if absent but not migrated. It never drops or renames a column.
func OpenDB(path string, maxOpenConns int) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("leaderboard: open %s: %w", path, err)
	}
	if maxOpenConns > 0 {
		db.SetMaxOpenConns(maxOpenConns)
	}
	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

var createStatements = []string{
	`CREATE TABLE IF NOT EXISTS players (
		uid TEXT PRIMARY KEY,
		paste TEXT NOT NULL,
		key TEXT UNIQUE NOT NULL,
		created_at INTEGER NOT NULL,
		last_login INTEGER NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS leaderboard (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		uid TEXT NOT NULL,
		player_name TEXT NOT NULL,
		season_id TEXT NOT NULL DEFAULT 'all_time',
		season_start INTEGER NOT NULL DEFAULT 0,
		season_end INTEGER NOT NULL DEFAULT 0,
		now_length INTEGER NOT NULL DEFAULT 0,
		max_length INTEGER NOT NULL DEFAULT 0,
		kills INTEGER DEFAULT 0,
		deaths INTEGER DEFAULT 0,
		games_played INTEGER DEFAULT 0,
		total_food INTEGER DEFAULT 0,
		last_round INTEGER NOT NULL DEFAULT 0,
		timestamp INTEGER NOT NULL,
		FOREIGN KEY (uid) REFERENCES players(uid),
		UNIQUE (uid, season_id)
	);`,
}

var indexStatements = []string{
	`CREATE INDEX IF NOT EXISTS idx_leaderboard_uid ON leaderboard(uid);`,
	`CREATE INDEX IF NOT EXISTS idx_leaderboard_season_kills ON leaderboard(season_id, kills DESC);`,
	`CREATE INDEX IF NOT EXISTS idx_leaderboard_season_max_length ON leaderboard(season_id, max_length DESC);`,
	`CREATE INDEX IF NOT EXISTS idx_leaderboard_uid_season ON leaderboard(uid, season_id);`,
}

// leaderboardColumns lists every column the current schema expects,
// with the DDL fragment used to add it if a pre-existing database
// predates it. uid/player_name/id/timestamp are part of the base
// CREATE TABLE and are never subject to additive migration.
var leaderboardColumns = []struct {
	name string
	ddl  string
}{
	{"season_id", `ALTER TABLE leaderboard ADD COLUMN season_id TEXT NOT NULL DEFAULT 'all_time';`},
	{"season_start", `ALTER TABLE leaderboard ADD COLUMN season_start INTEGER NOT NULL DEFAULT 0;`},
	{"season_end", `ALTER TABLE leaderboard ADD COLUMN season_end INTEGER NOT NULL DEFAULT 0;`},
	{"now_length", `ALTER TABLE leaderboard ADD COLUMN now_length INTEGER NOT NULL DEFAULT 0;`},
	{"max_length", `ALTER TABLE leaderboard ADD COLUMN max_length INTEGER NOT NULL DEFAULT 0;`},
	{"kills", `ALTER TABLE leaderboard ADD COLUMN kills INTEGER DEFAULT 0;`},
	{"deaths", `ALTER TABLE leaderboard ADD COLUMN deaths INTEGER DEFAULT 0;`},
	{"games_played", `ALTER TABLE leaderboard ADD COLUMN games_played INTEGER DEFAULT 0;`},
	{"total_food", `ALTER TABLE leaderboard ADD COLUMN total_food INTEGER DEFAULT 0;`},
	{"last_round", `ALTER TABLE leaderboard ADD COLUMN last_round INTEGER NOT NULL DEFAULT 0;`},
}

func migrate(db *sql.DB) error {
	for _, stmt := range createStatements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("leaderboard: create table: %w", err)
		}
	}

	existing, err := tableColumns(db, "leaderboard")
	if err != nil {
		return err
	}
	for _, col := range leaderboardColumns {
		if existing[col.name] {
			continue
		}
		if _, err := db.Exec(col.ddl); err != nil {
			return fmt.Errorf("leaderboard: add column %s: %w", col.name, err)
		}
	}

	for _, stmt := range indexStatements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("leaderboard: create index: %w", err)
		}
	}
	return nil
}

func tableColumns(db *sql.DB, table string) (map[string]bool, error) {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s);", table))
	if err != nil {
		return nil, fmt.Errorf("leaderboard: table_info(%s): %w", table, err)
	}
	defer rows.Close()

	cols := make(map[string]bool)
	for rows.Next() {
		var (
			cid       int
			name      string
			ctype     string
			notNull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notNull, &dfltValue, &pk); err != nil {
			return nil, err
		}
		cols[name] = true
	}
	return cols, rows.Err()
}
