// Package config loads the single YAML configuration document and,
// once loaded, watches it for changes so a narrow set of hot-reloadable
// fields can be re-applied without a restart, via a file watch rather
// than an admin HTTP endpoint.
package config

import (
	"fmt"
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// RateLimitRule is one endpoint's sliding-window limit.
type RateLimitRule struct {
	WindowSeconds int `yaml:"window_seconds"`
	MaxRequests   int `yaml:"max_requests"`
}

// ServerConfig is the `server` section.
type ServerConfig struct {
	Addr             string `yaml:"addr"`
	Threads          int    `yaml:"threads"`
	RequestTimeoutMs int    `yaml:"request_timeout_ms"`
}

// GameConfig is the `game` section.
type GameConfig struct {
	MapWidth            int     `yaml:"map_width"`
	MapHeight           int     `yaml:"map_height"`
	RoundTimeMs         int     `yaml:"round_time_ms"`
	InitialLength       int     `yaml:"initial_length"`
	InvincibilityRounds int     `yaml:"invincibility_rounds"`
	FoodDensity         float64 `yaml:"food_density"`
	SafeSpawnRadius     int     `yaml:"safe_spawn_radius"`
}

// DatabaseConfig is the `database` section.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// RateLimitsConfig is the `rate_limits` section.
type RateLimitsConfig struct {
	Move  RateLimitRule `yaml:"move"`
	Join  RateLimitRule `yaml:"join"`
	Login RateLimitRule `yaml:"login"`
}

// AuthConfig is the `auth` section.
type AuthConfig struct {
	UniversalProof  string `yaml:"universal_proof"`
	OracleURL       string `yaml:"oracle_url"`
	OracleTimeoutMs int    `yaml:"oracle_timeout_ms"`
}

// LeaderboardConfig is the `leaderboard` section.
type LeaderboardConfig struct {
	CacheTTLSeconds int    `yaml:"cache_ttl_seconds"`
	SeasonID        string `yaml:"season_id"`
}

// PerformanceMonitorConfig is the `performance_monitor` section.
type PerformanceMonitorConfig struct {
	Enabled       bool    `yaml:"enabled"`
	SampleRate    float64 `yaml:"sample_rate"`
	WindowSeconds int     `yaml:"window_seconds"`
}

// Config is the full document.
type Config struct {
	Server             ServerConfig             `yaml:"server"`
	Game               GameConfig               `yaml:"game"`
	Database           DatabaseConfig           `yaml:"database"`
	RateLimits         RateLimitsConfig         `yaml:"rate_limits"`
	Auth               AuthConfig               `yaml:"auth"`
	Leaderboard        LeaderboardConfig        `yaml:"leaderboard"`
	PerformanceMonitor PerformanceMonitorConfig `yaml:"performance_monitor"`
}

// Default returns the document's defaults, used both as a fallback
// when a section is omitted and as the zero-config starting point.
func Default() Config {
	return Config{
		Server: ServerConfig{Addr: ":8080", Threads: 4, RequestTimeoutMs: 10000},
		Game: GameConfig{
			MapWidth: 40, MapHeight: 40, RoundTimeMs: 200,
			InitialLength: 3, InvincibilityRounds: 0,
			FoodDensity: 0.05, SafeSpawnRadius: 2,
		},
		Database: DatabaseConfig{Path: "./data/snake.db"},
		RateLimits: RateLimitsConfig{
			Move:  RateLimitRule{WindowSeconds: 1, MaxRequests: 10},
			Join:  RateLimitRule{WindowSeconds: 5, MaxRequests: 1},
			Login: RateLimitRule{WindowSeconds: 10, MaxRequests: 5},
		},
		Auth: AuthConfig{
			OracleURL:       "https://www.luogu.com.cn/paste/{paste}",
			OracleTimeoutMs: 5000,
		},
		Leaderboard:        LeaderboardConfig{CacheTTLSeconds: 5, SeasonID: "all_time"},
		PerformanceMonitor: PerformanceMonitorConfig{Enabled: true, SampleRate: 0.2, WindowSeconds: 60},
	}
}

// Load reads and parses path, overlaying it onto Default() so omitted
// fields keep their default value. A missing file is not an error: the
// defaults are returned as-is, so a fresh deployment can start without
// a config file on disk.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// HotReloadable is the subset of fields safe to apply without a
// restart: tuning knobs, not structural ones like map size.
type HotReloadable struct {
	FoodDensity        float64
	RateLimits         RateLimitsConfig
	PerformanceMonitor PerformanceMonitorConfig
}

func (c Config) hotReloadable() HotReloadable {
	return HotReloadable{
		FoodDensity:        c.Game.FoodDensity,
		RateLimits:         c.RateLimits,
		PerformanceMonitor: c.PerformanceMonitor,
	}
}

// Watcher watches a config file and invokes onChange with the
// hot-reloadable subset of the newly parsed document every time it is
// written. Structural fields
// (map size, round time) are compared against the value at
// construction time; a mismatch is logged but not applied, since
// changing them live would violate already-published invariants.
type Watcher struct {
	mu       sync.Mutex
	path     string
	initial  Config
	log      *zap.SugaredLogger
	onChange func(HotReloadable)
	watcher  *fsnotify.Watcher
}

// NewWatcher starts watching path. Call Close to stop.
func NewWatcher(path string, initial Config, log *zap.SugaredLogger, onChange func(HotReloadable)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config: new watcher: %w", err)
	}
	if err := fw.Add(path); err != nil {
		_ = fw.Close()
		if os.IsNotExist(err) {
			// nothing to watch yet; caller is free to ignore this by
			// discarding the Watcher.
			return nil, err
		}
		return nil, fmt.Errorf("config: watch %s: %w", path, err)
	}

	w := &Watcher{path: path, initial: initial, log: log, onChange: onChange, watcher: fw}
	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	for {
		select {
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.reload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			if w.log != nil {
				w.log.Warnw("config watcher error", "error", err)
			}
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		if w.log != nil {
			w.log.Warnw("config reload failed, keeping previous values", "error", err)
		}
		return
	}

	w.mu.Lock()
	structuralChanged := cfg.Game.MapWidth != w.initial.Game.MapWidth ||
		cfg.Game.MapHeight != w.initial.Game.MapHeight ||
		cfg.Game.RoundTimeMs != w.initial.Game.RoundTimeMs
	w.mu.Unlock()

	if structuralChanged && w.log != nil {
		w.log.Warnw("structural config fields changed on disk; ignoring until restart",
			"map_width", cfg.Game.MapWidth, "map_height", cfg.Game.MapHeight, "round_time_ms", cfg.Game.RoundTimeMs)
	}

	if w.onChange != nil {
		w.onChange(cfg.hotReloadable())
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
