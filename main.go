package main

import (
	"context"
	"flag"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/multierr"

	"github.com/seve42/CodingSnake/config"
	"github.com/seve42/CodingSnake/gameservice"
	"github.com/seve42/CodingSnake/httpapi"
	"github.com/seve42/CodingSnake/identity"
	"github.com/seve42/CodingSnake/leaderboard"
	"github.com/seve42/CodingSnake/logging"
	"github.com/seve42/CodingSnake/mapsvc"
	"github.com/seve42/CodingSnake/metrics"
	"github.com/seve42/CodingSnake/ratelimit"
	"github.com/seve42/CodingSnake/tickdriver"
)

// CodingSnake's entry point: config load → logger → database open →
// identity/map/leaderboard services → tick driver → HTTP router →
// signal-based graceful shutdown.
func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "config.yaml", "path to the YAML config document")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		panic(err)
	}

	logCfg := logging.DefaultConfig()
	log, cleanup, err := logging.New(logCfg)
	if err != nil {
		panic(err)
	}
	defer cleanup()

	db, err := leaderboard.OpenDB(cfg.Database.Path, cfg.Server.Threads)
	if err != nil {
		log.Fatalw("failed to open database", "error", err)
	}

	var oracle identity.Oracle = identity.NewHTTPOracle(cfg.Auth.OracleURL, time.Duration(cfg.Auth.OracleTimeoutMs)*time.Millisecond)
	if cfg.Auth.UniversalProof != "" {
		oracle = identity.UniversalOracle{UID: "", Proof: cfg.Auth.UniversalProof, Next: oracle}
	}

	identSvc := identity.New(db, oracle, log, cfg.Game.InitialLength, cfg.Game.SafeSpawnRadius)

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	mapSvc := mapsvc.New(cfg.Game.MapWidth, cfg.Game.MapHeight, rng)

	season := leaderboard.Season{ID: cfg.Leaderboard.SeasonID, StartMs: time.Now().UnixMilli()}
	board := leaderboard.New(db, log, season, time.Duration(cfg.Leaderboard.CacheTTLSeconds)*time.Second)

	metricsCfg := metrics.Config{
		Enabled:       cfg.PerformanceMonitor.Enabled,
		SampleRate:    cfg.PerformanceMonitor.SampleRate,
		WindowSeconds: cfg.PerformanceMonitor.WindowSeconds,
		MaxSamples:    2000,
	}
	reg := metrics.New(metricsCfg)

	driverCfg := tickdriver.Config{
		RoundTime:           time.Duration(cfg.Game.RoundTimeMs) * time.Millisecond,
		InvincibilityRounds: cfg.Game.InvincibilityRounds,
		FoodDensity:         cfg.Game.FoodDensity,
	}
	driver := tickdriver.New(driverCfg, identSvc, mapSvc, board, reg, log)

	limiter := ratelimit.New()
	svc := gameservice.New(identSvc, mapSvc, driver, board, log)
	router := httpapi.New(svc, limiter, reg, cfg.RateLimits, log)

	watcher, err := config.NewWatcher(configPath, cfg, log, func(hot config.HotReloadable) {
		driver.SetFoodDensity(hot.FoodDensity)
		router.SetRateLimits(hot.RateLimits)
		reg.SetSampling(hot.PerformanceMonitor.SampleRate, hot.PerformanceMonitor.WindowSeconds)
		log.Infow("config hot-reloaded",
			"food_density", hot.FoodDensity,
			"move_max_requests", hot.RateLimits.Move.MaxRequests,
			"sample_rate", hot.PerformanceMonitor.SampleRate)
	})
	if err != nil {
		log.Warnw("config hot-reload disabled", "error", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go driver.Run(ctx)

	httpSrv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: router.Engine(),
	}

	go func() {
		log.Infow("listening", "addr", cfg.Server.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("listen failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	var shutdownErr error
	shutdownErr = multierr.Append(shutdownErr, httpSrv.Shutdown(shutdownCtx))
	driver.Stop()
	if watcher != nil {
		shutdownErr = multierr.Append(shutdownErr, watcher.Close())
	}
	shutdownErr = multierr.Append(shutdownErr, db.Close())
	if shutdownErr != nil {
		log.Errorw("shutdown completed with errors", "error", shutdownErr)
	}
}
