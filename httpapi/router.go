// Package httpapi implements the HTTP transport surface on top of gin:
// the {code,msg,data} envelope, CORS, per-endpoint rate limiting, and
// the apperr.Kind→status mapping.
package httpapi

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/seve42/CodingSnake/apperr"
	"github.com/seve42/CodingSnake/config"
	"github.com/seve42/CodingSnake/gameservice"
	"github.com/seve42/CodingSnake/leaderboard"
	"github.com/seve42/CodingSnake/metrics"
	"github.com/seve42/CodingSnake/ratelimit"
)

// Router builds the gin.Engine for the game server.
type Router struct {
	svc     *gameservice.Service
	limiter *ratelimit.Limiter
	reg     *metrics.Registry
	log     *zap.SugaredLogger

	limitsMu sync.RWMutex
	limits   config.RateLimitsConfig
}

// New builds a Router. Call Engine to get the http.Handler to serve.
func New(svc *gameservice.Service, limiter *ratelimit.Limiter, reg *metrics.Registry, limits config.RateLimitsConfig, log *zap.SugaredLogger) *Router {
	return &Router{svc: svc, limiter: limiter, reg: reg, limits: limits, log: log}
}

// SetRateLimits replaces the per-endpoint rate-limit rules applied by
// the next request on each endpoint. Safe to call while Engine's
// handlers are already serving traffic.
func (rt *Router) SetRateLimits(limits config.RateLimitsConfig) {
	rt.limitsMu.Lock()
	defer rt.limitsMu.Unlock()
	rt.limits = limits
}

func (rt *Router) rateLimitRule(endpoint string) config.RateLimitRule {
	rt.limitsMu.RLock()
	defer rt.limitsMu.RUnlock()
	switch endpoint {
	case "login":
		return rt.limits.Login
	case "join":
		return rt.limits.Join
	default:
		return rt.limits.Move
	}
}

// Engine assembles the middleware chain and route table.
func (rt *Router) Engine() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	e := gin.New()
	e.Use(gin.Recovery(), rt.requestLogger(), rt.cors())

	e.GET("/api/status", rt.handleStatus)
	e.POST("/api/game/login", rt.rateLimited("login"), rt.handleLogin)
	e.POST("/api/game/join", rt.rateLimited("join"), rt.handleJoin)
	e.GET("/api/game/map", rt.handleMapFull)
	e.GET("/api/game/map/delta", rt.handleMapDelta)
	e.POST("/api/game/move", rt.rateLimited("move"), rt.handleMove)
	e.GET("/api/leaderboard", rt.handleLeaderboard)
	e.GET("/api/metrics", rt.handleMetrics)

	return e
}

// requestLogger emits one structured log line per request and feeds
// the metrics registry's latency/QPS sampling.
func (rt *Router) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		rt.reg.RecordRequest(c.FullPath(), latency)
		if rt.log != nil {
			rt.log.Infow("request",
				"method", c.Request.Method, "path", c.FullPath(),
				"status", c.Writer.Status(), "latency_ms", float64(latency)/float64(time.Millisecond))
		}
	}
}

func (rt *Router) cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Accept")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// rateLimited applies a sliding-window limit keyed by endpoint+client
// IP, responding 429 with a retry_after hint when exceeded. The rule
// is looked up fresh on every request rather than captured at route
// registration, so a hot-reloaded limit takes effect immediately.
func (rt *Router) rateLimited(endpoint string) gin.HandlerFunc {
	return func(c *gin.Context) {
		rule := rt.rateLimitRule(endpoint)
		window := time.Duration(rule.WindowSeconds) * time.Second
		key := endpoint + ":" + c.ClientIP()
		now := time.Now()
		if !rt.limiter.Allow(key, rule.MaxRequests, window, now) {
			retryAfter := rt.limiter.RetryAfter(key, window, now)
			writeError(c, apperr.TooManyRequests("rate limit exceeded", retryAfter))
			c.Abort()
			return
		}
		c.Next()
	}
}

// envelope is the {code,msg,data} shape every response shares.
type envelope struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data any    `json:"data,omitempty"`
}

func writeOK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, envelope{Code: 0, Msg: "ok", Data: data})
}

// kindStatus is the single table mapping an apperr.Kind to its HTTP
// status and envelope code.
func kindStatus(k apperr.Kind) int {
	switch k {
	case apperr.KindBadRequest:
		return http.StatusBadRequest
	case apperr.KindUnauthorized:
		return http.StatusUnauthorized
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindTooManyRequests:
		return http.StatusTooManyRequests
	case apperr.KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err error) {
	appErr, ok := apperr.As(err)
	if !ok {
		appErr = apperr.Internal("unexpected error", err)
	}
	status := kindStatus(appErr.Kind)
	data := any(nil)
	if appErr.Kind == apperr.KindTooManyRequests {
		data = gin.H{"retry_after": appErr.RetryAfter}
	}
	c.JSON(status, envelope{Code: status, Msg: appErr.Message, Data: data})
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

func parseSortKey(s string) leaderboard.SortKey {
	if s == "max_length" {
		return leaderboard.SortMaxLength
	}
	return leaderboard.SortKills
}
