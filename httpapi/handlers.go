package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/seve42/CodingSnake/apperr"
	"github.com/seve42/CodingSnake/metrics"
)

func (rt *Router) handleStatus(c *gin.Context) {
	st := rt.svc.Status(c.Request.Context())
	writeOK(c, gin.H{
		"map_size":     gin.H{"width": st.MapWidth, "height": st.MapHeight},
		"round_time":   st.RoundTimeMs,
		"round":        st.Round,
		"player_count": st.PlayerCount,
	})
}

type loginRequest struct {
	UID   string `json:"uid" binding:"required"`
	Paste string `json:"paste"`
}

func (rt *Router) handleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apperr.BadRequest("malformed login request"))
		return
	}
	key, err := rt.svc.Login(c.Request.Context(), req.UID, req.Paste)
	if err != nil {
		writeError(c, err)
		return
	}
	writeOK(c, gin.H{"key": key})
}

type joinRequest struct {
	Key   string `json:"key" binding:"required"`
	Name  string `json:"name" binding:"required"`
	Color string `json:"color"`
}

func (rt *Router) handleJoin(c *gin.Context) {
	var req joinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apperr.BadRequest("malformed join request"))
		return
	}
	res, err := rt.svc.Join(c.Request.Context(), req.Key, req.Name, req.Color)
	if err != nil {
		writeError(c, err)
		return
	}
	writeOK(c, gin.H{"token": res.Token, "id": res.SessionID, "map_state": res.MapState})
}

func (rt *Router) handleMapFull(c *gin.Context) {
	writeOK(c, gin.H{"map_state": rt.svc.MapFull(c.Request.Context())})
}

func (rt *Router) handleMapDelta(c *gin.Context) {
	writeOK(c, gin.H{"delta_state": rt.svc.MapDelta(c.Request.Context())})
}

type moveRequest struct {
	Token     string `json:"token" binding:"required"`
	Direction string `json:"direction" binding:"required"`
}

func (rt *Router) handleMove(c *gin.Context) {
	var req moveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apperr.BadRequest("malformed move request"))
		return
	}
	if err := rt.svc.Move(c.Request.Context(), req.Token, req.Direction); err != nil {
		writeError(c, err)
		return
	}
	writeOK(c, gin.H{"ok": true})
}

func (rt *Router) handleLeaderboard(c *gin.Context) {
	sortKey := parseSortKey(c.Query("type"))
	limit := parseIntDefault(c.Query("limit"), 20)
	offset := parseIntDefault(c.Query("offset"), 0)

	res, err := rt.svc.Leaderboard(c.Request.Context(), sortKey, limit, offset)
	if err != nil {
		writeError(c, err)
		return
	}
	writeOK(c, gin.H{
		"entries":           res.Entries,
		"season":            res.SeasonID,
		"cache_ttl_seconds": res.CacheTTLSecs,
	})
}

func (rt *Router) handleMetrics(c *gin.Context) {
	snap := rt.reg.Snapshot()
	c.String(http.StatusOK, metrics.WritePrometheus(snap))
}
