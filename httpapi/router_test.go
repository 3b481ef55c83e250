package httpapi

import (
	"bytes"
	"encoding/json"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/seve42/CodingSnake/config"
	"github.com/seve42/CodingSnake/gameservice"
	"github.com/seve42/CodingSnake/identity"
	"github.com/seve42/CodingSnake/leaderboard"
	"github.com/seve42/CodingSnake/mapsvc"
	"github.com/seve42/CodingSnake/metrics"
	"github.com/seve42/CodingSnake/ratelimit"
	"github.com/seve42/CodingSnake/tickdriver"
)

func newTestRouter(t *testing.T, limits config.RateLimitsConfig) *Router {
	t.Helper()
	db, err := leaderboard.OpenDB(":memory:", 1)
	if err != nil {
		t.Fatalf("OpenDB: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	oracle := identity.UniversalOracle{Proof: "testproof"}
	ident := identity.New(db, oracle, nil, 3, 2)
	mapSvc := mapsvc.New(10, 10, rand.New(rand.NewSource(1)))
	board := leaderboard.New(db, nil, leaderboard.Season{ID: "all_time"}, 0)
	reg := metrics.New(metrics.Config{Enabled: true, SampleRate: 1, WindowSeconds: 60, MaxSamples: 100})
	driver := tickdriver.New(tickdriver.Config{RoundTime: 50 * time.Millisecond}, ident, mapSvc, board, reg, nil)
	svc := gameservice.New(ident, mapSvc, driver, board, nil)
	limiter := ratelimit.New()

	return New(svc, limiter, reg, limits, nil)
}

func permissiveLimits() config.RateLimitsConfig {
	rule := config.RateLimitRule{WindowSeconds: 1, MaxRequests: 1000}
	return config.RateLimitsConfig{Move: rule, Join: rule, Login: rule}
}

type envelopeBody struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

func doJSON(e http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestStatusEndpoint(t *testing.T) {
	rt := newTestRouter(t, permissiveLimits())
	e := rt.Engine()

	rec := doJSON(e, http.MethodGet, "/api/status", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var env envelopeBody
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatal(err)
	}
	if env.Code != 0 {
		t.Fatalf("expected envelope code 0, got %d", env.Code)
	}
}

func TestLoginJoinMoveFlow(t *testing.T) {
	rt := newTestRouter(t, permissiveLimits())
	e := rt.Engine()

	loginRec := doJSON(e, http.MethodPost, "/api/game/login", map[string]string{"uid": "u1", "paste": "testproof"})
	if loginRec.Code != http.StatusOK {
		t.Fatalf("login expected 200, got %d: %s", loginRec.Code, loginRec.Body.String())
	}
	var loginEnv struct {
		Data struct {
			Key string `json:"key"`
		} `json:"data"`
	}
	if err := json.Unmarshal(loginRec.Body.Bytes(), &loginEnv); err != nil {
		t.Fatal(err)
	}
	if loginEnv.Data.Key == "" {
		t.Fatal("expected a non-empty key")
	}

	joinRec := doJSON(e, http.MethodPost, "/api/game/join", map[string]string{"key": loginEnv.Data.Key, "name": "Alice"})
	if joinRec.Code != http.StatusOK {
		t.Fatalf("join expected 200, got %d: %s", joinRec.Code, joinRec.Body.String())
	}
	var joinEnv struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	if err := json.Unmarshal(joinRec.Body.Bytes(), &joinEnv); err != nil {
		t.Fatal(err)
	}
	if joinEnv.Data.Token == "" {
		t.Fatal("expected a non-empty token")
	}

	moveRec := doJSON(e, http.MethodPost, "/api/game/move", map[string]string{"token": joinEnv.Data.Token, "direction": "up"})
	if moveRec.Code != http.StatusOK {
		t.Fatalf("move expected 200, got %d: %s", moveRec.Code, moveRec.Body.String())
	}
}

func TestLoginRejectsMalformedBody(t *testing.T) {
	rt := newTestRouter(t, permissiveLimits())
	e := rt.Engine()

	req := httptest.NewRequest(http.MethodPost, "/api/game/login", bytes.NewBufferString("{not json"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed body, got %d", rec.Code)
	}
}

func TestMoveRejectsUnknownToken(t *testing.T) {
	rt := newTestRouter(t, permissiveLimits())
	e := rt.Engine()

	rec := doJSON(e, http.MethodPost, "/api/game/move", map[string]string{"token": "bogus", "direction": "up"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for an unknown token, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestRateLimitedEndpointReturns429WithRetryAfter(t *testing.T) {
	tight := config.RateLimitsConfig{
		Login: config.RateLimitRule{WindowSeconds: 60, MaxRequests: 1},
		Join:  config.RateLimitRule{WindowSeconds: 60, MaxRequests: 1000},
		Move:  config.RateLimitRule{WindowSeconds: 60, MaxRequests: 1000},
	}
	rt := newTestRouter(t, tight)
	e := rt.Engine()

	first := doJSON(e, http.MethodPost, "/api/game/login", map[string]string{"uid": "u1", "paste": "testproof"})
	if first.Code != http.StatusOK {
		t.Fatalf("expected first login to succeed, got %d", first.Code)
	}

	second := doJSON(e, http.MethodPost, "/api/game/login", map[string]string{"uid": "u1", "paste": "testproof"})
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 on the second login within the window, got %d: %s", second.Code, second.Body.String())
	}
	var env envelopeBody
	if err := json.Unmarshal(second.Body.Bytes(), &env); err != nil {
		t.Fatal(err)
	}
	var data struct {
		RetryAfter float64 `json:"retry_after"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatal(err)
	}
	if data.RetryAfter < 0 {
		t.Fatalf("expected a non-negative retry_after, got %v", data.RetryAfter)
	}
}

func TestSetRateLimitsAppliesToTheNextRequest(t *testing.T) {
	rt := newTestRouter(t, permissiveLimits())
	e := rt.Engine()

	first := doJSON(e, http.MethodPost, "/api/game/login", map[string]string{"uid": "u1", "paste": "testproof"})
	if first.Code != http.StatusOK {
		t.Fatalf("expected first login to succeed under the permissive limit, got %d", first.Code)
	}

	rt.SetRateLimits(config.RateLimitsConfig{
		Login: config.RateLimitRule{WindowSeconds: 60, MaxRequests: 1},
		Join:  permissiveLimits().Join,
		Move:  permissiveLimits().Move,
	})

	second := doJSON(e, http.MethodPost, "/api/game/login", map[string]string{"uid": "u1", "paste": "testproof"})
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("expected the tightened limit to apply without rebuilding the engine, got %d", second.Code)
	}
}

func TestMetricsEndpointRendersPrometheusText(t *testing.T) {
	rt := newTestRouter(t, permissiveLimits())
	e := rt.Engine()

	doJSON(e, http.MethodGet, "/api/status", nil)

	rec := doJSON(e, http.MethodGet, "/api/metrics", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !bytes.Contains(rec.Body.Bytes(), []byte("snake_requests_total")) {
		t.Fatalf("expected prometheus exposition text, got: %s", rec.Body.String())
	}
}

func TestLeaderboardEndpointDefaultsSortKey(t *testing.T) {
	rt := newTestRouter(t, permissiveLimits())
	e := rt.Engine()

	rec := doJSON(e, http.MethodGet, "/api/leaderboard", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}
