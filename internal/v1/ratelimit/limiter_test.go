package ratelimit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftspace-vr/driftspace/server/go/internal/v1/config"
)

func testConfig() *config.Config {
	return &config.Config{
		RateLimitApiGlobal: "10-M",
		RateLimitApiAuth:   "2-M",
		RateLimitApiRooms:  "3-M",
		RateLimitWsIp:      "2-M",
		RateLimitWsPlayer:  "2-M",
	}
}

func newTestLimiter(t *testing.T) (*RateLimiter, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	rl, err := NewRateLimiter(testConfig(), rc)
	require.NoError(t, err)

	return rl, mr
}

func newRouter(mw gin.HandlerFunc, pre ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	for _, h := range pre {
		r.Use(h)
	}
	r.Use(mw)
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	return r
}

func performRequest(r *gin.Engine, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.RemoteAddr = ip + ":52341"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestNewRateLimiter_MemoryFallback(t *testing.T) {
	rl, err := NewRateLimiter(testConfig(), nil)
	require.NoError(t, err)
	assert.NotNil(t, rl)
	assert.Nil(t, rl.redisClient)
}

func TestNewRateLimiter_RejectsMalformedRate(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimitApiAuth = "lots"
	_, err := NewRateLimiter(cfg, nil)
	assert.Error(t, err)
}

func TestGlobalMiddleware_KeyedByIP(t *testing.T) {
	rl, mr := newTestLimiter(t)
	defer mr.Close()

	r := newRouter(rl.GlobalMiddleware())

	for i := 0; i < 10; i++ {
		w := performRequest(r, "10.0.0.1")
		require.Equal(t, http.StatusOK, w.Code)
		assert.NotEmpty(t, w.Header().Get("X-RateLimit-Remaining"))
	}

	w := performRequest(r, "10.0.0.1")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	// A different IP has its own budget.
	w = performRequest(r, "10.0.0.2")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGlobalMiddleware_KeyedByPlayerWhenAuthenticated(t *testing.T) {
	rl, mr := newTestLimiter(t)
	defer mr.Close()

	identify := func(id string) gin.HandlerFunc {
		return func(c *gin.Context) { c.Set("playerID", id) }
	}

	alice := newRouter(rl.GlobalMiddleware(), identify("user_alice"))
	bob := newRouter(rl.GlobalMiddleware(), identify("user_bob"))

	// Same IP, different players: budgets do not collide.
	for i := 0; i < 10; i++ {
		require.Equal(t, http.StatusOK, performRequest(alice, "10.0.0.1").Code)
	}
	assert.Equal(t, http.StatusTooManyRequests, performRequest(alice, "10.0.0.1").Code)
	assert.Equal(t, http.StatusOK, performRequest(bob, "10.0.0.1").Code)
}

func TestMiddlewareForEndpoint_AuthSurfaceIsStrict(t *testing.T) {
	rl, mr := newTestLimiter(t)
	defer mr.Close()

	r := newRouter(rl.MiddlewareForEndpoint("auth"))

	require.Equal(t, http.StatusOK, performRequest(r, "10.0.0.1").Code)
	require.Equal(t, http.StatusOK, performRequest(r, "10.0.0.1").Code)
	assert.Equal(t, http.StatusTooManyRequests, performRequest(r, "10.0.0.1").Code)
}

func TestMiddlewareForEndpoint_RoomsKeyedByPlayer(t *testing.T) {
	rl, mr := newTestLimiter(t)
	defer mr.Close()

	identify := func(c *gin.Context) { c.Set("playerID", "user_1") }
	r := newRouter(rl.MiddlewareForEndpoint("rooms"), identify)

	for i := 0; i < 3; i++ {
		require.Equal(t, http.StatusOK, performRequest(r, "10.0.0.1").Code)
	}
	assert.Equal(t, http.StatusTooManyRequests, performRequest(r, "10.0.0.1").Code)
}

func TestCheckWebSocket_LimitsByIP(t *testing.T) {
	rl, mr := newTestLimiter(t)
	defer mr.Close()

	gin.SetMode(gin.TestMode)
	check := func(ip string) (bool, *httptest.ResponseRecorder) {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/ws/rooms/room_1", nil)
		c.Request.RemoteAddr = ip + ":52341"
		return rl.CheckWebSocket(c), w
	}

	ok, _ := check("10.0.0.1")
	require.True(t, ok)
	ok, _ = check("10.0.0.1")
	require.True(t, ok)

	ok, w := check("10.0.0.1")
	assert.False(t, ok)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestCheckWebSocketPlayer(t *testing.T) {
	rl, mr := newTestLimiter(t)
	defer mr.Close()

	ctx := context.Background()
	require.NoError(t, rl.CheckWebSocketPlayer(ctx, "user_1"))
	require.NoError(t, rl.CheckWebSocketPlayer(ctx, "user_1"))
	assert.Error(t, rl.CheckWebSocketPlayer(ctx, "user_1"))

	// Another player is unaffected.
	assert.NoError(t, rl.CheckWebSocketPlayer(ctx, "user_2"))
}

func TestRateLimiter_FailsOpenWhenStoreDies(t *testing.T) {
	rl, mr := newTestLimiter(t)

	r := newRouter(rl.GlobalMiddleware())
	require.Equal(t, http.StatusOK, performRequest(r, "10.0.0.1").Code)

	mr.Close()

	// Store gone: requests pass rather than surface a 500 or a 429.
	assert.Equal(t, http.StatusOK, performRequest(r, "10.0.0.1").Code)
}
