// Package httpapi is the REST control plane: accounts, tokens, room
// management, voice enrollment, matchmaking and server stats. The WebSocket
// data plane lives in transport; nothing here holds a connection open.
package httpapi

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/driftspace-vr/driftspace/server/go/internal/v1/accounts"
	"github.com/driftspace-vr/driftspace/server/go/internal/v1/dispatch"
	"github.com/driftspace-vr/driftspace/server/go/internal/v1/logging"
	"github.com/driftspace-vr/driftspace/server/go/internal/v1/matchmaking"
	"github.com/driftspace-vr/driftspace/server/go/internal/v1/ratelimit"
	"github.com/driftspace-vr/driftspace/server/go/internal/v1/registry"
	"github.com/driftspace-vr/driftspace/server/go/internal/v1/token"
)

// playerIDKey is the gin context key the auth middleware fills and the rate
// limiter reads for per-player keys.
const playerIDKey = "playerID"

// bearerTokenKey carries the raw token so logout can drop its session entry.
const bearerTokenKey = "bearerToken"

// Handlers bundles the control plane's collaborators.
type Handlers struct {
	accounts *accounts.Store
	tokens   *token.Service
	sessions *token.Sessions
	registry *registry.Registry
	queue    *matchmaking.Queue
	voice    *dispatch.Voice
}

func NewHandlers(accts *accounts.Store, tokens *token.Service, sessions *token.Sessions, reg *registry.Registry, queue *matchmaking.Queue, voice *dispatch.Voice) *Handlers {
	return &Handlers{
		accounts: accts,
		tokens:   tokens,
		sessions: sessions,
		registry: reg,
		queue:    queue,
		voice:    voice,
	}
}

// RegisterRoutes mounts everything under /api/v1. A nil limiter registers no
// rate limiting, which keeps handler tests independent of limiter state.
func (h *Handlers) RegisterRoutes(r gin.IRouter, rl *ratelimit.RateLimiter) {
	limit := func(endpoint string) gin.HandlerFunc {
		if rl == nil {
			return func(*gin.Context) {}
		}
		return rl.MiddlewareForEndpoint(endpoint)
	}

	api := r.Group("/api/v1")
	if rl != nil {
		api.Use(rl.GlobalMiddleware())
	}

	authGroup := api.Group("/auth")
	authGroup.POST("/signup", limit("auth"), h.signup)
	authGroup.POST("/login", limit("auth"), h.login)
	authGroup.POST("/logout", h.requireAuth, h.logout)

	api.GET("/players/:id", h.getPlayer)

	me := api.Group("/me", h.requireAuth)
	me.PUT("/avatar", h.updateAvatar)
	me.POST("/friends", h.addFriend)
	me.POST("/games", h.recordCreatedGame)
	me.POST("/achievements", h.unlockAchievement)

	rooms := api.Group("/rooms")
	rooms.POST("", h.requireAuth, limit("rooms"), h.createRoom)
	rooms.GET("", h.listRooms)
	rooms.GET("/:id", h.getRoom)
	rooms.POST("/:id/voice/join", h.requireAuth, h.joinVoice)
	rooms.POST("/:id/voice/leave", h.requireAuth, h.leaveVoice)

	mm := api.Group("/matchmaking", h.requireAuth)
	mm.POST("/queue", h.enqueueMatch)
	mm.DELETE("/queue/:gameId", h.dequeueMatch)
	mm.POST("/match", h.tryMatch)

	api.GET("/stats", h.stats)
}

// requireAuth verifies the bearer token and stores the caller's identity in
// the context. The session map is bookkeeping only; the signature decides.
func (h *Handlers) requireAuth(c *gin.Context) {
	header := c.GetHeader("Authorization")
	tokenString, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || tokenString == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing bearer token"})
		return
	}

	playerID, err := h.tokens.Verify(tokenString)
	if err != nil {
		logging.Debug(c.Request.Context(), "bearer token rejected", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
		return
	}

	c.Set(playerIDKey, playerID)
	c.Set(bearerTokenKey, tokenString)
	c.Next()
}

func (h *Handlers) stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.registry.GetStats())
}
