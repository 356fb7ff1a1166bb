// Package ratelimit enforces per-IP and per-player request limits on the
// REST surface and on WebSocket connects.
package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"
	"go.uber.org/zap"

	"github.com/driftspace-vr/driftspace/server/go/internal/v1/config"
	"github.com/driftspace-vr/driftspace/server/go/internal/v1/logging"
	"github.com/driftspace-vr/driftspace/server/go/internal/v1/metrics"
)

// RateLimiter holds one limiter per surface. All share a single store so
// limits hold across instances when Redis is configured.
type RateLimiter struct {
	apiGlobal *limiter.Limiter
	apiAuth   *limiter.Limiter
	apiRooms  *limiter.Limiter
	wsIP      *limiter.Limiter
	wsPlayer  *limiter.Limiter

	store       limiter.Store
	redisClient *redis.Client
}

// NewRateLimiter parses the configured rates and builds the limiters over a
// Redis store, or a process-local memory store when redisClient is nil.
func NewRateLimiter(cfg *config.Config, redisClient *redis.Client) (*RateLimiter, error) {
	apiGlobalRate, err := limiter.NewRateFromFormatted(cfg.RateLimitApiGlobal)
	if err != nil {
		return nil, fmt.Errorf("invalid API global rate: %w", err)
	}

	apiAuthRate, err := limiter.NewRateFromFormatted(cfg.RateLimitApiAuth)
	if err != nil {
		return nil, fmt.Errorf("invalid API auth rate: %w", err)
	}

	apiRoomsRate, err := limiter.NewRateFromFormatted(cfg.RateLimitApiRooms)
	if err != nil {
		return nil, fmt.Errorf("invalid API rooms rate: %w", err)
	}

	wsIPRate, err := limiter.NewRateFromFormatted(cfg.RateLimitWsIp)
	if err != nil {
		return nil, fmt.Errorf("invalid WS IP rate: %w", err)
	}

	wsPlayerRate, err := limiter.NewRateFromFormatted(cfg.RateLimitWsPlayer)
	if err != nil {
		return nil, fmt.Errorf("invalid WS player rate: %w", err)
	}

	var store limiter.Store
	if redisClient != nil {
		s, err := sredis.NewStoreWithOptions(redisClient, limiter.StoreOptions{
			Prefix: "limiter:v1:",
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create redis store: %w", err)
		}
		store = s
		logging.Info(context.Background(), "rate limiter using redis store")
	} else {
		store = memory.NewStore()
		logging.Warn(context.Background(), "rate limiter using memory store, limits are per-instance")
	}

	return &RateLimiter{
		apiGlobal:   limiter.New(store, apiGlobalRate),
		apiAuth:     limiter.New(store, apiAuthRate),
		apiRooms:    limiter.New(store, apiRoomsRate),
		wsIP:        limiter.New(store, wsIPRate),
		wsPlayer:    limiter.New(store, wsPlayerRate),
		store:       store,
		redisClient: redisClient,
	}, nil
}

// GlobalMiddleware applies the baseline limit: keyed by player id when the
// bearer middleware has already identified one, by client IP otherwise.
func (rl *RateLimiter) GlobalMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP()
		limitType := "ip"
		if playerID, ok := c.Get("playerID"); ok {
			key = playerID.(string)
			limitType = "player"
		}
		rl.enforce(c, rl.apiGlobal, key, limitType)
	}
}

// MiddlewareForEndpoint applies a surface-specific limit. The auth surface is
// always keyed by IP: login and signup run before any identity exists, and
// per-IP is what slows a credential-stuffing loop.
func (rl *RateLimiter) MiddlewareForEndpoint(endpointType string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var limiterInstance *limiter.Limiter
		key := c.ClientIP()
		limitType := "ip"

		switch endpointType {
		case "auth":
			limiterInstance = rl.apiAuth
		case "rooms":
			limiterInstance = rl.apiRooms
			if playerID, ok := c.Get("playerID"); ok {
				key = playerID.(string)
				limitType = "player"
			}
		default:
			limiterInstance = rl.apiGlobal
			if playerID, ok := c.Get("playerID"); ok {
				key = playerID.(string)
				limitType = "player"
			}
		}

		rl.enforce(c, limiterInstance, key, limitType)
	}
}

// enforce runs one limiter check and either aborts with 429 or passes the
// request through. Store failures fail open: availability over strictness.
func (rl *RateLimiter) enforce(c *gin.Context, l *limiter.Limiter, key, limitType string) {
	ctx := c.Request.Context()
	lctx, err := l.Get(ctx, key)
	if err != nil {
		logging.Error(ctx, "rate limiter store failed", zap.Error(err))
		c.Next()
		return
	}

	c.Header("X-RateLimit-Limit", strconv.FormatInt(lctx.Limit, 10))
	c.Header("X-RateLimit-Remaining", strconv.FormatInt(lctx.Remaining, 10))
	c.Header("X-RateLimit-Reset", strconv.FormatInt(lctx.Reset, 10))

	if lctx.Reached {
		metrics.RateLimitExceeded.WithLabelValues(c.FullPath(), limitType).Inc()
		c.Header("Retry-After", strconv.FormatInt(lctx.Reset-time.Now().Unix(), 10))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error":       "Too many requests",
			"retry_after": lctx.Reset,
		})
		return
	}

	metrics.RateLimitRequests.WithLabelValues(c.FullPath()).Inc()
	c.Next()
}

// CheckWebSocket gates a WebSocket upgrade by client IP. It writes the 429
// itself so the caller can simply return.
func (rl *RateLimiter) CheckWebSocket(c *gin.Context) bool {
	ctx := c.Request.Context()

	ipContext, err := rl.wsIP.Get(ctx, c.ClientIP())
	if err != nil {
		logging.Error(ctx, "websocket rate limiter store failed", zap.Error(err))
		return true // fail open
	}

	if ipContext.Reached {
		metrics.RateLimitExceeded.WithLabelValues("websocket_connect", "ip").Inc()
		c.Header("X-RateLimit-Retry-After", strconv.FormatInt(ipContext.Reset, 10))
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "Too many connections from this IP"})
		return false
	}

	return true
}

// CheckWebSocketPlayer gates connects per player id, called after the first
// frame's token has been verified.
func (rl *RateLimiter) CheckWebSocketPlayer(ctx context.Context, playerID string) error {
	playerContext, err := rl.wsPlayer.Get(ctx, playerID)
	if err != nil {
		logging.Error(ctx, "websocket rate limiter store failed", zap.Error(err))
		return nil // fail open
	}

	if playerContext.Reached {
		metrics.RateLimitExceeded.WithLabelValues("websocket_connect", "player").Inc()
		return fmt.Errorf("connection rate limit exceeded for player")
	}

	return nil
}
