// Package ratelimit enforces the gateway's per-account/per-IP request
// budgets using ulule/limiter backed by Redis.
package ratelimit

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"
	"go.uber.org/zap"

	"github.com/amazingchow/game-companion-gateway/internal/config"
	"github.com/amazingchow/game-companion-gateway/internal/logging"
	"github.com/amazingchow/game-companion-gateway/internal/metrics"
)

// RateLimiter holds the gateway's HTTP rate limiter instances.
type RateLimiter struct {
	apiGlobal *limiter.Limiter
	apiRooms  *limiter.Limiter
}

// NewRateLimiter builds a RateLimiter backed by redisClient.
func NewRateLimiter(cfg *config.Config, redisClient *redis.Client) (*RateLimiter, error) {
	globalRate, err := limiter.NewRateFromFormatted(cfg.RateLimitAPIGlobal)
	if err != nil {
		return nil, fmt.Errorf("ratelimit: invalid API global rate: %w", err)
	}
	roomsRate, err := limiter.NewRateFromFormatted(cfg.RateLimitAPIRooms)
	if err != nil {
		return nil, fmt.Errorf("ratelimit: invalid API rooms rate: %w", err)
	}

	store, err := sredis.NewStoreWithOptions(redisClient, limiter.StoreOptions{Prefix: "limiter:gateway:"})
	if err != nil {
		return nil, fmt.Errorf("ratelimit: create redis store: %w", err)
	}

	return &RateLimiter{
		apiGlobal: limiter.New(store, globalRate),
		apiRooms:  limiter.New(store, roomsRate),
	}, nil
}

// identityKey prefers the authenticated account (set by middleware.AuthGate)
// and falls back to client IP for unauthenticated/public routes.
func identityKey(c *gin.Context) string {
	if account, ok := c.Get("account"); ok {
		if s, ok := account.(string); ok && s != "" {
			return "acct:" + s
		}
	}
	return "ip:" + c.ClientIP()
}

// Global enforces RATE_LIMIT_API_GLOBAL across every route it wraps.
func (rl *RateLimiter) Global() gin.HandlerFunc {
	return rl.middleware(rl.apiGlobal, "global")
}

// Rooms enforces RATE_LIMIT_API_ROOMS, a tighter budget for the room
// lifecycle endpoints.
func (rl *RateLimiter) Rooms() gin.HandlerFunc {
	return rl.middleware(rl.apiRooms, "rooms")
}

func (rl *RateLimiter) middleware(lim *limiter.Limiter, label string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := identityKey(c)
		ctx := c.Request.Context()

		result, err := lim.Get(ctx, key)
		if err != nil {
			// Fail open: an unreachable rate-limit store must not take down
			// the API surface it is meant to protect.
			logging.Error(ctx, "rate limiter store failed", zap.Error(err), zap.String("limiter", label))
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.FormatInt(result.Limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(result.Remaining, 10))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(result.Reset, 10))

		if result.Reached {
			metrics.RateLimitExceeded.WithLabelValues(c.FullPath(), label).Inc()
			c.Header("Retry-After", strconv.FormatInt(result.Reset-time.Now().Unix(), 10))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "too many requests",
				"retry_after": result.Reset,
			})
			return
		}

		metrics.RateLimitRequests.WithLabelValues(c.FullPath()).Inc()
		c.Next()
	}
}
