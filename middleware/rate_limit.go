package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"rescuelink/models"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Redis        *redis.Client
	Requests     int           // Number of requests allowed
	Window       time.Duration // Time window
	KeyPrefix    string        // Redis key prefix
	ErrorMessage string
}

// RateLimitStrategy selects what a limit is counted against
type RateLimitStrategy string

const (
	StrategyIP       RateLimitStrategy = "ip"
	StrategyUser     RateLimitStrategy = "user"
	StrategyUserOrIP RateLimitStrategy = "user_or_ip"
)

// RateLimiter is a sliding window limiter backed by Redis sorted sets. It is
// shared by every gateway replica pointing at the same Redis.
type RateLimiter struct {
	config   RateLimitConfig
	strategy RateLimitStrategy
}

func NewRateLimiter(config RateLimitConfig, strategy RateLimitStrategy) *RateLimiter {
	if config.KeyPrefix == "" {
		config.KeyPrefix = "rate_limit"
	}
	if config.ErrorMessage == "" {
		config.ErrorMessage = "Rate limit exceeded"
	}
	return &RateLimiter{
		config:   config,
		strategy: strategy,
	}
}

// Middleware returns the rate limiting middleware. Without Redis every
// request is let through.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return gin.HandlerFunc(func(c *gin.Context) {
		if rl.config.Redis == nil {
			c.Next()
			return
		}

		key := rl.getKey(c)
		allowed, resetTime, remaining, err := rl.checkRateLimit(c.Request.Context(), key)
		if err != nil {
			logrus.Errorf("Rate limit check failed: %v", err)
			// Allow request to proceed on error
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(rl.config.Requests))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(resetTime.Unix(), 10))

		if !allowed {
			rl.handleRateLimitExceeded(c, resetTime)
			return
		}
		c.Next()
	})
}

func (rl *RateLimiter) checkRateLimit(ctx context.Context, key string) (allowed bool, resetTime time.Time, remaining int, err error) {
	now := time.Now()
	window := rl.config.Window
	member := fmt.Sprintf("%d", now.UnixNano())

	pipe := rl.config.Redis.Pipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", fmt.Sprintf("%d", now.Add(-window).UnixNano()))
	count := pipe.ZCard(ctx, key)
	pipe.ZAdd(ctx, key, &redis.Z{Score: float64(now.UnixNano()), Member: member})
	pipe.Expire(ctx, key, window+time.Minute)

	if _, err := pipe.Exec(ctx); err != nil {
		return false, time.Time{}, 0, err
	}

	currentCount := count.Val()
	remaining = rl.config.Requests - int(currentCount) - 1
	if remaining < 0 {
		remaining = 0
	}
	resetTime = now.Add(window)
	allowed = currentCount < int64(rl.config.Requests)

	// A rejected request does not count against the window
	if !allowed {
		rl.config.Redis.ZRem(ctx, key, member)
	}
	return allowed, resetTime, remaining, nil
}

func (rl *RateLimiter) getKey(c *gin.Context) string {
	prefix := rl.config.KeyPrefix
	userID := c.GetString("userID")

	switch rl.strategy {
	case StrategyUser:
		if userID != "" {
			return fmt.Sprintf("%s:user:%s", prefix, userID)
		}
	case StrategyUserOrIP:
		if userID != "" {
			return fmt.Sprintf("%s:user:%s", prefix, userID)
		}
	}
	return fmt.Sprintf("%s:ip:%s", prefix, c.ClientIP())
}

func (rl *RateLimiter) handleRateLimitExceeded(c *gin.Context, resetTime time.Time) {
	retryAfter := time.Until(resetTime).Seconds()
	if retryAfter < 0 {
		retryAfter = 0
	}
	c.Header("Retry-After", strconv.Itoa(int(retryAfter)))

	response := models.NewErrorResponse("RATE_LIMIT_EXCEEDED", rl.config.ErrorMessage, "TOO_MANY_REQUESTS", c.GetString("request_id")).
		WithDetails("retry_after", int(retryAfter))

	logrus.WithFields(logrus.Fields{
		"client_ip":   c.ClientIP(),
		"user_id":     c.GetString("userID"),
		"path":        c.Request.URL.Path,
		"retry_after": retryAfter,
	}).Warn("Rate limit exceeded")

	c.AbortWithStatusJSON(http.StatusTooManyRequests, response)
}

// AuthRateLimit limits login attempts per client address
func AuthRateLimit(client *redis.Client) gin.HandlerFunc {
	return NewRateLimiter(RateLimitConfig{
		Redis:        client,
		Requests:     5,
		Window:       time.Minute,
		KeyPrefix:    "rescuelink:auth_rate_limit",
		ErrorMessage: "Too many authentication attempts. Please try again later.",
	}, StrategyIP).Middleware()
}

// ReportRateLimit limits emergency reports per citizen
func ReportRateLimit(client *redis.Client) gin.HandlerFunc {
	return NewRateLimiter(RateLimitConfig{
		Redis:        client,
		Requests:     3,
		Window:       time.Minute,
		KeyPrefix:    "rescuelink:report_rate_limit",
		ErrorMessage: "Emergency report rate limit exceeded.",
	}, StrategyUser).Middleware()
}

// PortalRateLimit limits portal API usage per user
func PortalRateLimit(client *redis.Client) gin.HandlerFunc {
	return NewRateLimiter(RateLimitConfig{
		Redis:        client,
		Requests:     600,
		Window:       time.Minute,
		KeyPrefix:    "rescuelink:portal_rate_limit",
		ErrorMessage: "Too many requests. Please try again later.",
	}, StrategyUserOrIP).Middleware()
}
