// Package middleware implements HTTP-layer concerns shared by every route:
// rate limiting in front of the Allocator/Resolver endpoints (spec_full §5
// "backpressure" is about PS; this is the outer, per-client layer in front
// of it).
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// Strategy selects the rate limiting algorithm.
type Strategy string

const (
	// FixedWindow counts requests per fixed time bucket. Allows up to 2x
	// burst at bucket boundaries but costs one Redis key per bucket.
	FixedWindow Strategy = "fixed_window"
	// SlidingWindow stores a timestamp per request in a sorted set. Precise,
	// at the cost of O(limit) memory per key.
	SlidingWindow Strategy = "sliding_window"
	// TokenBucket refills tokens at limit/window per second, allowing
	// controlled bursts up to the bucket capacity.
	TokenBucket Strategy = "token_bucket"
)

// Config configures a RateLimiter.
type Config struct {
	Strategy     Strategy
	Limit        int
	Window       time.Duration
	KeyFunc      func(*gin.Context) string
	ErrorHandler func(*gin.Context)
	SkipFunc     func(*gin.Context) bool
}

// RateLimiter enforces Config against a shared Redis instance, so the limit
// holds across every server replica.
type RateLimiter struct {
	redis *redis.Client
	cfg   *Config
	log   *slog.Logger
}

// NewRateLimiter builds a RateLimiter, filling in defaults for any unset
// Config field.
func NewRateLimiter(client *redis.Client, cfg *Config, log *slog.Logger) *RateLimiter {
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = IPAndPathKey
	}
	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = defaultErrorHandler
	}
	if cfg.SkipFunc == nil {
		cfg.SkipFunc = func(*gin.Context) bool { return false }
	}
	if log == nil {
		log = slog.Default()
	}
	return &RateLimiter{redis: client, cfg: cfg, log: log}
}

// Middleware returns the gin.HandlerFunc to install with router.Use.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl.cfg.SkipFunc(c) {
			c.Next()
			return
		}

		key := rl.cfg.KeyFunc(c)
		allowed, remaining, resetAt, err := rl.check(c.Request.Context(), key)
		if err != nil {
			// Redis being down must not take the shorten/redirect path down
			// with it: fail open and let the request through.
			rl.log.Warn("rate limiter backend unavailable, failing open", "error", err)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(rl.cfg.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(resetAt, 10))

		if !allowed {
			retryAfter := resetAt - time.Now().Unix()
			if retryAfter < 0 {
				retryAfter = 0
			}
			c.Header("Retry-After", strconv.FormatInt(retryAfter, 10))
			rl.cfg.ErrorHandler(c)
			c.Abort()
			return
		}

		c.Next()
	}
}

func (rl *RateLimiter) check(ctx context.Context, key string) (allowed bool, remaining int, resetAt int64, err error) {
	switch rl.cfg.Strategy {
	case SlidingWindow:
		return rl.slidingWindow(ctx, key)
	case TokenBucket:
		return rl.tokenBucket(ctx, key)
	default:
		return rl.fixedWindow(ctx, key)
	}
}

func (rl *RateLimiter) fixedWindow(ctx context.Context, key string) (bool, int, int64, error) {
	now := time.Now()
	windowStart := now.Truncate(rl.cfg.Window).Unix()
	bucketKey := fmt.Sprintf("%s:%d", key, windowStart)

	pipe := rl.redis.Pipeline()
	incr := pipe.Incr(ctx, bucketKey)
	pipe.Expire(ctx, bucketKey, rl.cfg.Window*2)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, 0, err
	}

	count := int(incr.Val())
	resetAt := windowStart + int64(rl.cfg.Window.Seconds())
	remaining := rl.cfg.Limit - count
	if remaining < 0 {
		remaining = 0
	}
	return count <= rl.cfg.Limit, remaining, resetAt, nil
}

func (rl *RateLimiter) slidingWindow(ctx context.Context, key string) (bool, int, int64, error) {
	now := time.Now()
	cutoff := now.Add(-rl.cfg.Window).UnixNano()
	nowNano := now.UnixNano()

	pipe := rl.redis.Pipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(cutoff, 10))
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(nowNano), Member: nowNano})
	card := pipe.ZCard(ctx, key)
	pipe.Expire(ctx, key, rl.cfg.Window*2)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, 0, err
	}

	count := int(card.Val())
	resetAt := now.Add(rl.cfg.Window).Unix()
	remaining := rl.cfg.Limit - count
	if remaining < 0 {
		remaining = 0
	}
	return count <= rl.cfg.Limit, remaining, resetAt, nil
}

func (rl *RateLimiter) tokenBucket(ctx context.Context, key string) (bool, int, int64, error) {
	now := time.Now()
	tokensKey := key + ":tokens"
	refillKey := key + ":last_refill"
	refillRate := float64(rl.cfg.Limit) / rl.cfg.Window.Seconds()

	pipe := rl.redis.Pipeline()
	getTokens := pipe.Get(ctx, tokensKey)
	getRefill := pipe.Get(ctx, refillKey)
	_, _ = pipe.Exec(ctx)

	tokens := float64(rl.cfg.Limit)
	if v, err := strconv.ParseFloat(getTokens.Val(), 64); err == nil && getTokens.Err() == nil {
		tokens = v
	}
	lastRefill := now.Unix()
	if v, err := strconv.ParseInt(getRefill.Val(), 10, 64); err == nil && getRefill.Err() == nil {
		lastRefill = v
	}

	elapsed := now.Unix() - lastRefill
	tokens += float64(elapsed) * refillRate
	if tokens > float64(rl.cfg.Limit) {
		tokens = float64(rl.cfg.Limit)
	}

	allowed := tokens >= 1.0
	if allowed {
		tokens -= 1.0
	}

	writeBack := rl.redis.Pipeline()
	writeBack.Set(ctx, tokensKey, fmt.Sprintf("%.4f", tokens), rl.cfg.Window*2)
	writeBack.Set(ctx, refillKey, now.Unix(), rl.cfg.Window*2)
	if _, err := writeBack.Exec(ctx); err != nil {
		return false, 0, 0, err
	}

	resetAt := now.Unix()
	if tokens < 1.0 && refillRate > 0 {
		resetAt += int64((1.0 - tokens) / refillRate)
	}
	remaining := int(tokens)
	if remaining < 0 {
		remaining = 0
	}
	return allowed, remaining, resetAt, nil
}

func defaultErrorHandler(c *gin.Context) {
	c.JSON(http.StatusTooManyRequests, gin.H{
		"error":   "too_many_requests",
		"message": "rate limit exceeded, try again later",
	})
}

// IPBasedKey rate limits per client IP across all endpoints.
func IPBasedKey(c *gin.Context) string {
	return fmt.Sprintf("shortcore:ratelimit:ip:%s", c.ClientIP())
}

// PathBasedKey rate limits per endpoint, shared across all clients.
func PathBasedKey(c *gin.Context) string {
	return fmt.Sprintf("shortcore:ratelimit:path:%s", c.Request.URL.Path)
}

// IPAndPathKey rate limits per client IP per endpoint. Default KeyFunc.
func IPAndPathKey(c *gin.Context) string {
	return fmt.Sprintf("shortcore:ratelimit:%s:%s", c.ClientIP(), c.Request.URL.Path)
}

// SkipObservability exempts the operational endpoints from rate limiting:
// a monitoring system polling /health or /metrics should never get 429'd.
func SkipObservability(c *gin.Context) bool {
	path := c.Request.URL.Path
	return path == "/health" || path == "/metrics"
}
