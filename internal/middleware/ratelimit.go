package middleware

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

const rateLimitWindow = time.Minute

// RateLimit caps requests per client IP within a one-minute window using a Redis
// counter under rl:<scope>:<ip>. Without Redis, or when Redis fails, requests pass.
func RateLimit(cache *redis.Client, scope string, maxPerMin int, logger *slog.Logger) fiber.Handler {
	if maxPerMin <= 0 {
		maxPerMin = 20
	}
	return func(c *fiber.Ctx) error {
		if cache == nil {
			return c.Next()
		}
		key := "rl:" + scope + ":" + c.IP()
		ctx := c.UserContext()

		cnt, err := cache.Incr(ctx, key).Result()
		if err != nil {
			logger.Warn("rate limit counter unavailable", slog.String("scope", scope), slog.Any("error", err))
			return c.Next()
		}
		if cnt == 1 {
			cache.Expire(ctx, key, rateLimitWindow)
		}

		c.Set("X-RateLimit-Limit", strconv.Itoa(maxPerMin))
		if cnt > int64(maxPerMin) {
			retry := rateLimitWindow
			if ttl, err := cache.TTL(ctx, key).Result(); err == nil && ttl > 0 {
				retry = ttl
			}
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(retry.Round(time.Second).Seconds())))
			return fiber.NewError(http.StatusTooManyRequests, "too many messages, try again later")
		}
		c.Set("X-RateLimit-Remaining", strconv.FormatInt(int64(maxPerMin)-cnt, 10))
		return c.Next()
	}
}
