package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/teller-id/teller/internal/account"
)

// LoginRateLimit caps login attempts per account identifier (falling back to
// client IP) using Redis. This is a transport-level throttle in front of the
// guard's own lockout accounting; without Redis it is a no-op.
func LoginRateLimit(cache *redis.Client, maxPerMin int) fiber.Handler {
	if maxPerMin <= 0 {
		maxPerMin = 5
	}
	return func(c *fiber.Ctx) error {
		if cache == nil {
			return c.Next()
		}

		var req struct {
			AccountID string `json:"account_id"`
		}
		_ = c.BodyParser(&req)
		subject := account.NormalizeID(req.AccountID)
		if subject == "" {
			subject = c.IP()
		}

		key := "rl:login:" + strings.ToLower(subject)
		cnt, err := cache.Incr(c.UserContext(), key).Result()
		if err != nil {
			return c.Next() // fail-open on cache errors
		}
		if cnt == 1 {
			cache.Expire(c.UserContext(), key, time.Minute)
		}
		if cnt > int64(maxPerMin) {
			return fiber.NewError(http.StatusTooManyRequests, "too many login attempts, try again later")
		}
		return c.Next()
	}
}
