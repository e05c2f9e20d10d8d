package middleware

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/noah-isme/projtrack-api/internal/utils"
)

// RateLimit applies a sliding-window budget of max requests per window to each
// user, or to each client IP before authentication. Long-lived notification
// streams are not counted.
func RateLimit(scope string, max int, window time.Duration) fiber.Handler {
	if max <= 0 {
		max = 120
	}
	if window <= 0 {
		window = time.Minute
	}

	return limiter.New(limiter.Config{
		Max:               max,
		Expiration:        window,
		LimiterMiddleware: limiter.SlidingWindow{},
		Next: func(c *fiber.Ctx) bool {
			path := c.Path()
			return strings.HasSuffix(path, "/notifications/stream") || strings.HasSuffix(path, "/notifications/ws")
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			if id, ok := c.Locals("user_id").(uint); ok && id > 0 {
				return scope + ":user:" + strconv.FormatUint(uint64(id), 10)
			}
			return scope + ":ip:" + c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return utils.SendError(c, fiber.StatusTooManyRequests, "rate limit exceeded, slow down")
		},
	})
}
