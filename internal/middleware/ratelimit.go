package middleware

import (
	"github.com/cookshelf/recipe-api/internal/dto"
	"github.com/cookshelf/recipe-api/internal/ratelimit"
	"github.com/gofiber/fiber/v2"
)

// Throttle rejects requests once the client IP has used up its bucket.
func Throttle(l *ratelimit.KeyedRateLimiter) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !l.Allow(c.IP()) {
			return c.Status(fiber.StatusTooManyRequests).JSON(dto.ErrorResponse{
				Error: true, Message: "Too many requests, slow down",
			})
		}
		return c.Next()
	}
}
