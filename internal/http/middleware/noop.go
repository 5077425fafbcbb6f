package middleware

import "github.com/gofiber/fiber/v2"

// Noop passes the request through. Used where a middleware slot is optional.
func Noop() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.Next()
	}
}
