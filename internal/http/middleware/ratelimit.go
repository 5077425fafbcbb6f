package middleware

import (
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/time/rate"
)

const limiterIdle = 5 * time.Minute

type clientLimiter struct {
	limiter *rate.Limiter
	expires time.Time
}

// RateLimit applies a per-IP token bucket refilled at perMinute tokens per
// minute with a burst of half that. Rejected requests get
// fiber.ErrTooManyRequests for the global error handler to render.
func RateLimit(perMinute int) fiber.Handler {
	perMinute = max(perMinute, 1)
	limit := rate.Every(time.Minute / time.Duration(perMinute))
	burst := max(perMinute/2, 1)

	var (
		mu       sync.Mutex
		limiters = map[string]*clientLimiter{}
	)

	get := func(ip string, now time.Time) *rate.Limiter {
		mu.Lock()
		defer mu.Unlock()

		for key, l := range limiters {
			if now.After(l.expires) {
				delete(limiters, key)
			}
		}
		l, ok := limiters[ip]
		if !ok {
			l = &clientLimiter{limiter: rate.NewLimiter(limit, burst)}
			limiters[ip] = l
		}
		l.expires = now.Add(limiterIdle)
		return l.limiter
	}

	return func(c *fiber.Ctx) error {
		if !get(c.IP(), time.Now()).Allow() {
			return fiber.ErrTooManyRequests
		}
		return c.Next()
	}
}
