package auth

import (
	"net/http"
	"sync"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

// Default write budget per user.
const (
	DefaultRPS   = 5
	DefaultBurst = 10
)

// Limiter hands out one token bucket per user id.
type Limiter struct {
	mu    sync.Mutex
	m     map[string]*rate.Limiter
	rps   float64
	burst int
}

// NewLimiter creates a Limiter. Non-positive values use the defaults.
func NewLimiter(rps float64, burst int) *Limiter {
	if rps <= 0 {
		rps = DefaultRPS
	}
	if burst <= 0 {
		burst = DefaultBurst
	}
	return &Limiter{m: make(map[string]*rate.Limiter), rps: rps, burst: burst}
}

func (l *Limiter) get(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	if lim, ok := l.m[key]; ok {
		return lim
	}
	lim := rate.NewLimiter(rate.Limit(l.rps), l.burst)
	l.m[key] = lim
	return lim
}

// Allow reports whether key may perform one more write now.
func (l *Limiter) Allow(key string) bool {
	return l.get(key).Allow()
}

// Middleware rejects requests over the caller's budget with 429. It must run
// after IdentityMiddleware.
func (l *Limiter) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !l.Allow(UserID(c)) {
				return c.JSON(http.StatusTooManyRequests, map[string]interface{}{
					"error": map[string]interface{}{
						"code":    "rate_limited",
						"message": "too many messages, slow down",
					},
				})
			}
			return next(c)
		}
	}
}
