package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func TestLimiter_PerUserBuckets(t *testing.T) {
	l := NewLimiter(0.001, 2)

	assert.True(t, l.Allow("alice"))
	assert.True(t, l.Allow("alice"))
	assert.False(t, l.Allow("alice"), "burst exhausted")
	assert.True(t, l.Allow("bob"), "buckets are per user")
}

func TestNewLimiter_Defaults(t *testing.T) {
	l := NewLimiter(0, -1)
	assert.Equal(t, float64(DefaultRPS), l.rps)
	assert.Equal(t, DefaultBurst, l.burst)
}

func TestLimiter_Middleware(t *testing.T) {
	l := NewLimiter(0.001, 1)
	e := echo.New()
	e.POST("/send", func(c echo.Context) error {
		return c.NoContent(http.StatusCreated)
	}, IdentityMiddleware(), l.Middleware())

	send := func() int {
		req := httptest.NewRequest(http.MethodPost, "/send", nil)
		req.Header.Set(HeaderUserID, "alice")
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusCreated, send())
	assert.Equal(t, http.StatusTooManyRequests, send())
}
