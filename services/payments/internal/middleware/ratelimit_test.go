package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRateLimitTest(t *testing.T, limit int) *RateLimitMiddleware {
	t.Helper()

	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = redisClient.Close() })

	return NewRateLimitMiddleware(RateLimitConfig{
		Redis:  redisClient,
		Limit:  limit,
		Window: time.Minute,
	})
}

func doRequest(mw *RateLimitMiddleware, userID string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/payments/create-payment", nil)
	c.Request.RemoteAddr = "192.168.1.1:12345"
	if userID != "" {
		c.Set(ContextUserID, userID)
	}
	mw.Handle()(c)
	return w
}

func TestRateLimitMiddleware_AllowsRequests(t *testing.T) {
	mw := newRateLimitTest(t, 5)

	for i := 0; i < 5; i++ {
		w := doRequest(mw, "user-1")
		assert.NotEqual(t, http.StatusTooManyRequests, w.Code, "запрос %d должен пройти", i+1)
		assert.NotEmpty(t, w.Header().Get("X-RateLimit-Limit"))
		assert.NotEmpty(t, w.Header().Get("X-RateLimit-Remaining"))
	}
}

func TestRateLimitMiddleware_BlocksExcessRequests(t *testing.T) {
	mw := newRateLimitTest(t, 3)

	for i := 0; i < 3; i++ {
		w := doRequest(mw, "user-1")
		require.NotEqual(t, http.StatusTooManyRequests, w.Code)
	}

	w := doRequest(mw, "user-1")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
}

func TestRateLimitMiddleware_PerUserCounters(t *testing.T) {
	mw := newRateLimitTest(t, 2)

	// user-1 исчерпал лимит
	doRequest(mw, "user-1")
	doRequest(mw, "user-1")
	blocked := doRequest(mw, "user-1")
	require.Equal(t, http.StatusTooManyRequests, blocked.Code)

	// user-2 лимит не делит
	w := doRequest(mw, "user-2")
	assert.NotEqual(t, http.StatusTooManyRequests, w.Code)
}

func TestRateLimitMiddleware_AnonymousFallsBackToIP(t *testing.T) {
	mw := newRateLimitTest(t, 1)

	first := doRequest(mw, "")
	require.NotEqual(t, http.StatusTooManyRequests, first.Code)

	second := doRequest(mw, "")
	assert.Equal(t, http.StatusTooManyRequests, second.Code, "второй запрос с того же IP блокируется")
}

func TestRateLimitMiddleware_RedisDownFailOpen(t *testing.T) {
	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	mr.Close()

	mw := NewRateLimitMiddleware(RateLimitConfig{
		Redis:  redisClient,
		Limit:  1,
		Window: time.Minute,
	})

	// Redis недоступен — все запросы проходят
	for i := 0; i < 3; i++ {
		w := doRequest(mw, "user-1")
		assert.NotEqual(t, http.StatusTooManyRequests, w.Code)
	}
}

func TestRateLimitMiddleware_Defaults(t *testing.T) {
	mw := NewRateLimitMiddleware(RateLimitConfig{})
	assert.Equal(t, 60, mw.limit)
	assert.Equal(t, time.Minute, mw.window)
}
