package ratelimit_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ceyewan/lexigate/ratelimit"
	"github.com/ceyewan/lexigate/testkit"
	"github.com/ceyewan/lexigate/xerrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLoginRouter(limiter ratelimit.Limiter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/login",
		ratelimit.Middleware(limiter,
			ratelimit.WithIdentityFunc(func(c *gin.Context) string {
				return c.GetHeader("X-Student-ID")
			}),
			ratelimit.WithMiddlewareLogger(testkit.NewLogger())),
		func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"ok": true})
		})
	return router
}

func doLogin(router *gin.Engine, student string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	req.Header.Set("X-Student-ID", student)
	router.ServeHTTP(rec, req)
	return rec
}

func TestMiddlewareAllowsWithHeaders(t *testing.T) {
	limiter := ratelimit.NewLocal(&ratelimit.Config{MaxAttempts: 5, Window: 15 * time.Minute})
	router := newLoginRouter(limiter)

	rec := doLogin(router, "alice")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "5", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "4", rec.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, rec.Header().Get("X-RateLimit-Reset"))
}

func TestMiddlewareDeniesWithRetryAfter(t *testing.T) {
	limiter := ratelimit.NewLocal(&ratelimit.Config{MaxAttempts: 2, Window: 15 * time.Minute})
	router := newLoginRouter(limiter)

	doLogin(router, "alice")
	doLogin(router, "alice")
	rec := doLogin(router, "alice")

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	retryAfter, err := strconv.Atoi(rec.Header().Get("Retry-After"))
	require.NoError(t, err)
	assert.Positive(t, retryAfter)

	var body struct {
		Error      string `json:"error"`
		RetryAfter int64  `json:"retry_after"`
		ResetAt    int64  `json:"reset_at"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "too many attempts", body.Error)
	assert.Positive(t, body.RetryAfter)

	// 其他学生不受影响
	assert.Equal(t, http.StatusOK, doLogin(router, "bob").Code)
}

// brokenLimiter 判定自身失败
type brokenLimiter struct{}

func (brokenLimiter) Check(ctx context.Context, identity string) (*ratelimit.Decision, error) {
	return nil, xerrors.New("limiter broken")
}

func TestMiddlewareFailsOpen(t *testing.T) {
	router := newLoginRouter(brokenLimiter{})
	rec := doLogin(router, "alice")
	// 限流器故障时放行请求，而不是把所有人挡在门外
	assert.Equal(t, http.StatusOK, rec.Code)
}
