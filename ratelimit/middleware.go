package ratelimit

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ceyewan/lexigate/clog"
)

// IdentityFunc 从请求中提取限流身份
type IdentityFunc func(c *gin.Context) string

// MiddlewareOption 配置中间件
type MiddlewareOption func(*middleware)

// WithIdentityFunc 替换身份提取逻辑（默认取客户端 IP）
func WithIdentityFunc(fn IdentityFunc) MiddlewareOption {
	return func(m *middleware) {
		m.identity = fn
	}
}

// WithMiddlewareLogger 设置日志器
func WithMiddlewareLogger(logger clog.Logger) MiddlewareOption {
	return func(m *middleware) {
		m.logger = logger
	}
}

type middleware struct {
	limiter  Limiter
	identity IdentityFunc
	logger   clog.Logger
}

// Middleware 返回限流 gin 中间件。
// 被拒绝的请求收到结构化的 429 响应与 Retry-After 头；
// 放行的请求带上 X-RateLimit-* 头继续处理。
// 限流器自身出错时放行请求：宁可放过尝试，不可挡住正常登录。
func Middleware(limiter Limiter, opts ...MiddlewareOption) gin.HandlerFunc {
	m := &middleware{
		limiter:  limiter,
		identity: func(c *gin.Context) string { return c.ClientIP() },
		logger:   clog.Discard(),
	}
	for _, opt := range opts {
		opt(m)
	}

	return func(c *gin.Context) {
		identity := m.identity(c)
		decision, err := m.limiter.Check(c.Request.Context(), identity)
		if err != nil {
			m.logger.ErrorContext(c.Request.Context(), "rate limit check failed, admitting request",
				clog.Error(err))
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.FormatInt(decision.Limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(decision.Remaining, 10))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(decision.ResetAt.Unix(), 10))

		if !decision.Allowed {
			retryAfter := int64(decision.RetryAfter.Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.FormatInt(retryAfter, 10))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "too many attempts",
				"retry_after": retryAfter,
				"reset_at":    decision.ResetAt.Unix(),
			})
			return
		}
		c.Next()
	}
}
