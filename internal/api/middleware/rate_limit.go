package middleware

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/insightvigil/biblioteca-escolar/pkg/response"
)

// RateLimiter 固定窗口计数器（由 pkg/redis.Client 实现）
type RateLimiter interface {
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// WriteRateLimit 写接口限流中间件
// 仅对 POST / PUT 计数，按客户端 IP 分桶；limiter 为 nil 或 limit <= 0 时放行，
// Redis 故障时降级放行
func WriteRateLimit(limiter RateLimiter, limit int, window time.Duration, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil || limit <= 0 {
			c.Next()
			return
		}
		if m := c.Request.Method; m != http.MethodPost && m != http.MethodPut {
			c.Next()
			return
		}

		key := fmt.Sprintf("ratelimit:write:%s", c.ClientIP())
		allowed, err := limiter.CheckRateLimit(c.Request.Context(), key, limit, window)
		if err != nil {
			logger.Warn("限流计数失败，降级放行", zap.String("key", key), zap.Error(err))
			c.Next()
			return
		}

		if !allowed {
			response.Error(c, http.StatusTooManyRequests, response.CodeTooManyRequests, "请求过于频繁，请稍后再试")
			c.Abort()
			return
		}

		c.Next()
	}
}
