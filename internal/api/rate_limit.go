package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// callerLimiter 单个调用方的令牌桶
type callerLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimitMiddleware 限流中间件,按调用方维护独立令牌桶。
// 已认证请求按用户限流,未认证请求按客户端 IP 限流,
// 避免单个集成方批量提交审批时拖垮整个服务。
func RateLimitMiddleware(rps float64, burst int) gin.HandlerFunc {
	var (
		mu      sync.Mutex
		callers = make(map[string]*callerLimiter)
	)

	// 定期清理长时间无请求的调用方,防止 map 无限增长
	go func() {
		for range time.Tick(3 * time.Minute) {
			mu.Lock()
			for key, cl := range callers {
				if time.Since(cl.lastSeen) > 10*time.Minute {
					delete(callers, key)
				}
			}
			mu.Unlock()
		}
	}()

	return func(c *gin.Context) {
		key := c.GetString("user_id")
		if key == "" {
			key = c.ClientIP()
		}

		mu.Lock()
		cl, ok := callers[key]
		if !ok {
			cl = &callerLimiter{limiter: rate.NewLimiter(rate.Limit(rps), burst)}
			callers[key] = cl
		}
		cl.lastSeen = time.Now()
		mu.Unlock()

		if !cl.limiter.Allow() {
			c.JSON(http.StatusTooManyRequests, ErrorResponse{
				Code:    429,
				Message: "too many requests",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}
