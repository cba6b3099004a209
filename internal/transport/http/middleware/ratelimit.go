package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"

	resp "library-api/internal/transport/http/response"
)

// RateLimit 全局令牌桶限速
func RateLimit(rps rate.Limit, burst int) gin.HandlerFunc {
	lim := rate.NewLimiter(rps, burst)
	return func(c *gin.Context) {
		if lim.Allow() {
			c.Next()
			return
		}
		resp.Abort(c, http.StatusTooManyRequests, resp.MsgTooManyRequests)
	}
}

// 最多跟踪的 IP 数，超出后淘汰最久未访问的桶
const maxTrackedIPs = 10000

// RateLimitPerIP 每 IP 一个令牌桶
func RateLimitPerIP(rps rate.Limit, burst int, msg string) gin.HandlerFunc {
	buckets, _ := lru.New[string, *rate.Limiter](maxTrackedIPs)
	return func(c *gin.Context) {
		ip := c.ClientIP()
		lim, ok := buckets.Get(ip)
		if !ok {
			lim = rate.NewLimiter(rps, burst)
			// 并发首次访问时以先写入者为准
			if prev, found, _ := buckets.PeekOrAdd(ip, lim); found {
				lim = prev
			}
		}
		if lim.Allow() {
			c.Next()
			return
		}
		resp.Abort(c, http.StatusTooManyRequests, msg)
	}
}
