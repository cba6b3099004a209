package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/semaphore"

	resp "library-api/internal/transport/http/response"
)

// ConcurrencyLimit 同时处理的请求数上限（保护 DB 连接池）；排队超过 wait 返回 503
func ConcurrencyLimit(limit int64, wait time.Duration) gin.HandlerFunc {
	sem := semaphore.NewWeighted(limit)
	return func(c *gin.Context) {
		if !sem.TryAcquire(1) {
			ctx, cancel := context.WithTimeout(c.Request.Context(), wait)
			err := sem.Acquire(ctx, 1)
			cancel()
			if err != nil {
				c.Header("Retry-After", "1")
				resp.Abort(c, http.StatusServiceUnavailable, resp.MsgServerBusy)
				return
			}
		}
		defer sem.Release(1)
		c.Next()
	}
}
