package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	resp "library-api/internal/transport/http/response"
)

// MaxBodyBytes 限制请求体大小；超限在绑定时得到 *http.MaxBytesError，由 ez 映射为 413
func MaxBodyBytes(n int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > n {
			resp.Abort(c, http.StatusRequestEntityTooLarge, resp.MsgBodyTooLarge)
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, n)
		c.Next()
	}
}
