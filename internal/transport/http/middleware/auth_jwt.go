package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"library-api/internal/authz"
	"library-api/internal/core/auth"
	"library-api/internal/domain"
)

const (
	ctxActor   = "actor"
	ctxAuthErr = "auth_error"
)

const (
	MsgTokenRequired = "Access token required. Format: Bearer <token>"
	MsgTokenExpired  = "Access token expired"
	MsgTokenInvalid  = "Invalid access token"
)

// Authenticate 解析可选的 Bearer token：没有 token 或 token 无效都按匿名继续，
// 无效原因记在上下文里。是否必须登录、角色是否满足由 ez.Action.Auth 与 service 层 authz 决定
func Authenticate(j *auth.JWTer) gin.HandlerFunc {
	return func(c *gin.Context) {
		ah := strings.TrimSpace(c.GetHeader("Authorization"))
		if ah == "" {
			c.Next()
			return
		}
		tok, ok := strings.CutPrefix(ah, "Bearer ")
		if !ok || strings.TrimSpace(tok) == "" {
			c.Set(ctxAuthErr, MsgTokenRequired)
			c.Next()
			return
		}
		claims, err := j.Parse(strings.TrimSpace(tok))
		switch {
		case errors.Is(err, auth.ErrExpired):
			c.Set(ctxAuthErr, MsgTokenExpired)
			c.Next()
			return
		case err != nil:
			c.Set(ctxAuthErr, MsgTokenInvalid)
			c.Next()
			return
		}
		role, err := domain.ParseRole(claims.Role)
		if err != nil {
			c.Set(ctxAuthErr, MsgTokenInvalid)
			c.Next()
			return
		}
		c.Set(ctxActor, authz.Actor{UserID: claims.ID, Email: claims.Email, Role: role})
		c.Next()
	}
}

// AuthFailure 携带了 token 但未通过校验时的原因；未携带返回 ""
func AuthFailure(c *gin.Context) string {
	return c.GetString(ctxAuthErr)
}

// ActorFrom 取当前请求方；未登录返回匿名
func ActorFrom(c *gin.Context) authz.Actor {
	if v, ok := c.Get(ctxActor); ok {
		if a, ok := v.(authz.Actor); ok {
			return a
		}
	}
	return authz.Anonymous()
}
