// Package ez 把 handler 写成 “入参 -> 出参, error” 的一行注册
package ez

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"library-api/internal/authz"
	"library-api/internal/core/validate"
	"library-api/internal/domain"
	"library-api/internal/transport/http/middleware"
	resp "library-api/internal/transport/http/response"
)

// Binder 绑定方式
type Binder string

const (
	BindJSON  Binder = "json"  // 从 JSON 绑定
	BindQuery Binder = "query" // 从 URL ?a=b 绑定
	BindNone  Binder = "none"  // 不绑定，自己从 c.Param 取
)

// EZ 路由分组 + 错误映射所需的上下文
type EZ struct {
	g          *gin.RouterGroup
	log        *zap.Logger
	hideDetail bool
}

func New(g *gin.RouterGroup, l *zap.Logger, hideDetail bool) EZ {
	if l == nil {
		l = zap.NewNop()
	}
	return EZ{g: g, log: l, hideDetail: hideDetail}
}

// Group 子路由，共享日志与错误策略
func (e EZ) Group(path string, hs ...gin.HandlerFunc) EZ {
	return EZ{g: e.g.Group(path, hs...), log: e.log, hideDetail: e.hideDetail}
}

// With 附加只作用于随后注册的路由的中间件
func (e EZ) With(hs ...gin.HandlerFunc) EZ { return e.Group("", hs...) }

// Action I 入参，O 出参
type Action[I any, O any] struct {
	Method  string // "GET" | "POST" | "PUT" | "DELETE"
	Path    string // 例："/auth/login"、"/borrowings/:id/return"
	Binder  Binder
	Auth    bool   // 是否要求已登录（角色由 service 层的 authz 判断）
	Status  int    // 成功状态码，默认 200
	Message string // 成功文案
	Handler func(c *gin.Context, actor authz.Actor, in *I) (O, error)
}

const MsgTokenRequired = middleware.MsgTokenRequired

func RegisterAction[I any, O any](e EZ, a Action[I, O]) {
	status := a.Status
	if status == 0 {
		status = http.StatusOK
	}
	h := func(c *gin.Context) {
		// 1) 身份
		actor := middleware.ActorFrom(c)
		if a.Auth && !actor.Authenticated() {
			msg := middleware.AuthFailure(c)
			if msg == "" {
				msg = MsgTokenRequired
			}
			resp.Fail(c, http.StatusUnauthorized, msg)
			return
		}

		// 2) 绑定入参
		var in I
		var bindErr error
		switch a.Binder {
		case BindJSON:
			bindErr = c.ShouldBindJSON(&in)
		case BindQuery:
			bindErr = c.ShouldBindQuery(&in)
		default:
		}
		var tooLarge *http.MaxBytesError
		if errors.As(bindErr, &tooLarge) {
			resp.Fail(c, http.StatusRequestEntityTooLarge, resp.MsgBodyTooLarge)
			return
		}
		if bindErr != nil {
			resp.Error(c, e.log, validate.FromError(bindErr), e.hideDetail)
			return
		}

		// 3) 执行
		out, err := a.Handler(c, actor, &in)
		if err != nil {
			resp.Error(c, e.log, err, e.hideDetail)
			return
		}
		resp.OK(c, status, a.Message, out)
	}

	switch strings.ToUpper(a.Method) {
	case http.MethodGet:
		e.g.GET(a.Path, h)
	case http.MethodPut:
		e.g.PUT(a.Path, h)
	case http.MethodPatch:
		e.g.PATCH(a.Path, h)
	case http.MethodDelete:
		e.g.DELETE(a.Path, h)
	default: // 默认 POST
		e.g.POST(a.Path, h)
	}
}

// ParamID 读取路径上的数字 id
func ParamID(c *gin.Context, name string) (uint, error) {
	raw := c.Param(name)
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, domain.Validation("Validation failed", domain.FieldError{Field: name, Message: name + " must be a positive integer"})
	}
	return uint(id), nil
}
