package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"library-api/internal/domain"
)

// Body 统一响应体
type Body struct {
	Success bool                `json:"success"`
	Message string              `json:"message"`
	Data    any                 `json:"data,omitempty"`
	Errors  []domain.FieldError `json:"errors,omitempty"`
}

// OK 成功响应；204 不写响应体
func OK(c *gin.Context, status int, msg string, data any) {
	if status == http.StatusNoContent {
		c.Status(status)
		return
	}
	c.JSON(status, Body{Success: true, Message: msg, Data: data})
}

func Fail(c *gin.Context, status int, msg string, fields ...domain.FieldError) {
	c.JSON(status, Body{Success: false, Message: msg, Errors: fields})
}

// Abort 中间件中断请求
func Abort(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, Body{Success: false, Message: msg})
}

// Error 按错误类型写响应。hideDetail 时 5xx 只回显通用文案，否则附带底层错误
func Error(c *gin.Context, l *zap.Logger, err error, hideDetail bool) {
	var de *domain.Error
	if !errors.As(err, &de) {
		de = &domain.Error{Kind: domain.KindInternal, Msg: MsgInternal, Err: err}
	}
	status := StatusOf(de.Kind)
	if status >= http.StatusInternalServerError {
		if l != nil {
			l.Error("request failed",
				zap.String("path", c.FullPath()),
				zap.String("rid", c.GetString("rid")),
				zap.Error(err))
		}
		_ = c.Error(err)
		msg := MsgInternal
		if !hideDetail {
			if de.Msg != "" {
				msg = de.Msg
			}
			if de.Err != nil {
				msg += ": " + de.Err.Error()
			}
		}
		Fail(c, status, msg)
		return
	}
	if de.Kind == domain.KindRetryable && l != nil {
		l.Warn("concurrent update", zap.String("path", c.FullPath()), zap.Error(de.Err))
	}
	Fail(c, status, de.Error(), de.Fields...)
}
