package response

import (
	"net/http"

	"library-api/internal/domain"
)

// StatusOf 业务错误类型 -> HTTP 状态码
func StatusOf(k domain.Kind) int {
	switch k {
	case domain.KindValidation, domain.KindInvalidState:
		return http.StatusBadRequest
	case domain.KindUnauthorized:
		return http.StatusUnauthorized
	case domain.KindForbidden:
		return http.StatusForbidden
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindConflict, domain.KindRetryable:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// 中间件直接返回的固定文案
const (
	MsgInternal        = "Internal server error"
	MsgTooManyRequests = "Too many requests, please try again later"
	MsgTooManyAuth     = "Too many login attempts, please try again later"
	MsgServerBusy      = "Server busy, please try again later"
	MsgBodyTooLarge    = "Request body too large"
	MsgTimeout         = "Request timeout"
	MsgRouteNotFound   = "Route not found"
)
