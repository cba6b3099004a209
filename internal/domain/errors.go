package domain

import "errors"

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindInvalidState
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindConflict
	KindRetryable
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindInvalidState:
		return "invalid_state"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindRetryable:
		return "retryable"
	}
	return "internal"
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error 业务错误：Kind 决定 HTTP 状态码，Msg 面向调用方
type Error struct {
	Kind   Kind
	Msg    string
	Err    error
	Fields []FieldError
}

func (e *Error) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error { return e.Err }

func Validation(msg string, fields ...FieldError) error {
	return &Error{Kind: KindValidation, Msg: msg, Fields: fields}
}
func InvalidState(msg string) error { return &Error{Kind: KindInvalidState, Msg: msg} }
func Unauthorized(msg string) error { return &Error{Kind: KindUnauthorized, Msg: msg} }
func Forbidden(msg string) error    { return &Error{Kind: KindForbidden, Msg: msg} }
func NotFound(msg string) error     { return &Error{Kind: KindNotFound, Msg: msg} }
func Conflict(msg string) error     { return &Error{Kind: KindConflict, Msg: msg} }
func Retryable(err error) error {
	return &Error{Kind: KindRetryable, Msg: "Concurrent update, please retry", Err: err}
}
func Internal(msg string, err error) error { return &Error{Kind: KindInternal, Msg: msg, Err: err} }

// KindOf 非 *Error 一律视为 Internal
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func IsKind(err error, k Kind) bool { return err != nil && KindOf(err) == k }
