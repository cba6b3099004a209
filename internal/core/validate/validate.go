package validate

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"library-api/internal/domain"
)

var (
	once sync.Once
	std  *validator.Validate
)

// engine 与 gin 共用 "binding" 标签；字段名取 json/form 标签
func engine() *validator.Validate {
	once.Do(func() {
		std = validator.New(validator.WithRequiredStructEnabled())
		std.SetTagName("binding")
		std.RegisterTagNameFunc(fieldName)
	})
	return std
}

// RegisterGin 让 gin 绑定时的错误字段名同样使用 json 名
func RegisterGin() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(fieldName)
	}
}

func fieldName(f reflect.StructField) string {
	for _, tag := range []string{"json", "form"} {
		name := strings.SplitN(f.Tag.Get(tag), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name != "" {
			return name
		}
	}
	return f.Name
}

// Struct 校验失败返回 domain.Validation（带字段明细）
func Struct(v any) error {
	if err := engine().Struct(v); err != nil {
		return FromError(err)
	}
	return nil
}

// FromError 把绑定/校验错误转成 Validation；无法识别的错误也按 400 处理
func FromError(err error) error {
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		fields := make([]domain.FieldError, 0, len(ve))
		for _, fe := range ve {
			fields = append(fields, domain.FieldError{Field: fe.Field(), Message: message(fe)})
		}
		return domain.Validation("Validation failed", fields...)
	}
	var te *json.UnmarshalTypeError
	if errors.As(err, &te) {
		return domain.Validation("Validation failed", domain.FieldError{
			Field:   te.Field,
			Message: fmt.Sprintf("%s must be of type %s", te.Field, te.Type.String()),
		})
	}
	var se *json.SyntaxError
	if errors.As(err, &se) {
		return domain.Validation("Malformed JSON body")
	}
	if errors.Is(err, io.EOF) {
		return domain.Validation("Request body is required")
	}
	return domain.Validation(err.Error())
}

func message(fe validator.FieldError) string {
	f := fe.Field()
	switch fe.Tag() {
	case "required":
		return f + " is required"
	case "email":
		return "Please provide a valid email address"
	case "min":
		if isString(fe) {
			return fmt.Sprintf("%s must be at least %s characters long", f, fe.Param())
		}
		return fmt.Sprintf("%s must be greater than or equal to %s", f, fe.Param())
	case "max":
		if isString(fe) {
			return fmt.Sprintf("%s must be at most %s characters long", f, fe.Param())
		}
		return fmt.Sprintf("%s must be less than or equal to %s", f, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", f, fe.Param())
	}
	return fmt.Sprintf("%s failed on %s", f, fe.Tag())
}

func isString(fe validator.FieldError) bool {
	k := fe.Kind()
	return k == reflect.String
}
