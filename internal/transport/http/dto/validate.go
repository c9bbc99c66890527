package dto

import (
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"account-service/internal/domain"
)

var registerOnce sync.Once

// RegisterValidators 向 gin 的 validator 注册 account_email
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = v.RegisterValidation("account_email", func(fl validator.FieldLevel) bool {
			return domain.ValidEmail(domain.NormalizeEmail(fl.Field().String()))
		})
		// 错误信息里使用 json 字段名
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "" || name == "-" {
				name = strings.SplitN(f.Tag.Get("form"), ",", 2)[0]
			}
			if name == "" || name == "-" {
				return f.Name
			}
			return name
		})
	})
}

// BindErrorDetails 绑定/校验错误 → 面向调用方的描述，多个字段以 "; " 连接
func BindErrorDetails(err error) string {
	return strings.Join(bindErrorMessages(err), "; ")
}

func bindErrorMessages(err error) []string {
	var ves validator.ValidationErrors
	if errors.As(err, &ves) {
		out := make([]string, 0, len(ves))
		for _, fe := range ves {
			out = append(out, fieldMessage(fe))
		}
		return out
	}
	if errors.Is(err, io.EOF) {
		return []string{"request body is required"}
	}
	return []string{err.Error()}
}

func fieldMessage(fe validator.FieldError) string {
	f := fe.Field()
	switch fe.Tag() {
	case "required":
		return f + " is required"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters long", f, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", f, fe.Param())
	case "account_email":
		return "please enter a valid email address"
	}
	return fmt.Sprintf("%s is invalid (%s)", f, fe.Tag())
}
