package response

import (
	"errors"

	"account-service/internal/domain"
)

// Resp 统一响应信封：成功 {success,message?,data?}，失败 {success:false,error,details?}
type Resp struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Details string `json:"details,omitempty"`
}

func OK(message string, data any) Resp {
	return Resp{Success: true, Message: message, Data: data}
}

// Error 失败响应；customMsg 为空时取状态码默认文案
func Error(status int, customMsg string) Resp {
	msg := CodeMsgMap[status]
	if customMsg != "" {
		msg = customMsg
	}
	return Resp{Success: false, Error: msg}
}

func WithDetails(r Resp, details string) Resp {
	r.Details = details
	return r
}

// FromError 业务错误 → (状态码, 信封)；非预期错误不向外暴露内部信息
func FromError(err error) (int, Resp) {
	kind := domain.KindOf(err)
	status := StatusOf(kind)
	if kind == domain.KindUnexpected {
		return status, Error(status, "something went wrong")
	}
	msg := err.Error()
	var de *domain.Error
	if errors.As(err, &de) && de.Msg != "" {
		msg = de.Msg
	}
	return status, Error(status, msg)
}
