package domain

import (
	"errors"
	"fmt"
)

// Kind 错误种类，HTTP 层据此映射状态码
type Kind int

const (
	KindUnexpected Kind = iota
	KindValidation
	KindDuplicateEmail
	KindNotFound
	KindInvalidID
	KindUnauthorized
	KindRateLimited
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindDuplicateEmail:
		return "duplicate_email"
	case KindNotFound:
		return "not_found"
	case KindInvalidID:
		return "invalid_id"
	case KindUnauthorized:
		return "unauthorized"
	case KindRateLimited:
		return "rate_limited"
	default:
		return "unexpected"
	}
}

// Error is the result error of every store and service operation.
// errors.Is matches any *Error of the same Kind, so callers compare against the sentinels below.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return e.Msg + ": " + e.Err.Error()
	case e.Msg != "":
		return e.Msg
	case e.Err != nil:
		return e.Err.Error()
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrValidation     = &Error{Kind: KindValidation, Msg: "validation error"}
	ErrDuplicateEmail = &Error{Kind: KindDuplicateEmail, Msg: "email already exists"}
	ErrNotFound       = &Error{Kind: KindNotFound, Msg: "not found"}
	ErrInvalidID      = &Error{Kind: KindInvalidID, Msg: "invalid id"}
	ErrUnauthorized   = &Error{Kind: KindUnauthorized, Msg: "unauthorized"}
	ErrRateLimited    = &Error{Kind: KindRateLimited, Msg: "too many requests"}
)

func Validation(format string, args ...any) error {
	return &Error{Kind: KindValidation, Msg: fmt.Sprintf(format, args...)}
}

func DuplicateEmail(email string) error {
	return &Error{Kind: KindDuplicateEmail, Msg: fmt.Sprintf("email %s already exists", email)}
}

func NotFound(format string, args ...any) error {
	return &Error{Kind: KindNotFound, Msg: fmt.Sprintf(format, args...)}
}

func InvalidID(id string, err error) error {
	return &Error{Kind: KindInvalidID, Msg: fmt.Sprintf("invalid user id %q", id), Err: err}
}

func Unauthorized(msg string) error {
	return &Error{Kind: KindUnauthorized, Msg: msg}
}

func RateLimited(msg string) error {
	return &Error{Kind: KindRateLimited, Msg: msg}
}

// Unexpected 包装存储/连接等非业务错误
func Unexpected(msg string, err error) error {
	return &Error{Kind: KindUnexpected, Msg: msg, Err: err}
}

// KindOf 返回错误链上第一个 *Error 的种类；其它错误一律视为 Unexpected
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindUnexpected
}
