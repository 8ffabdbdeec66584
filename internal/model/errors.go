package model

import "fmt"

// ErrorKind 区分领域错误的类别，调用方据此决定是否重试以及如何映射到传输层。
type ErrorKind string

const (
	KindNotFound   ErrorKind = "NOT_FOUND"
	KindValidation ErrorKind = "VALIDATION"
	KindConflict   ErrorKind = "CONFLICT"
)

// DomainError 是分类领域内所有可预期失败的统一表示。
type DomainError struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

// 哨兵错误，仅用于 errors.Is 按类别匹配。
var (
	ErrNotFound   = &DomainError{Kind: KindNotFound}
	ErrValidation = &DomainError{Kind: KindValidation}
	ErrConflict   = &DomainError{Kind: KindConflict}
)

// Error 实现 error 接口。
func (e *DomainError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap 返回底层错误。
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is 让 errors.Is(err, ErrNotFound) 这类判断按 Kind 生效。
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// Retryable 只有冲突类错误在更换标识或顺序后可以重试。
func (e *DomainError) Retryable() bool {
	return e.Kind == KindConflict
}

// NotFoundf 构造一个 NOT_FOUND 错误。
func NotFoundf(format string, args ...interface{}) error {
	return &DomainError{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// Validationf 构造一个 VALIDATION 错误。
func Validationf(format string, args ...interface{}) error {
	return &DomainError{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// Conflictf 构造一个 CONFLICT 错误。
func Conflictf(format string, args ...interface{}) error {
	return &DomainError{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

// WrapConflict 把存储层的唯一约束冲突包装成 CONFLICT 错误，保留原始原因。
func WrapConflict(cause error, format string, args ...interface{}) error {
	return &DomainError{Kind: KindConflict, Message: fmt.Sprintf(format, args...), Cause: cause}
}
