package service

import (
	"errors"
	"fmt"
)

// ErrValidation 所有输入校验错误均匹配该哨兵
var ErrValidation = errors.New("参数校验失败")

// ErrLabelExists 标签已存在
var ErrLabelExists = errors.New("标签已存在")

// ErrRecordNotFound 质检记录不存在
var ErrRecordNotFound = errors.New("质检记录不存在")

// ValidationError 输入校验错误，立即返回调用方，不重试
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Is 使 errors.Is(err, ErrValidation) 成立
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}
