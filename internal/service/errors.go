package service

import (
	"errors"
	"fmt"

	"github.com/ARodriguezHacks/covid-calendar/internal/repository"
)

// ValidationError 请求参数不合法（HTTP 映射为 400）
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

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// IsValidation 是否为参数错误
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsNotFound 家庭/成员/暴露记录不存在
func IsNotFound(err error) bool {
	return errors.Is(err, repository.ErrNotFound)
}
