package httpapi

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/ARodriguezHacks/covid-calendar/internal/domain"

	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// getValidator 单例（validator 内部缓存结构体元数据）
func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New()
		// 错误信息使用 JSON 字段名
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		_ = v.RegisterValidation("covidevent", func(fl validator.FieldLevel) bool {
			_, err := domain.ParseCovidEventName(fl.Field().String())
			return err == nil
		})
		validate = v
	})
	return validate
}

// isPathID 路径中的 household_id / person_id 必须是 UUID
func isPathID(id string) bool {
	return getValidator().Var(id, "required,uuid") == nil
}

// validatePayload 校验请求体，返回可直接展示的错误
func validatePayload(payload any) error {
	err := getValidator().Struct(payload)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describeFieldError(fe))
	}
	return errors.New(strings.Join(msgs, "; "))
}

func describeFieldError(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "uuid4":
		return fmt.Sprintf("%s must be a UUID", field)
	case "datetime":
		return fmt.Sprintf("%s must be a date in YYYY-MM-DD format", field)
	case "covidevent":
		return fmt.Sprintf("%s is not a known covid event", field)
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}
