package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// DateLayout 对外交换的日期格式（YYYY-MM-DD）
const DateLayout = "2006-01-02"

// Date 日历日期（无时区语义，只做整天加减）
// 零值表示"未设置"
type Date struct {
	t time.Time
}

// NewDate 根据年月日创建日期
func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf 取 time.Time 的日历日期部分（按其自身时区）
func DateOf(t time.Time) Date {
	if t.IsZero() {
		return Date{}
	}
	return NewDate(t.Year(), t.Month(), t.Day())
}

// ParseDate 解析 YYYY-MM-DD；空串或格式错误都视为未设置
func ParseDate(s string) Date {
	if s == "" {
		return Date{}
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}
	}
	return Date{t: t}
}

// IsZero 是否未设置
func (d Date) IsZero() bool {
	return d.t.IsZero()
}

// AddDays 加 n 天；未设置的日期保持未设置
func (d Date) AddDays(n int) Date {
	if d.IsZero() {
		return d
	}
	return Date{t: d.t.AddDate(0, 0, n)}
}

// Before 是否早于 o
func (d Date) Before(o Date) bool {
	return d.t.Before(o.t)
}

// After 是否晚于 o
func (d Date) After(o Date) bool {
	return d.t.After(o.t)
}

// Equal 是否同一天
func (d Date) Equal(o Date) bool {
	return d.t.Equal(o.t)
}

// Time 返回当天 UTC 零点
func (d Date) Time() time.Time {
	return d.t
}

// String 未设置时返回空串
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.t.Format(DateLayout)
}

// Ptr 未设置时返回 nil
func (d Date) Ptr() *Date {
	if d.IsZero() {
		return nil
	}
	return &d
}

// MarshalJSON 未设置编码为 ""
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON 宽松解析：null、""、格式错误都视为未设置
func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		*d = Date{}
		return nil
	}
	*d = ParseDate(s)
	return nil
}

// Value 实现 driver.Valuer（SQL DATE，未设置为 NULL）
func (d Date) Value() (driver.Value, error) {
	if d.IsZero() {
		return nil, nil
	}
	return d.t, nil
}

// Scan 实现 sql.Scanner
func (d *Date) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*d = Date{}
	case time.Time:
		*d = DateOf(v)
	case string:
		*d = ParseDate(v)
	case []byte:
		*d = ParseDate(string(v))
	default:
		return fmt.Errorf("cannot scan %T into domain.Date", src)
	}
	return nil
}

// MinDate 返回已设置日期中最早的一个；全部未设置时返回未设置
func MinDate(dates ...Date) Date {
	var min Date
	for _, d := range dates {
		if d.IsZero() {
			continue
		}
		if min.IsZero() || d.Before(min) {
			min = d
		}
	}
	return min
}

// MaxDate 返回已设置日期中最晚的一个；全部未设置时返回未设置
func MaxDate(dates ...Date) Date {
	var max Date
	for _, d := range dates {
		if d.IsZero() {
			continue
		}
		if max.IsZero() || d.After(max) {
			max = d
		}
	}
	return max
}
