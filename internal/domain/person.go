package domain

import (
	"fmt"
	"time"
)

// CovidEventName 住户自报的健康事件类型
type CovidEventName string

const (
	LastCloseContact CovidEventName = "LastCloseContact" // 户外密切接触
	PositiveTest     CovidEventName = "PositiveTest"     // 检测阳性
	SymptomsStart    CovidEventName = "SymptomsStart"    // 出现症状
	SymptomsEnd      CovidEventName = "SymptomsEnd"      // 症状结束
)

// AllCovidEventNames 全部事件类型（显示顺序）
func AllCovidEventNames() []CovidEventName {
	return []CovidEventName{LastCloseContact, PositiveTest, SymptomsStart, SymptomsEnd}
}

// ParseCovidEventName 校验 API 传入的事件名
func ParseCovidEventName(s string) (CovidEventName, error) {
	for _, name := range AllCovidEventNames() {
		if string(name) == s {
			return name, nil
		}
	}
	return "", fmt.Errorf("unknown covid event: %q", s)
}

// CovidEvents 事件类型 -> 日期（未设置为零值）
type CovidEvents map[CovidEventName]Date

// NewCovidEvents 创建四种事件全部未设置的映射
func NewCovidEvents() CovidEvents {
	events := make(CovidEvents, 4)
	for _, name := range AllCovidEventNames() {
		events[name] = Date{}
	}
	return events
}

// Get 缺失的 key 视为未设置
func (e CovidEvents) Get(name CovidEventName) Date {
	if e == nil {
		return Date{}
	}
	return e[name]
}

// Clone 深拷贝（Date 是值类型）
func (e CovidEvents) Clone() CovidEvents {
	out := NewCovidEvents()
	for k, v := range e {
		out[k] = v
	}
	return out
}

// Household 家庭
type Household struct {
	HouseholdID string    `json:"household_id" db:"household_id"` // UUID
	Name        string    `json:"name" db:"name"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// Person 家庭成员（对应 household_members 表）
type Person struct {
	ID          string      `json:"id" db:"person_id"` // UUID，创建时分配，终生不变
	HouseholdID string      `json:"household_id" db:"household_id"`
	Name        string      `json:"name" db:"name"`
	CovidEvents CovidEvents `json:"covid_events"`
	Position    int         `json:"position" db:"position"` // 插入顺序 = 显示顺序
	CreatedAt   time.Time   `json:"created_at" db:"created_at"`
}

// NewPerson 新成员：所有事件日期未设置
func NewPerson(householdID, name string) *Person {
	return &Person{
		HouseholdID: householdID,
		Name:        name,
		CovidEvents: NewCovidEvents(),
	}
}

// Clone 拷贝（避免调用方修改仓库内部状态）
func (p *Person) Clone() *Person {
	if p == nil {
		return nil
	}
	c := *p
	c.CovidEvents = p.CovidEvents.Clone()
	return &c
}
