package repository

import (
	"context"
	"errors"

	"github.com/ARodriguezHacks/covid-calendar/internal/domain"
)

// ErrNotFound 家庭/成员/暴露记录不存在
var ErrNotFound = errors.New("not found")

// HouseholdRepository 家庭Repository接口
// 成员按插入顺序返回；暴露记录按无序成员对唯一
type HouseholdRepository interface {
	// ========== 家庭 ==========
	CreateHousehold(ctx context.Context, household *domain.Household) (string, error)
	GetHousehold(ctx context.Context, householdID string) (*domain.Household, error)

	// ========== 成员 ==========
	ListMembers(ctx context.Context, householdID string) ([]*domain.Person, error)
	GetMember(ctx context.Context, householdID, personID string) (*domain.Person, error)
	// AddMember 分配 position（person.ID 为空时分配 person_id），
	// 与该成员的初始暴露记录在同一事务中写入，返回 person_id
	AddMember(ctx context.Context, householdID string, person *domain.Person, exposures []domain.ExposureEvent) (string, error)
	// UpdateMember 更新姓名和全部事件日期，并原子地先删除 changes.ToRemove 再插入 changes.ToAdd
	UpdateMember(ctx context.Context, householdID string, person *domain.Person, changes domain.ExposureChanges) error
	// RemoveMember 先删除所有涉及该成员的暴露记录，再删除成员
	RemoveMember(ctx context.Context, householdID, personID string) error

	// ========== 暴露记录 ==========
	ListExposures(ctx context.Context, householdID string) ([]domain.ExposureEvent, error)
	// UpdateExposure 按无序对更新 ongoing/date
	UpdateExposure(ctx context.Context, householdID string, exposure domain.ExposureEvent) error
}
