package notifier

import (
	"context"
	"errors"
	"time"

	"github.com/ARodriguezHacks/covid-calendar/internal/domain"
)

// Kind 变更类型
type Kind string

const (
	KindMemberAdded     Kind = "member_added"
	KindMemberUpdated   Kind = "member_updated"
	KindMemberRemoved   Kind = "member_removed"
	KindExposureUpdated Kind = "exposure_updated"
)

// Change 一次家庭写操作产生的暴露变更
type Change struct {
	HouseholdID string                 `json:"household_id"`
	PersonID    string                 `json:"person_id"`
	Kind        Kind                   `json:"kind"`
	Contagious  bool                   `json:"contagious"`
	Added       []domain.ExposureEvent `json:"added"`
	Removed     []domain.ExposureEvent `json:"removed"`
	At          time.Time              `json:"at"`
}

// Publisher 变更下游通知
type Publisher interface {
	Publish(ctx context.Context, change Change) error
}

// Nop 不做任何事
type Nop struct{}

func (Nop) Publish(context.Context, Change) error { return nil }

// Multi 依次发布到所有 Publisher，错误合并返回（单个失败不影响其他）
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, change Change) error {
	var errs []error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, change); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
