package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/ARodriguezHacks/covid-calendar/internal/domain"
	"github.com/ARodriguezHacks/covid-calendar/internal/evaluator"
	"github.com/ARodriguezHacks/covid-calendar/internal/metrics"
	"github.com/ARodriguezHacks/covid-calendar/internal/notifier"
	"github.com/ARodriguezHacks/covid-calendar/internal/repository"
	"github.com/ARodriguezHacks/covid-calendar/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	maxNameLength  = 200
	publishTimeout = 5 * time.Second
)

// HouseholdService 家庭成员、暴露记录与隔离指导
//
// 同一家庭的写操作在 per-household 互斥锁内串行执行：
// 读取旧状态、写成员、协调暴露记录、失效缓存在同一临界区内完成。
type HouseholdService struct {
	repo      repository.HouseholdRepository
	eval      *evaluator.Evaluator
	cache     *store.GuidanceCache
	publisher notifier.Publisher
	metrics   *metrics.Metrics
	logger    *zap.Logger

	locks sync.Map // household_id -> *sync.Mutex
	now   func() time.Time
}

// NewHouseholdService 创建家庭服务；cache/publisher/metrics 可为 nil
func NewHouseholdService(
	repo repository.HouseholdRepository,
	eval *evaluator.Evaluator,
	cache *store.GuidanceCache,
	publisher notifier.Publisher,
	m *metrics.Metrics,
	logger *zap.Logger,
) *HouseholdService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if eval == nil {
		eval = evaluator.NewEvaluator(evaluator.DefaultPolicy(), logger)
	}
	if publisher == nil {
		publisher = notifier.Nop{}
	}
	return &HouseholdService{
		repo:      repo,
		eval:      eval,
		cache:     cache,
		publisher: publisher,
		metrics:   m,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *HouseholdService) lock(householdID string) func() {
	v, _ := s.locks.LoadOrStore(householdID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// ========== 请求/响应 ==========

// CreateHouseholdRequest 创建家庭请求
type CreateHouseholdRequest struct {
	Name string
}

// HouseholdView 家庭完整视图
type HouseholdView struct {
	Household *domain.Household       `json:"household"`
	Members   []*domain.Person        `json:"members"`
	Exposures []domain.ExposureEvent  `json:"exposures"`
	Guidance  []domain.GuidanceResult `json:"guidance"`
}

// AddMemberRequest 新增成员请求；CovidEvents 中未出现的事件视为未设置
type AddMemberRequest struct {
	Name        string
	CovidEvents domain.CovidEvents
}

// UpdateMemberRequest 更新成员请求
// Name 为空表示不修改；CovidEvents 中出现的事件被替换（零值 Date 表示清除）
type UpdateMemberRequest struct {
	Name        string
	CovidEvents domain.CovidEvents
}

// MemberUpdate 成员写操作结果
type MemberUpdate struct {
	Person     *domain.Person         `json:"person"`
	Contagious bool                   `json:"contagious"`
	Changes    domain.ExposureChanges `json:"changes"`
}

// RecordExposureDateRequest 确定暴露日期；Date 为零值表示恢复为持续暴露
type RecordExposureDateRequest struct {
	ContagiousPerson  string
	QuarantinedPerson string
	Date              domain.Date
}

// ========== 家庭 ==========

// CreateHousehold 创建家庭
func (s *HouseholdService) CreateHousehold(ctx context.Context, req CreateHouseholdRequest) (*domain.Household, error) {
	name, err := normalizeName(req.Name)
	if err != nil {
		return nil, err
	}

	h := &domain.Household{Name: name}
	id, err := s.repo.CreateHousehold(ctx, h)
	if err != nil {
		return nil, fmt.Errorf("failed to create household: %w", err)
	}
	h.HouseholdID = id

	s.logger.Info("Household created", zap.String("household_id", h.HouseholdID))
	return h, nil
}

// GetHousehold 家庭视图（成员、暴露记录、指导）
func (s *HouseholdService) GetHousehold(ctx context.Context, householdID string) (*HouseholdView, error) {
	h, err := s.repo.GetHousehold(ctx, householdID)
	if err != nil {
		return nil, err
	}
	members, err := s.repo.ListMembers(ctx, householdID)
	if err != nil {
		return nil, err
	}
	exposures, err := s.repo.ListExposures(ctx, householdID)
	if err != nil {
		return nil, err
	}
	guidance, err := s.Guidance(ctx, householdID)
	if err != nil {
		return nil, err
	}

	if members == nil {
		members = []*domain.Person{}
	}
	return &HouseholdView{
		Household: h,
		Members:   members,
		Exposures: exposures,
		Guidance:  guidance,
	}, nil
}

// ========== 成员 ==========

// AddMember 新增成员并为其推导暴露记录
func (s *HouseholdService) AddMember(ctx context.Context, householdID string, req AddMemberRequest) (*MemberUpdate, error) {
	name, err := normalizeName(req.Name)
	if err != nil {
		return nil, err
	}
	if err := validateEvents(req.CovidEvents); err != nil {
		return nil, err
	}

	start := s.now()
	defer func() { s.metrics.ObserveWriteLatency("add_member", time.Since(start)) }()

	unlock := s.lock(householdID)
	defer unlock()

	members, err := s.repo.ListMembers(ctx, householdID)
	if err != nil {
		return nil, err
	}

	person := domain.NewPerson(householdID, name)
	person.ID = uuid.NewString()
	for event, date := range req.CovidEvents {
		person.CovidEvents[event] = date
	}

	// 成员与其初始暴露记录在同一次仓库写入中提交
	changes := domain.ExposureChanges{
		ToAdd: evaluator.ExposuresForNewMember(person, members),
	}
	if _, err := s.repo.AddMember(ctx, householdID, person, changes.ToAdd); err != nil {
		return nil, fmt.Errorf("failed to add member: %w", err)
	}

	contagious := evaluator.IsContagious(person)
	s.metrics.ObserveJoin(len(changes.ToAdd))
	s.afterWrite(ctx, notifier.Change{
		HouseholdID: householdID,
		PersonID:    person.ID,
		Kind:        notifier.KindMemberAdded,
		Contagious:  contagious,
		Added:       changes.ToAdd,
	})

	s.logger.Info("Member added",
		zap.String("household_id", householdID),
		zap.String("person_id", person.ID),
		zap.Bool("contagious", contagious),
		zap.Int("exposures_added", len(changes.ToAdd)),
	)
	return &MemberUpdate{Person: person, Contagious: contagious, Changes: changes}, nil
}

// UpdateMember 更新成员姓名/事件日期并协调暴露记录
func (s *HouseholdService) UpdateMember(ctx context.Context, householdID, personID string, req UpdateMemberRequest) (*MemberUpdate, error) {
	var name string
	if strings.TrimSpace(req.Name) != "" {
		n, err := normalizeName(req.Name)
		if err != nil {
			return nil, err
		}
		name = n
	}
	if err := validateEvents(req.CovidEvents); err != nil {
		return nil, err
	}

	return s.mutateMember(ctx, householdID, personID, "update_member", func(p *domain.Person) {
		if name != "" {
			p.Name = name
		}
		for event, date := range req.CovidEvents {
			p.CovidEvents[event] = date
		}
	})
}

// SetEvent 设置（或以零值 Date 清除）单个事件日期
func (s *HouseholdService) SetEvent(ctx context.Context, householdID, personID string, event domain.CovidEventName, date domain.Date) (*MemberUpdate, error) {
	if _, err := domain.ParseCovidEventName(string(event)); err != nil {
		return nil, invalid("event", "%v", err)
	}
	return s.mutateMember(ctx, householdID, personID, "set_event", func(p *domain.Person) {
		p.CovidEvents[event] = date
	})
}

// mutateMember 成员写操作的公共流程：
// 读旧状态 -> 修改 -> 协调暴露记录（仅在传染状态跳变时有变更）-> 原子写回
func (s *HouseholdService) mutateMember(
	ctx context.Context,
	householdID, personID, operation string,
	mutate func(p *domain.Person),
) (*MemberUpdate, error) {
	start := s.now()
	defer func() { s.metrics.ObserveWriteLatency(operation, time.Since(start)) }()

	unlock := s.lock(householdID)
	defer unlock()

	members, err := s.repo.ListMembers(ctx, householdID)
	if err != nil {
		return nil, err
	}
	person := findMember(members, personID)
	if person == nil {
		return nil, fmt.Errorf("member %s: %w", personID, repository.ErrNotFound)
	}

	wasContagious := evaluator.IsContagious(person)

	mutate(person)

	existing, err := s.repo.ListExposures(ctx, householdID)
	if err != nil {
		return nil, err
	}

	// 成员更新与暴露记录变更在同一事务中提交，失败时两者都不生效
	changes := s.eval.Reconcile(person, members, wasContagious, existing)
	if err := s.repo.UpdateMember(ctx, householdID, person, changes); err != nil {
		return nil, fmt.Errorf("failed to update member: %w", err)
	}

	contagious := evaluator.IsContagious(person)
	transition := contagious != wasContagious
	s.metrics.ObserveReconciliation(transition, len(changes.ToAdd), len(changes.ToRemove))

	change := notifier.Change{
		HouseholdID: householdID,
		PersonID:    personID,
		Kind:        notifier.KindMemberUpdated,
		Contagious:  contagious,
		Added:       changes.ToAdd,
		Removed:     changes.ToRemove,
	}
	s.afterWrite(ctx, change)

	if transition {
		s.logger.Info("Contagious status changed",
			zap.String("household_id", householdID),
			zap.String("person_id", personID),
			zap.Bool("contagious", contagious),
			zap.Int("exposures_added", len(changes.ToAdd)),
			zap.Int("exposures_removed", len(changes.ToRemove)),
		)
	}

	return &MemberUpdate{Person: person, Contagious: contagious, Changes: changes}, nil
}

// RemoveMember 删除成员及其全部暴露记录
func (s *HouseholdService) RemoveMember(ctx context.Context, householdID, personID string) ([]domain.ExposureEvent, error) {
	start := s.now()
	defer func() { s.metrics.ObserveWriteLatency("remove_member", time.Since(start)) }()

	unlock := s.lock(householdID)
	defer unlock()

	existing, err := s.repo.ListExposures(ctx, householdID)
	if err != nil {
		return nil, err
	}
	removed := evaluator.ExposuresReferencing(personID, existing)

	if err := s.repo.RemoveMember(ctx, householdID, personID); err != nil {
		return nil, err
	}

	s.metrics.ObserveRemoved(len(removed))
	s.afterWrite(ctx, notifier.Change{
		HouseholdID: householdID,
		PersonID:    personID,
		Kind:        notifier.KindMemberRemoved,
		Removed:     removed,
	})

	s.logger.Info("Member removed",
		zap.String("household_id", householdID),
		zap.String("person_id", personID),
		zap.Int("exposures_removed", len(removed)),
	)
	if removed == nil {
		removed = []domain.ExposureEvent{}
	}
	return removed, nil
}

// ========== 暴露记录 ==========

// ListExposures 家庭全部暴露记录
func (s *HouseholdService) ListExposures(ctx context.Context, householdID string) ([]domain.ExposureEvent, error) {
	return s.repo.ListExposures(ctx, householdID)
}

// RecordExposureDate 为已有记录确定（或清除）暴露日期
// 方向必须与现有记录一致；不能借此创建新记录
func (s *HouseholdService) RecordExposureDate(ctx context.Context, householdID string, req RecordExposureDateRequest) (*domain.ExposureEvent, error) {
	if req.ContagiousPerson == "" {
		return nil, invalid("contagious_person", "is required")
	}
	if req.QuarantinedPerson == "" {
		return nil, invalid("quarantined_person", "is required")
	}
	if req.ContagiousPerson == req.QuarantinedPerson {
		return nil, invalid("quarantined_person", "must differ from contagious_person")
	}

	start := s.now()
	defer func() { s.metrics.ObserveWriteLatency("record_exposure_date", time.Since(start)) }()

	unlock := s.lock(householdID)
	defer unlock()

	existing, err := s.repo.ListExposures(ctx, householdID)
	if err != nil {
		return nil, err
	}
	key := domain.NewPairKey(req.ContagiousPerson, req.QuarantinedPerson)
	var current *domain.ExposureEvent
	for i := range existing {
		if existing[i].Key() == key {
			current = &existing[i]
			break
		}
	}
	if current == nil {
		return nil, fmt.Errorf("exposure %s -> %s: %w", req.ContagiousPerson, req.QuarantinedPerson, repository.ErrNotFound)
	}
	if current.ContagiousPerson != req.ContagiousPerson {
		return nil, invalid("contagious_person", "%s is the quarantined side of this exposure", req.ContagiousPerson)
	}

	updated := *current
	updated.Date = req.Date
	updated.Ongoing = req.Date.IsZero()
	if err := s.repo.UpdateExposure(ctx, householdID, updated); err != nil {
		return nil, fmt.Errorf("failed to update exposure: %w", err)
	}

	s.afterWrite(ctx, notifier.Change{
		HouseholdID: householdID,
		PersonID:    updated.QuarantinedPerson,
		Kind:        notifier.KindExposureUpdated,
		Contagious:  false,
		Added:       []domain.ExposureEvent{updated},
	})
	return &updated, nil
}

// ========== 指导 ==========

// Guidance 家庭隔离指导（按成员顺序）；优先读缓存
func (s *HouseholdService) Guidance(ctx context.Context, householdID string) ([]domain.GuidanceResult, error) {
	if results, err := s.cache.Get(ctx, householdID); err == nil {
		return results, nil
	} else if !store.IsMiss(err) {
		s.logger.Warn("Guidance cache read failed", zap.String("household_id", householdID), zap.Error(err))
	}

	// 未命中时在家庭锁内计算并回填，避免与并发写交错导致缓存旧结果
	unlock := s.lock(householdID)
	defer unlock()

	members, err := s.repo.ListMembers(ctx, householdID)
	if err != nil {
		return nil, err
	}
	results := s.eval.Guidance(members)

	dated := 0
	for _, r := range results {
		if r.Date != nil {
			dated++
		}
	}
	s.metrics.ObserveGuidance(dated, len(results)-dated)

	if err := s.cache.Put(ctx, householdID, results); err != nil {
		s.logger.Warn("Guidance cache write failed", zap.String("household_id", householdID), zap.Error(err))
	}
	return results, nil
}

// MemberGuidance 单个成员的隔离结束日期；Date 为 nil 表示无可用指导
func (s *HouseholdService) MemberGuidance(ctx context.Context, householdID, personID string) (*domain.GuidanceResult, error) {
	person, err := s.repo.GetMember(ctx, householdID, personID)
	if err != nil {
		return nil, err
	}
	result := domain.GuidanceResult{Person: person}
	if end, ok := s.eval.Policy().IsolationEnd(person); ok {
		result.Date = end.Ptr()
	}
	return &result, nil
}

// Narrative 成员相关的暴露描述
func (s *HouseholdService) Narrative(ctx context.Context, householdID, personID string) ([]string, error) {
	members, err := s.repo.ListMembers(ctx, householdID)
	if err != nil {
		return nil, err
	}
	if findMember(members, personID) == nil {
		return nil, fmt.Errorf("member %s: %w", personID, repository.ErrNotFound)
	}
	exposures, err := s.repo.ListExposures(ctx, householdID)
	if err != nil {
		return nil, err
	}
	lines := evaluator.DescribeExposures(personID, members, exposures)
	if lines == nil {
		lines = []string{}
	}
	return lines, nil
}

// ExposurePartners 与该成员传染状态相反的成员
func (s *HouseholdService) ExposurePartners(ctx context.Context, householdID, personID string) ([]*domain.Person, error) {
	members, err := s.repo.ListMembers(ctx, householdID)
	if err != nil {
		return nil, err
	}
	person := findMember(members, personID)
	if person == nil {
		return nil, fmt.Errorf("member %s: %w", personID, repository.ErrNotFound)
	}
	partners := evaluator.ExposurePartners(person, members)
	if partners == nil {
		partners = []*domain.Person{}
	}
	return partners, nil
}

// afterWrite 写操作后的副作用：失效缓存、发布变更（失败只记录日志）
func (s *HouseholdService) afterWrite(ctx context.Context, change notifier.Change) {
	if err := s.cache.Invalidate(ctx, change.HouseholdID); err != nil {
		s.logger.Warn("Guidance cache invalidation failed",
			zap.String("household_id", change.HouseholdID),
			zap.Error(err),
		)
	}

	if change.At.IsZero() {
		change.At = s.now().UTC()
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := s.publisher.Publish(pubCtx, change); err != nil {
		s.logger.Warn("Failed to publish exposure change",
			zap.String("household_id", change.HouseholdID),
			zap.String("person_id", change.PersonID),
			zap.String("kind", string(change.Kind)),
			zap.Error(err),
		)
	}
}

func findMember(members []*domain.Person, personID string) *domain.Person {
	for _, m := range members {
		if m.ID == personID {
			return m
		}
	}
	return nil
}

func validateEvents(events domain.CovidEvents) error {
	for event := range events {
		if _, err := domain.ParseCovidEventName(string(event)); err != nil {
			return invalid("covid_events", "%v", err)
		}
	}
	return nil
}

func normalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", invalid("name", "is required")
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return "", invalid("name", "must be at most %d characters", maxNameLength)
	}
	return name, nil
}
