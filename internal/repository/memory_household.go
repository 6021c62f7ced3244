package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ARodriguezHacks/covid-calendar/internal/domain"

	"github.com/google/uuid"
)

// MemoryHouseholdRepo: DB 未启用时使用的内存实现
// - 按 household_id 隔离
// - IDs 使用 uuid
// - 暴露记录按无序对存储，天然满足"每对至多一条"
// - 写操作开始前检查 ctx，已取消则不做任何修改
type MemoryHouseholdRepo struct {
	mu sync.RWMutex

	households map[string]*domain.Household
	members    map[string]map[string]*domain.Person               // householdID -> personID -> Person
	exposures  map[string]map[domain.PairKey]domain.ExposureEvent // householdID -> pair -> record
	nextPos    map[string]int
}

// 确保实现了接口
var _ HouseholdRepository = (*MemoryHouseholdRepo)(nil)

func NewMemoryHouseholdRepo() *MemoryHouseholdRepo {
	return &MemoryHouseholdRepo{
		households: map[string]*domain.Household{},
		members:    map[string]map[string]*domain.Person{},
		exposures:  map[string]map[domain.PairKey]domain.ExposureEvent{},
		nextPos:    map[string]int{},
	}
}

func (r *MemoryHouseholdRepo) CreateHousehold(ctx context.Context, household *domain.Household) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	h := *household
	if h.HouseholdID == "" {
		h.HouseholdID = uuid.NewString()
	}
	if _, exists := r.households[h.HouseholdID]; exists {
		return "", fmt.Errorf("household %s already exists", h.HouseholdID)
	}
	if h.CreatedAt.IsZero() {
		h.CreatedAt = time.Now().UTC()
	}
	r.households[h.HouseholdID] = &h
	r.members[h.HouseholdID] = map[string]*domain.Person{}
	r.exposures[h.HouseholdID] = map[domain.PairKey]domain.ExposureEvent{}

	household.HouseholdID = h.HouseholdID
	household.CreatedAt = h.CreatedAt
	return h.HouseholdID, nil
}

func (r *MemoryHouseholdRepo) GetHousehold(_ context.Context, householdID string) (*domain.Household, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.households[householdID]
	if !ok {
		return nil, fmt.Errorf("household %s: %w", householdID, ErrNotFound)
	}
	out := *h
	return &out, nil
}

func (r *MemoryHouseholdRepo) ListMembers(_ context.Context, householdID string) ([]*domain.Person, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members, ok := r.members[householdID]
	if !ok {
		return nil, fmt.Errorf("household %s: %w", householdID, ErrNotFound)
	}

	out := make([]*domain.Person, 0, len(members))
	for _, p := range members {
		out = append(out, p.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (r *MemoryHouseholdRepo) GetMember(_ context.Context, householdID, personID string) (*domain.Person, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.members[householdID][personID]
	if !ok {
		return nil, fmt.Errorf("member %s: %w", personID, ErrNotFound)
	}
	return p.Clone(), nil
}

func (r *MemoryHouseholdRepo) AddMember(ctx context.Context, householdID string, person *domain.Person, exposures []domain.ExposureEvent) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := checkExposures(exposures); err != nil {
		return "", err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.members[householdID]
	if !ok {
		return "", fmt.Errorf("household %s: %w", householdID, ErrNotFound)
	}

	p := person.Clone()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if _, exists := members[p.ID]; exists {
		return "", fmt.Errorf("member %s already exists", p.ID)
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	p.HouseholdID = householdID
	p.Position = r.nextPos[householdID]
	r.nextPos[householdID]++
	members[p.ID] = p
	for _, e := range exposures {
		r.exposures[householdID][e.Key()] = e
	}

	person.ID = p.ID
	person.HouseholdID = householdID
	person.Position = p.Position
	person.CreatedAt = p.CreatedAt
	return p.ID, nil
}

func (r *MemoryHouseholdRepo) UpdateMember(ctx context.Context, householdID string, person *domain.Person, changes domain.ExposureChanges) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	// 先校验再修改，失败时不留下部分写入
	if err := checkExposures(changes.ToAdd); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.members[householdID][person.ID]
	if !ok {
		return fmt.Errorf("member %s: %w", person.ID, ErrNotFound)
	}
	current.Name = person.Name
	current.CovidEvents = person.CovidEvents.Clone()

	exposures := r.exposures[householdID]
	for _, e := range changes.ToRemove {
		delete(exposures, e.Key())
	}
	for _, e := range changes.ToAdd {
		exposures[e.Key()] = e
	}
	return nil
}

func (r *MemoryHouseholdRepo) RemoveMember(ctx context.Context, householdID, personID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.members[householdID][personID]; !ok {
		return fmt.Errorf("member %s: %w", personID, ErrNotFound)
	}
	for key, e := range r.exposures[householdID] {
		if e.References(personID) {
			delete(r.exposures[householdID], key)
		}
	}
	delete(r.members[householdID], personID)
	return nil
}

func (r *MemoryHouseholdRepo) ListExposures(_ context.Context, householdID string) ([]domain.ExposureEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	exposures, ok := r.exposures[householdID]
	if !ok {
		return nil, fmt.Errorf("household %s: %w", householdID, ErrNotFound)
	}

	out := make([]domain.ExposureEvent, 0, len(exposures))
	for _, e := range exposures {
		out = append(out, e)
	}
	// 集合无顺序，这里排序只为输出稳定
	sort.Slice(out, func(i, j int) bool {
		ki, kj := out[i].Key(), out[j].Key()
		if ki.Low != kj.Low {
			return ki.Low < kj.Low
		}
		return ki.High < kj.High
	})
	return out, nil
}

func (r *MemoryHouseholdRepo) UpdateExposure(ctx context.Context, householdID string, exposure domain.ExposureEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	key := exposure.Key()
	current, ok := r.exposures[householdID][key]
	if !ok {
		return fmt.Errorf("exposure %s/%s: %w", key.Low, key.High, ErrNotFound)
	}
	current.Ongoing = exposure.Ongoing
	current.Date = exposure.Date
	r.exposures[householdID][key] = current
	return nil
}

func checkExposures(exposures []domain.ExposureEvent) error {
	for _, e := range exposures {
		if e.ContagiousPerson == e.QuarantinedPerson {
			return fmt.Errorf("self exposure for %s", e.ContagiousPerson)
		}
	}
	return nil
}
