package evaluator

import "github.com/ARodriguezHacks/covid-calendar/internal/domain"

// Policy 隔离期规则参数
type Policy struct {
	OnsetIsolationDays int // 发病（最早的症状/阳性日期）后隔离天数
	SymptomsEndDays    int // 症状结束后至少再隔离天数
}

// DefaultPolicy 10 天 / 1 天
func DefaultPolicy() Policy {
	return Policy{OnsetIsolationDays: 10, SymptomsEndDays: 1}
}

// IsolationEnd 计算隔离结束日期；没有任何相关事件时返回 false
func (p Policy) IsolationEnd(person *domain.Person) (domain.Date, bool) {
	if person == nil {
		return domain.Date{}, false
	}

	illnessOnset := domain.MinDate(
		person.CovidEvents.Get(domain.SymptomsStart),
		person.CovidEvents.Get(domain.PositiveTest),
	)
	afterOnset := illnessOnset.AddDays(p.OnsetIsolationDays)
	afterSymptomsEnd := person.CovidEvents.Get(domain.SymptomsEnd).AddDays(p.SymptomsEndDays)

	end := domain.MaxDate(afterOnset, afterSymptomsEnd)
	return end, !end.IsZero()
}

// HouseholdGuidance 按家庭顺序计算每个成员的指导日期
func (p Policy) HouseholdGuidance(household []*domain.Person) []domain.GuidanceResult {
	results := make([]domain.GuidanceResult, 0, len(household))
	for _, person := range household {
		result := domain.GuidanceResult{Person: person}
		if end, ok := p.IsolationEnd(person); ok {
			result.Date = &end
		}
		results = append(results, result)
	}
	return results
}

// ComputeIsolationPeriod 默认规则下的隔离结束日期
func ComputeIsolationPeriod(person *domain.Person) (domain.Date, bool) {
	return DefaultPolicy().IsolationEnd(person)
}

// ComputeHouseholdGuidance 默认规则下的家庭指导
func ComputeHouseholdGuidance(household []*domain.Person) []domain.GuidanceResult {
	return DefaultPolicy().HouseholdGuidance(household)
}
