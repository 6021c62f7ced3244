package evaluator

import "github.com/ARodriguezHacks/covid-calendar/internal/domain"

// IsContagious 是否具有传染性：已设置 PositiveTest 或 SymptomsStart
// 每次调用都重新计算，不做缓存
func IsContagious(person *domain.Person) bool {
	if person == nil {
		return false
	}
	return !person.CovidEvents.Get(domain.PositiveTest).IsZero() ||
		!person.CovidEvents.Get(domain.SymptomsStart).IsZero()
}

// ExposurePartners 与该成员传染状态不同的其他成员（按家庭顺序）
func ExposurePartners(person *domain.Person, household []*domain.Person) []*domain.Person {
	contagious := IsContagious(person)
	var partners []*domain.Person
	for _, other := range household {
		if other == nil || other.ID == person.ID {
			continue
		}
		if IsContagious(other) != contagious {
			partners = append(partners, other)
		}
	}
	return partners
}
