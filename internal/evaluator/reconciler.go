package evaluator

import "github.com/ARodriguezHacks/covid-calendar/internal/domain"

// ReconcileExposures 成员传染状态变化时重新推导其家庭内暴露记录
//
// 与该成员相关的旧记录全部删除（不论方向），再对每个其他成员按新状态重新生成。
// contagious == wasContagious 时不是状态跳变，返回空结果。
func ReconcileExposures(
	person *domain.Person,
	household []*domain.Person,
	contagious bool,
	wasContagious bool,
	existing []domain.ExposureEvent,
) domain.ExposureChanges {
	if person == nil || contagious == wasContagious {
		return domain.ExposureChanges{}
	}

	return domain.ExposureChanges{
		ToRemove: ExposuresReferencing(person.ID, existing),
		ToAdd:    deriveExposures(person.ID, contagious, household),
	}
}

// ExposuresForNewMember 新成员加入时应存在的记录（新成员此前不在任何记录中）
func ExposuresForNewMember(person *domain.Person, household []*domain.Person) []domain.ExposureEvent {
	if person == nil {
		return nil
	}
	return deriveExposures(person.ID, IsContagious(person), household)
}

// ExposuresReferencing 所有涉及该成员的记录（删除成员时同样使用）
func ExposuresReferencing(personID string, existing []domain.ExposureEvent) []domain.ExposureEvent {
	var out []domain.ExposureEvent
	for _, e := range existing {
		if e.References(personID) {
			out = append(out, e)
		}
	}
	return out
}

func deriveExposures(personID string, contagious bool, household []*domain.Person) []domain.ExposureEvent {
	var out []domain.ExposureEvent
	seen := make(map[string]struct{}, len(household))
	for _, other := range household {
		if other == nil || other.ID == personID {
			continue
		}
		// 同一成员重复出现时只算一次，保证每个无序对至多一条
		if _, dup := seen[other.ID]; dup {
			continue
		}
		seen[other.ID] = struct{}{}

		if IsContagious(other) == contagious {
			continue
		}
		if contagious {
			out = append(out, domain.NewOngoingExposure(personID, other.ID))
		} else {
			out = append(out, domain.NewOngoingExposure(other.ID, personID))
		}
	}
	return out
}
