package evaluator

import (
	"fmt"

	"github.com/ARodriguezHacks/covid-calendar/internal/domain"
)

// DescribeExposures 生成涉及该成员的暴露描述（按记录顺序）
func DescribeExposures(personID string, household []*domain.Person, existing []domain.ExposureEvent) []string {
	names := make(map[string]string, len(household))
	for _, p := range household {
		if p != nil {
			names[p.ID] = p.Name
		}
	}

	var lines []string
	for _, e := range existing {
		if !e.Exposed || !e.References(personID) {
			continue
		}
		lines = append(lines, DescribeExposure(e, names))
	}
	return lines
}

// DescribeExposure 单条记录的描述；names 中找不到的 id 显示为空
func DescribeExposure(e domain.ExposureEvent, names map[string]string) string {
	quarantined := names[e.QuarantinedPerson]
	contagious := names[e.ContagiousPerson]
	if e.Ongoing || e.Date.IsZero() {
		return fmt.Sprintf("%s has an ongoing exposure to %s", quarantined, contagious)
	}
	return fmt.Sprintf("%s exposed to %s at %s", quarantined, contagious, e.Date.String())
}
