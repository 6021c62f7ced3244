package evaluator

import (
	"time"

	"github.com/ARodriguezHacks/covid-calendar/internal/domain"
)

// day 返回 2021-01-01 起第 n 天（day(1) = 2021-01-01）
func day(n int) domain.Date {
	return domain.NewDate(2021, time.January, 1).AddDays(n - 1)
}

func newPerson(id, name string) *domain.Person {
	p := domain.NewPerson("household-1", name)
	p.ID = id
	return p
}

func withEvent(p *domain.Person, name domain.CovidEventName, d domain.Date) *domain.Person {
	p.CovidEvents[name] = d
	return p
}

func countBetween(events []domain.ExposureEvent, a, b string) int {
	n := 0
	for _, e := range events {
		if e.Key() == domain.NewPairKey(a, b) {
			n++
		}
	}
	return n
}
