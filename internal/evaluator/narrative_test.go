package evaluator

import (
	"testing"

	"github.com/ARodriguezHacks/covid-calendar/internal/domain"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestDescribeExposures(t *testing.T) {
	a := newPerson("a", "Alice")
	b := newPerson("b", "Bob")
	c := newPerson("c", "Carol")
	household := []*domain.Person{a, b, c}

	dated := domain.NewOngoingExposure("a", "c")
	dated.Ongoing = false
	dated.Date = day(3)
	events := []domain.ExposureEvent{
		domain.NewOngoingExposure("a", "b"),
		dated,
	}

	assert.Equal(t, []string{
		"Bob has an ongoing exposure to Alice",
		"Carol exposed to Alice at 2021-01-03",
	}, DescribeExposures("a", household, events))

	assert.Equal(t, []string{"Bob has an ongoing exposure to Alice"}, DescribeExposures("b", household, events))
	assert.Empty(t, DescribeExposures("z", household, events))
}

func TestDescribeExposure_UnknownNames(t *testing.T) {
	line := DescribeExposure(domain.NewOngoingExposure("x", "y"), map[string]string{})
	assert.Equal(t, " has an ongoing exposure to ", line)
}

func TestEvaluator_ReconcileUsesCurrentStatus(t *testing.T) {
	e := NewEvaluator(DefaultPolicy(), zap.NewNop())
	a := withEvent(newPerson("a", "A"), domain.PositiveTest, day(1))
	b := newPerson("b", "B")

	changes := e.Reconcile(a, []*domain.Person{a, b}, false, nil)
	assert.Len(t, changes.ToAdd, 1)

	changes = e.Reconcile(a, []*domain.Person{a, b}, true, nil)
	assert.True(t, changes.IsEmpty())
}

func TestEvaluator_Guidance(t *testing.T) {
	e := NewEvaluator(Policy{OnsetIsolationDays: 7, SymptomsEndDays: 1}, nil)
	a := withEvent(newPerson("a", "A"), domain.SymptomsStart, day(1))

	results := e.Guidance([]*domain.Person{a, newPerson("b", "B")})
	assert.Equal(t, day(8), *results[0].Date)
	assert.Nil(t, results[1].Date)
	assert.Equal(t, 7, e.Policy().OnsetIsolationDays)
}
