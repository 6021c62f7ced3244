package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gathered returns the summed counter value of a family filtered by an optional label.
func gathered(t *testing.T, reg *prometheus.Registry, name, label, value string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)

	var total float64
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if label != "" {
				matched := false
				for _, lp := range m.GetLabel() {
					if lp.GetName() == label && lp.GetValue() == value {
						matched = true
					}
				}
				if !matched {
					continue
				}
			}
			if m.GetCounter() != nil {
				total += m.GetCounter().GetValue()
			}
			if m.GetHistogram() != nil {
				total += float64(m.GetHistogram().GetSampleCount())
			}
		}
	}
	return total
}

func TestMetrics_Reconciliation(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveReconciliation(true, 2, 1)
	m.ObserveReconciliation(false, 0, 0)
	m.ObserveRemoved(3)

	assert.Equal(t, 1.0, gathered(t, reg, "covid_household_reconciliations_total", "outcome", "transition"))
	assert.Equal(t, 1.0, gathered(t, reg, "covid_household_reconciliations_total", "outcome", "noop"))
	assert.Equal(t, 2.0, gathered(t, reg, "covid_household_exposures_added_total", "", ""))
	assert.Equal(t, 4.0, gathered(t, reg, "covid_household_exposures_removed_total", "", ""))
}

func TestMetrics_JoinCountedApartFromTransitions(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveJoin(3)

	assert.Equal(t, 1.0, gathered(t, reg, "covid_household_reconciliations_total", "outcome", "join"))
	assert.Equal(t, 0.0, gathered(t, reg, "covid_household_reconciliations_total", "outcome", "transition"))
	assert.Equal(t, 3.0, gathered(t, reg, "covid_household_exposures_added_total", "", ""))
}

func TestMetrics_GuidanceAndLatency(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveGuidance(2, 1)
	m.ObserveWriteLatency("set_event", 5*time.Millisecond)

	assert.Equal(t, 2.0, gathered(t, reg, "covid_household_guidance_results_total", "availability", "dated"))
	assert.Equal(t, 1.0, gathered(t, reg, "covid_household_guidance_results_total", "availability", "none"))
	assert.Equal(t, 1.0, gathered(t, reg, "covid_household_write_duration_seconds", "operation", "set_event"))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveReconciliation(true, 1, 1)
		m.ObserveJoin(1)
		m.ObserveRemoved(1)
		m.ObserveGuidance(1, 1)
		m.ObserveWriteLatency("x", time.Second)
	})
}
