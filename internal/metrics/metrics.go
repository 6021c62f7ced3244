package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for household writes and guidance reads.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Reconciliations by outcome: "transition", "noop" or "join"
	Reconciliations *prometheus.CounterVec

	ExposuresAdded   prometheus.Counter
	ExposuresRemoved prometheus.Counter

	// Guidance results by availability: "dated" or "none"
	GuidanceResults *prometheus.CounterVec

	// Household write latency by operation
	WriteLatency *prometheus.HistogramVec
}

// New registers all metrics on reg. Pass prometheus.DefaultRegisterer in
// production and a fresh prometheus.NewRegistry() in tests.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Reconciliations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "covid_household_reconciliations_total",
			Help: "Exposure reconciliations by outcome",
		}, []string{"outcome"}),

		ExposuresAdded: factory.NewCounter(prometheus.CounterOpts{
			Name: "covid_household_exposures_added_total",
			Help: "Exposure records added by reconciliation",
		}),

		ExposuresRemoved: factory.NewCounter(prometheus.CounterOpts{
			Name: "covid_household_exposures_removed_total",
			Help: "Exposure records removed by reconciliation or member removal",
		}),

		GuidanceResults: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "covid_household_guidance_results_total",
			Help: "Per-member guidance results by availability",
		}, []string{"availability"}),

		WriteLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "covid_household_write_duration_seconds",
			Help:    "Duration of household write operations including reconciliation",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"operation"}),
	}
}

// ObserveReconciliation records one reconciliation and its record counts.
func (m *Metrics) ObserveReconciliation(transition bool, added, removed int) {
	if m == nil {
		return
	}
	outcome := "noop"
	if transition {
		outcome = "transition"
	}
	m.Reconciliations.WithLabelValues(outcome).Inc()
	m.ExposuresAdded.Add(float64(added))
	m.ExposuresRemoved.Add(float64(removed))
}

// ObserveJoin records the exposure derivation for a newly added member.
// Joins are counted apart from status transitions.
func (m *Metrics) ObserveJoin(added int) {
	if m == nil {
		return
	}
	m.Reconciliations.WithLabelValues("join").Inc()
	m.ExposuresAdded.Add(float64(added))
}

// ObserveRemoved records exposure records dropped outside a reconciliation.
func (m *Metrics) ObserveRemoved(removed int) {
	if m != nil {
		m.ExposuresRemoved.Add(float64(removed))
	}
}

func (m *Metrics) ObserveGuidance(dated, none int) {
	if m == nil {
		return
	}
	m.GuidanceResults.WithLabelValues("dated").Add(float64(dated))
	m.GuidanceResults.WithLabelValues("none").Add(float64(none))
}

func (m *Metrics) ObserveWriteLatency(operation string, d time.Duration) {
	if m != nil {
		m.WriteLatency.WithLabelValues(operation).Observe(d.Seconds())
	}
}
