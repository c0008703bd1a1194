package verify

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for verification runs. A nil *Metrics
// disables collection.
type Metrics struct {
	LookupDuration prometheus.Histogram
	Outcomes       *prometheus.CounterVec
	LookupFailures *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	return &Metrics{
		LookupDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "rollscan_verify_lookup_duration_seconds",
			Help:    "Duration of remote roll lookups",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		Outcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "rollscan_verify_outcomes_total",
			Help: "Verification outcomes by classification",
		}, []string{"outcome"}),
		LookupFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "rollscan_verify_lookup_failures_total",
			Help: "Remote lookup failures by category",
		}, []string{"category"}),
	}
}

func (m *Metrics) ObserveLookup(d time.Duration) {
	if m != nil {
		m.LookupDuration.Observe(d.Seconds())
	}
}

func (m *Metrics) IncOutcome(outcome string) {
	if m != nil {
		m.Outcomes.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) IncFailure(category string) {
	if m != nil {
		m.LookupFailures.WithLabelValues(category).Inc()
	}
}
