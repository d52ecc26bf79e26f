package generation

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	outcomes *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics registers the generation collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "generation_outcomes_total",
			Help: "Generate invocations by outcome kind.",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "generation_duration_seconds",
			Help:    "Wall time of Generate invocations.",
			Buckets: []float64{1, 5, 10, 20, 30, 60, 120, 300},
		}, []string{"outcome"}),
	}
	reg.MustRegister(m.outcomes, m.duration)
	return m
}

func (m *Metrics) observe(kind Kind, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.outcomes.WithLabelValues(string(kind)).Inc()
	m.duration.WithLabelValues(string(kind)).Observe(elapsed.Seconds())
}
