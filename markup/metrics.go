package markup

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics collects counters of the markup pipeline. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	ComponentsResolved *prometheus.CounterVec
	PermissionDenied   *prometheus.CounterVec
	BoundaryCaught     *prometheus.CounterVec
	ParseDuration      prometheus.Histogram
}

// NewMetrics creates the metrics and registers them with reg when reg is not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ComponentsResolved: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "semantic_pages",
				Subsystem: "markup",
				Name:      "components_resolved_total",
				Help:      "Total number of component elements resolved while parsing markup",
			},
			[]string{"tag"},
		),
		PermissionDenied: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "semantic_pages",
				Subsystem: "markup",
				Name:      "permission_denied_total",
				Help:      "Total number of component elements omitted because of the permission check",
			},
			[]string{"tag"},
		),
		BoundaryCaught: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "semantic_pages",
				Subsystem: "markup",
				Name:      "boundary_caught_total",
				Help:      "Total number of component failures caught by error boundaries",
			},
			[]string{"component", "phase"},
		),
		ParseDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "semantic_pages",
				Subsystem: "markup",
				Name:      "parse_duration_seconds",
				Help:      "Duration of ParseHTML calls in seconds",
				Buckets:   prometheus.DefBuckets,
			},
		),
	}
	if reg != nil {
		reg.MustRegister(m.ComponentsResolved, m.PermissionDenied, m.BoundaryCaught, m.ParseDuration)
	}
	return m
}

func (m *Metrics) resolved(tag string) {
	if m != nil {
		m.ComponentsResolved.WithLabelValues(tag).Inc()
	}
}

func (m *Metrics) denied(tag string) {
	if m != nil {
		m.PermissionDenied.WithLabelValues(tag).Inc()
	}
}

func (m *Metrics) caught(component, phase string) {
	if m != nil {
		m.BoundaryCaught.WithLabelValues(component, phase).Inc()
	}
}

func (m *Metrics) observeParse(seconds float64) {
	if m != nil {
		m.ParseDuration.Observe(seconds)
	}
}
