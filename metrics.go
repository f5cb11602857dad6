package pages

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts served requests. A nil *Metrics records nothing.
type Metrics struct {
	Requests *prometheus.CounterVec
	Duration prometheus.Histogram
}

// NewMetrics creates the metrics and registers them with reg when reg is not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "semantic_pages",
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of served requests by status code",
			},
			[]string{"code"},
		),
		Duration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "semantic_pages",
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Duration of served requests in seconds",
				Buckets:   prometheus.DefBuckets,
			},
		),
	}
	if reg != nil {
		reg.MustRegister(m.Requests, m.Duration)
	}
	return m
}

func (m *Metrics) observe(status int, d time.Duration) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(strconv.Itoa(status)).Inc()
	m.Duration.Observe(d.Seconds())
}
