package capture

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Capture results used as metric labels.
const (
	resultStored  = "stored"
	resultDevice  = "device_error"
	resultTimeout = "timeout"
	resultStore   = "store_error"
)

// Metrics are the coordinator's Prometheus collectors.
type Metrics struct {
	captures  *prometheus.CounterVec
	coalesced prometheus.Counter
	duration  prometheus.Histogram
}

// NewMetrics registers the capture collectors on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		captures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "snapapi_captures_total",
				Help: "Capture attempts by result.",
			},
			[]string{"result"},
		),
		coalesced: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "snapapi_triggers_coalesced_total",
			Help: "Triggers merged into an already pending capture request.",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "snapapi_capture_duration_seconds",
			Help:    "Device call duration for successful captures.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}),
	}
	for _, c := range []prometheus.Collector{m.captures, m.coalesced, m.duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) result(r string) {
	if m != nil {
		m.captures.WithLabelValues(r).Inc()
	}
}

func (m *Metrics) coalesce() {
	if m != nil {
		m.coalesced.Inc()
	}
}

func (m *Metrics) observe(seconds float64) {
	if m != nil {
		m.duration.Observe(seconds)
	}
}
