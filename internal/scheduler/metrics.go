package scheduler

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the optional Prometheus instruments for a Scheduler
// (spec §4.H). A nil *Metrics means "don't record".
type Metrics struct {
	dispatched prometheus.Counter
	dropped    prometheus.Counter
	active     prometheus.Gauge
}

// NewMetrics builds and registers scheduler counters/gauges labeled by
// name. Returns nil if reg is nil.
func NewMetrics(reg prometheus.Registerer, name string) *Metrics {
	if reg == nil {
		return nil
	}
	m := &Metrics{
		dispatched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "iotcore",
			Subsystem:   "scheduler",
			Name:        "dispatched_total",
			Help:        "Number of schedule firings successfully submitted to a pool.",
			ConstLabels: prometheus.Labels{"scheduler": name},
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "iotcore",
			Subsystem:   "scheduler",
			Name:        "dropped_total",
			Help:        "Number of schedule firings rejected by a pool (backpressure).",
			ConstLabels: prometheus.Labels{"scheduler": name},
		}),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "iotcore",
			Subsystem:   "scheduler",
			Name:        "active_schedules",
			Help:        "Number of schedules currently in the ordered set.",
			ConstLabels: prometheus.Labels{"scheduler": name},
		}),
	}
	reg.MustRegister(m.dispatched, m.dropped, m.active)
	return m
}

func (m *Metrics) recordDispatched() {
	if m == nil {
		return
	}
	m.dispatched.Inc()
}

func (m *Metrics) recordDropped() {
	if m == nil {
		return
	}
	m.dropped.Inc()
}

func (m *Metrics) setActive(n int) {
	if m == nil {
		return
	}
	m.active.Set(float64(n))
}
