package workerpool

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the optional Prometheus instruments for a Pool (spec
// §4.H, ambient domain stack). A nil *Metrics means "don't record" —
// every call site on Pool already guards on that.
type Metrics struct {
	queued  prometheus.Gauge
	working prometheus.Gauge
}

// NewMetrics builds and registers pool gauges labeled by name. Returns
// nil if reg is nil, so callers can do:
//
//	cfg.Metrics = workerpool.NewMetrics(reg, "jobs")
func NewMetrics(reg prometheus.Registerer, name string) *Metrics {
	if reg == nil {
		return nil
	}
	m := &Metrics{
		queued: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "iotcore",
			Subsystem:   "workerpool",
			Name:        "queued_jobs",
			Help:        "Number of jobs currently queued, not yet dispatched.",
			ConstLabels: prometheus.Labels{"pool": name},
		}),
		working: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "iotcore",
			Subsystem:   "workerpool",
			Name:        "working_jobs",
			Help:        "Number of jobs currently executing.",
			ConstLabels: prometheus.Labels{"pool": name},
		}),
	}
	reg.MustRegister(m.queued, m.working)
	return m
}

func (m *Metrics) setQueued(n int) {
	if m == nil {
		return
	}
	m.queued.Set(float64(n))
}

func (m *Metrics) setWorking(n int) {
	if m == nil {
		return
	}
	m.working.Set(float64(n))
}
