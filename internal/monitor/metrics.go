package monitor

import "github.com/prometheus/client_golang/prometheus"

// Metrics mirrors classifier.Metrics's shape: per-event counters plus a
// gauge snapshot of each server's status word, registered under the
// "maxproxy" namespace's "monitor" subsystem.
type Metrics struct {
	Events        *prometheus.CounterVec
	ServerStatus  *prometheus.GaugeVec
	TickDuration  prometheus.Histogram
	ScriptErrors  prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "maxproxy",
			Subsystem: "monitor",
			Name:      "events_total",
			Help:      "Number of monitor events derived per server, labeled by event name.",
		}, []string{"server", "event"}),
		ServerStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "maxproxy",
			Subsystem: "monitor",
			Name:      "server_status_bits",
			Help:      "Current status bitmask of each monitored server, as a raw uint64 value.",
		}, []string{"server"}),
		TickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "maxproxy",
			Subsystem: "monitor",
			Name:      "tick_duration_seconds",
			Help:      "Wall time spent in one monitor tick across all servers.",
			Buckets:   prometheus.DefBuckets,
		}),
		ScriptErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "maxproxy",
			Subsystem: "monitor",
			Name:      "script_errors_total",
			Help:      "Number of times the notification script failed to launch or exited non-zero.",
		}),
	}
	reg.MustRegister(m.Events, m.ServerStatus, m.TickDuration, m.ScriptErrors)
	return m
}

// ObserveEvent records a derived event for a server.
func (m *Metrics) ObserveEvent(server string, ev Event) {
	if m == nil {
		return
	}
	m.Events.WithLabelValues(server, ev.String()).Inc()
}

// ObserveStatus records the current status bits for a server.
func (m *Metrics) ObserveStatus(server string, st Status) {
	if m == nil {
		return
	}
	m.ServerStatus.WithLabelValues(server).Set(float64(st))
}
