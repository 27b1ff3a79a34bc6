package classifier

import "github.com/prometheus/client_golang/prometheus"

// Metrics exposes the aggregate (summed across every worker goroutine's
// own Cache) classifier counters as Prometheus instruments, per
// SPEC_FULL.md's DOMAIN STACK wiring of prometheus/client_golang.
type Metrics struct {
	Hits      prometheus.Counter
	Misses    prometheus.Counter
	Evictions prometheus.Counter
	Inserts   prometheus.Counter
	SizeBytes prometheus.Gauge
}

// NewMetrics registers the classifier's counters against reg and returns
// the handle used to record snapshots pulled from one or more Cache
// instances.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Hits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "maxproxy", Subsystem: "classifier", Name: "cache_hits_total",
			Help: "Parsing cache hits across all worker goroutines.",
		}),
		Misses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "maxproxy", Subsystem: "classifier", Name: "cache_misses_total",
			Help: "Parsing cache misses across all worker goroutines.",
		}),
		Evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "maxproxy", Subsystem: "classifier", Name: "cache_evictions_total",
			Help: "Random-bucket cache evictions across all worker goroutines.",
		}),
		Inserts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "maxproxy", Subsystem: "classifier", Name: "cache_inserts_total",
			Help: "Parsing cache inserts across all worker goroutines.",
		}),
		SizeBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "maxproxy", Subsystem: "classifier", Name: "cache_size_bytes",
			Help: "Sum of per-goroutine parsing cache sizes, in bytes.",
		}),
	}
	reg.MustRegister(m.Hits, m.Misses, m.Evictions, m.Inserts, m.SizeBytes)
	return m
}

// Observer records successive Stats snapshots, either one Cache's or a
// sum over several caches (as the server's metrics loop passes). Counters are
// monotonic (prev tracks the last-observed cumulative value so repeated
// polling doesn't double count).
type Observer struct {
	metrics *Metrics
	prev    Stats
}

func NewObserver(m *Metrics) *Observer { return &Observer{metrics: m} }

func (o *Observer) Observe(s Stats) {
	o.metrics.Hits.Add(float64(s.Hits - o.prev.Hits))
	o.metrics.Misses.Add(float64(s.Misses - o.prev.Misses))
	o.metrics.Evictions.Add(float64(s.Evictions - o.prev.Evictions))
	o.metrics.Inserts.Add(float64(s.Inserts - o.prev.Inserts))
	o.metrics.SizeBytes.Set(float64(s.Size))
	o.prev = s
}
