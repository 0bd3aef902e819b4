package cfunc

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "cfunc"

type metrics struct {
	lookups         *prometheus.CounterVec
	compiles        *prometheus.CounterVec
	compileDuration prometheus.Histogram
	entries         prometheus.Gauge
}

func newMetrics() *metrics {
	return &metrics{
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Number of routine lookups, by result.",
		}, []string{"result"}),
		compiles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "compiles_total",
			Help:      "Number of routines compiled, by outcome.",
		}, []string{"outcome"}),
		compileDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "compile_duration_seconds",
			Help:      "Time taken to generate, build and load a routine.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
		}),
		entries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "entries",
			Help:      "Number of routines in the cache.",
		}),
	}
}

// PrometheusCollectors returns all prometheus metrics for the dispatcher.
func (d *Dispatcher) PrometheusCollectors() []prometheus.Collector {
	return []prometheus.Collector{
		d.metrics.lookups,
		d.metrics.compiles,
		d.metrics.compileDuration,
		d.metrics.entries,
	}
}
