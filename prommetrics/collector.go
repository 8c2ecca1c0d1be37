// Package prommetrics exports index metrics to Prometheus.
//
//	reg := prometheus.NewRegistry()
//	idx, _ := vecforest.New(128, distance.MetricAngular, 16,
//		vecforest.WithMetricsCollector(prommetrics.NewCollector(reg)))
package prommetrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "vecforest"

// Collector implements vecforest.MetricsCollector with Prometheus counters
// and histograms.
type Collector struct {
	ops      *prometheus.CounterVec
	duration *prometheus.HistogramVec
	bytes    *prometheus.CounterVec
	trees    prometheus.Gauge
	items    prometheus.Gauge
}

// NewCollector creates a Collector and registers its metrics on reg.
// A nil reg uses prometheus.DefaultRegisterer.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Collector{
		ops: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operations_total",
				Help:      "Total number of index operations",
			},
			[]string{"op", "status"},
		),
		duration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "operation_duration_seconds",
				Help:      "Duration of index operations in seconds",
				// From single-item adds to multi-second builds.
				Buckets: []float64{0.00001, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
			},
			[]string{"op"},
		),
		bytes: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "io_bytes_total",
				Help:      "Total bytes written by saves and read by loads",
			},
			[]string{"op"},
		),
		trees: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "trees",
			Help:      "Number of trees in the last successful build",
		}),
		items: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "items",
			Help:      "Number of items in the last successful build",
		}),
	}
}

func (c *Collector) observe(op string, d time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	c.ops.WithLabelValues(op, status).Inc()
	c.duration.WithLabelValues(op).Observe(d.Seconds())
}

// RecordAdd implements vecforest.MetricsCollector.
func (c *Collector) RecordAdd(d time.Duration, err error) {
	c.observe("add", d, err)
}

// RecordBuild implements vecforest.MetricsCollector.
func (c *Collector) RecordBuild(trees, items int, d time.Duration, err error) {
	c.observe("build", d, err)
	if err == nil {
		c.trees.Set(float64(trees))
		c.items.Set(float64(items))
	}
}

// RecordSearch implements vecforest.MetricsCollector.
func (c *Collector) RecordSearch(_ int, filtered bool, d time.Duration, err error) {
	op := "search"
	if filtered {
		op = "filtered_search"
	}
	c.observe(op, d, err)
}

// RecordSave implements vecforest.MetricsCollector.
func (c *Collector) RecordSave(bytes int64, d time.Duration, err error) {
	c.observe("save", d, err)
	if err == nil {
		c.bytes.WithLabelValues("save").Add(float64(bytes))
	}
}

// RecordLoad implements vecforest.MetricsCollector.
func (c *Collector) RecordLoad(bytes int64, d time.Duration, err error) {
	c.observe("load", d, err)
	if err == nil {
		c.bytes.WithLabelValues("load").Add(float64(bytes))
	}
}
