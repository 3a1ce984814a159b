// Package prometheus exposes the engine's counters through a
// prometheus/client_golang collector. The collector reads a fresh snapshot
// on every scrape and never mutates engine state; nothing is registered in
// the global registry, callers mount the handler themselves.
package prometheus

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/caseflow-io/authengine"
)

const namespace = "authengine"

// Source is anything that can produce a metrics snapshot; *authengine.Engine
// satisfies it.
type Source interface {
	MetricsSnapshot() authengine.MetricsSnapshot
	AuditDropped() uint64
}

// Collector adapts a Source to the prometheus.Collector interface.
type Collector struct {
	source       Source
	mu           sync.Mutex
	counterDescs map[authengine.MetricID]*prometheus.Desc
	latencyDesc  *prometheus.Desc
	droppedDesc  *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector builds a collector over the given source.
func NewCollector(source Source) *Collector {
	c := &Collector{
		source:       source,
		counterDescs: make(map[authengine.MetricID]*prometheus.Desc),
		latencyDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "verify_access_latency_seconds"),
			"Access-token verification latency.",
			nil, nil,
		),
		droppedDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "audit_dropped_total"),
			"Audit records shed because the dispatcher buffer was full.",
			nil, nil,
		),
	}
	return c
}

// Handler returns an HTTP handler serving only this collector's metrics.
func Handler(source Source) http.Handler {
	registry := prometheus.NewRegistry()
	registry.MustRegister(NewCollector(source))
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// Describe implements prometheus.Collector. Descriptors are created lazily
// per metric ID and cached.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	snapshot := c.source.MetricsSnapshot()
	for id := range snapshot.Counters {
		ch <- c.counterDesc(id)
	}
	ch <- c.latencyDesc
	ch <- c.droppedDesc
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	snapshot := c.source.MetricsSnapshot()

	for id, value := range snapshot.Counters {
		if id == authengine.MetricVerifyAccessLatency {
			continue // exported as a histogram below
		}
		ch <- prometheus.MustNewConstMetric(
			c.counterDesc(id), prometheus.CounterValue, float64(value))
	}

	if buckets, ok := snapshot.Histograms[authengine.MetricVerifyAccessLatency]; ok {
		ch <- constHistogram(c.latencyDesc, buckets)
	}

	ch <- prometheus.MustNewConstMetric(
		c.droppedDesc, prometheus.CounterValue, float64(c.source.AuditDropped()))
}

func (c *Collector) counterDesc(id authengine.MetricID) *prometheus.Desc {
	c.mu.Lock()
	defer c.mu.Unlock()
	if desc, ok := c.counterDescs[id]; ok {
		return desc
	}
	desc := prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", id.String()+"_total"),
		"Engine counter "+id.String()+".",
		nil, nil,
	)
	c.counterDescs[id] = desc
	return desc
}

// constHistogram converts the engine's fixed millisecond buckets into a
// cumulative Prometheus histogram in seconds.
func constHistogram(desc *prometheus.Desc, buckets []uint64) prometheus.Metric {
	bounds := authengine.HistogramBounds()
	cumulative := make(map[float64]uint64, len(bounds))

	var count uint64
	for i, bound := range bounds {
		if i < len(buckets) {
			count += buckets[i]
		}
		cumulative[float64(bound)/1000.0] = count
	}
	// The final engine bucket is unbounded and lands in +Inf via the total.
	for i := len(bounds); i < len(buckets); i++ {
		count += buckets[i]
	}

	return prometheus.MustNewConstHistogram(desc, count, 0, cumulative)
}
