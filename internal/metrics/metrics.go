// Package metrics exposes Prometheus collectors for the conversion
// pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the pipeline's Prometheus collectors.
type Metrics struct {
	ConversionsTotal   *prometheus.CounterVec
	ConversionDuration prometheus.Histogram
	DetectionsTotal    *prometheus.CounterVec
	CacheHits          prometheus.Counter
	CacheMisses        prometheus.Counter
	CacheEvictions     prometheus.Counter
	CacheSizeBytes     prometheus.Gauge
	CacheEntries       prometheus.Gauge
	SegmentJobsTotal   prometheus.Counter
}

// New registers all collectors with reg and returns them.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ConversionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "theconverter_conversions_total",
			Help: "Conversions by outcome.",
		}, []string{"outcome"}),
		ConversionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "theconverter_conversion_duration_seconds",
			Help:    "Wall-clock duration of conversions.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
		}),
		DetectionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "theconverter_detections_total",
			Help: "Format detections by detected media type.",
		}, []string{"type"}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "theconverter_cache_hits_total",
			Help: "Conversion cache hits.",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "theconverter_cache_misses_total",
			Help: "Conversion cache misses.",
		}),
		CacheEvictions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "theconverter_cache_evictions_total",
			Help: "Cache entries evicted by size or age pressure.",
		}),
		CacheSizeBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "theconverter_cache_size_bytes",
			Help: "Total bytes currently stored in the conversion cache.",
		}),
		CacheEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "theconverter_cache_entries",
			Help: "Entries currently in the conversion cache.",
		}),
		SegmentJobsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "theconverter_segment_jobs_total",
			Help: "Conversions routed through the segment processor.",
		}),
	}

	reg.MustRegister(
		m.ConversionsTotal,
		m.ConversionDuration,
		m.DetectionsTotal,
		m.CacheHits,
		m.CacheMisses,
		m.CacheEvictions,
		m.CacheSizeBytes,
		m.CacheEntries,
		m.SegmentJobsTotal,
	)

	return m
}
