// Package prometheus implements the cache and scheduler metrics interfaces
// on top of the shared registry in pkg/metrics.
package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/worshipwaves/WDweb-sub002/pkg/cache"
	"github.com/worshipwaves/WDweb-sub002/pkg/metrics"
)

// cacheMetrics is the Prometheus implementation of cache.Metrics.
type cacheMetrics struct {
	lookups       *prometheus.CounterVec
	fetches       *prometheus.CounterVec
	fetchDuration prometheus.Histogram
	fetchBytes    prometheus.Histogram
	disposed      prometheus.Counter
}

// NewCacheMetrics creates a Prometheus-backed cache.Metrics.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewCacheMetrics() cache.Metrics {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()

	return &cacheMetrics{
		lookups: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metrics.Namespace,
				Name:      "cache_lookups_total",
				Help:      "Asset cache lookups by result",
			},
			[]string{"result"}, // "hit", "miss"
		),
		fetches: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metrics.Namespace,
				Name:      "cache_fetches_total",
				Help:      "Completed asset fetches by status",
			},
			[]string{"status"}, // "ok", "error"
		),
		fetchDuration: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metrics.Namespace,
				Name:      "cache_fetch_duration_milliseconds",
				Help:      "Duration of fetch-and-decode in milliseconds",
				Buckets: []float64{
					5,     // 5ms - local tier
					25,    // 25ms
					100,   // 100ms
					250,   // 250ms
					1000,  // 1s - typical remote fetch
					5000,  // 5s
					15000, // 15s - job timeout ceiling
				},
			},
		),
		fetchBytes: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metrics.Namespace,
				Name:      "cache_fetch_bytes",
				Help:      "Encoded size of fetched assets",
				Buckets:   prometheus.ExponentialBuckets(16*1024, 4, 7), // 16KB .. 64MB
			},
		),
		disposed: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: metrics.Namespace,
				Name:      "cache_disposed_records_total",
				Help:      "Records dropped by cache disposal",
			},
		),
	}
}

func (m *cacheMetrics) RecordLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.lookups.WithLabelValues(result).Inc()
}

func (m *cacheMetrics) ObserveFetch(duration time.Duration, bytes int, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.fetches.WithLabelValues(status).Inc()
	m.fetchDuration.Observe(duration.Seconds() * 1000)
	if bytes > 0 {
		m.fetchBytes.Observe(float64(bytes))
	}
}

func (m *cacheMetrics) RecordDispose(records int) {
	if m == nil {
		return
	}
	m.disposed.Add(float64(records))
}
