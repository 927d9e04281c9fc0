package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/worshipwaves/WDweb-sub002/pkg/metrics"
	"github.com/worshipwaves/WDweb-sub002/pkg/prefetch"
)

// schedulerMetrics is the Prometheus implementation of prefetch.Metrics.
type schedulerMetrics struct {
	jobs          *prometheus.CounterVec
	jobDuration   *prometheus.HistogramVec
	backlog       prometheus.Gauge
	idleCallbacks *prometheus.CounterVec
}

// NewSchedulerMetrics creates a Prometheus-backed prefetch.Metrics.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewSchedulerMetrics() prefetch.Metrics {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()

	return &schedulerMetrics{
		jobs: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metrics.Namespace,
				Name:      "prefetch_jobs_total",
				Help:      "Prefetch jobs by origin and outcome",
			},
			[]string{"origin", "outcome"},
		),
		jobDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metrics.Namespace,
				Name:      "prefetch_job_duration_milliseconds",
				Help:      "Time from job start to completion or abandonment",
				Buckets:   []float64{10, 50, 250, 1000, 2500, 5000, 10000, 15000, 30000},
			},
			[]string{"origin"},
		),
		backlog: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Namespace: metrics.Namespace,
				Name:      "prefetch_backlog_jobs",
				Help:      "Jobs still queued in the prefetch backlog",
			},
		),
		idleCallbacks: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metrics.Namespace,
				Name:      "prefetch_idle_callbacks_total",
				Help:      "Idle callbacks by decision",
			},
			[]string{"decision"}, // "proceed", "backoff", "stale"
		),
	}
}

func (m *schedulerMetrics) ObserveJob(origin, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.jobs.WithLabelValues(origin, outcome).Inc()
	m.jobDuration.WithLabelValues(origin).Observe(duration.Seconds() * 1000)
}

func (m *schedulerMetrics) SetBacklog(n int) {
	if m == nil {
		return
	}
	m.backlog.Set(float64(n))
}

func (m *schedulerMetrics) RecordIdleCallback(decision string) {
	if m == nil {
		return
	}
	m.idleCallbacks.WithLabelValues(decision).Inc()
}
