package scheduler

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsConfig configures scheduler metrics.
type MetricsConfig struct {
	Enabled   bool
	Namespace string
	// Buckets for duration histograms. Defaults to prometheus.DefBuckets.
	Buckets []float64
}

// Metrics exposes scheduler activity to Prometheus. A disabled or nil
// Metrics accepts every call and records nothing.
type Metrics struct {
	config MetricsConfig

	jobs             *prometheus.CounterVec
	batchesAdmitted  *prometheus.CounterVec
	batchesExpired   prometheus.Counter
	lanesCommitted   *prometheus.CounterVec
	lanesRestarted   prometheus.Counter
	tasksCancelled   prometheus.Counter
	syncWalkDuration prometheus.Histogram
	commitDuration   prometheus.Histogram
	busyLanes        prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics creates a collector with its own registry.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		return &Metrics{config: cfg}, nil
	}
	ns := cfg.Namespace
	buckets := cfg.Buckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}
	registry := prometheus.NewRegistry()
	m := &Metrics{
		config:   cfg,
		registry: registry,
		jobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "scheduler",
			Name:      "jobs_total",
			Help:      "Jobs submitted, by kind",
		}, []string{"kind"}),
		batchesAdmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "scheduler",
			Name:      "batches_admitted_total",
			Help:      "Batches admitted to a lane, by kind",
		}, []string{"kind"}),
		batchesExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "scheduler",
			Name:      "batches_expired_total",
			Help:      "Async batches merged into a newer batch",
		}),
		lanesCommitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "scheduler",
			Name:      "lanes_committed_total",
			Help:      "Lane runs committed, by kind",
		}, []string{"kind"}),
		lanesRestarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "scheduler",
			Name:      "lanes_restarted_total",
			Help:      "Async attempts restarted after cancellation",
		}),
		tasksCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "scheduler",
			Name:      "tasks_cancelled_total",
			Help:      "Async build tasks that ended cancelled",
		}),
		syncWalkDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: ns,
			Subsystem: "scheduler",
			Name:      "sync_walk_duration_seconds",
			Help:      "Duration of sync lane passes",
			Buckets:   buckets,
		}),
		commitDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: ns,
			Subsystem: "scheduler",
			Name:      "async_commit_duration_seconds",
			Help:      "Duration of async lane commits",
			Buckets:   buckets,
		}),
		busyLanes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns,
			Subsystem: "scheduler",
			Name:      "busy_async_lanes",
			Help:      "Async lanes holding a batch",
		}),
	}
	registry.MustRegister(
		m.jobs,
		m.batchesAdmitted,
		m.batchesExpired,
		m.lanesCommitted,
		m.lanesRestarted,
		m.tasksCancelled,
		m.syncWalkDuration,
		m.commitDuration,
		m.busyLanes,
	)
	return m, nil
}

// Registry returns the underlying registry, nil when disabled.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

func kindLabel(sync bool) string {
	if sync {
		return "sync"
	}
	return "async"
}

func (m *Metrics) recordJob(sync bool) {
	if m == nil || m.jobs == nil {
		return
	}
	m.jobs.WithLabelValues(kindLabel(sync)).Inc()
}

func (m *Metrics) recordAdmitted(sync bool) {
	if m == nil || m.batchesAdmitted == nil {
		return
	}
	m.batchesAdmitted.WithLabelValues(kindLabel(sync)).Inc()
}

func (m *Metrics) recordExpired(n int) {
	if m == nil || m.batchesExpired == nil {
		return
	}
	m.batchesExpired.Add(float64(n))
}

func (m *Metrics) recordSyncWalk(d time.Duration) {
	if m == nil || m.syncWalkDuration == nil {
		return
	}
	m.syncWalkDuration.Observe(d.Seconds())
	m.lanesCommitted.WithLabelValues("sync").Inc()
}

func (m *Metrics) recordAsyncCommit(d time.Duration) {
	if m == nil || m.commitDuration == nil {
		return
	}
	m.commitDuration.Observe(d.Seconds())
	m.lanesCommitted.WithLabelValues("async").Inc()
}

func (m *Metrics) recordRestart() {
	if m == nil || m.lanesRestarted == nil {
		return
	}
	m.lanesRestarted.Inc()
}

func (m *Metrics) recordTaskCancelled() {
	if m == nil || m.tasksCancelled == nil {
		return
	}
	m.tasksCancelled.Inc()
}

func (m *Metrics) setBusyLanes(n int) {
	if m == nil || m.busyLanes == nil {
		return
	}
	m.busyLanes.Set(float64(n))
}
