// Package metrics exposes Prometheus collectors for the segment read-lock manager.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "chunkfs"

// Acquire outcomes used as the "result" label of AcquireTotal.
const (
	AcquireGranted  = "granted"
	AcquireMissing  = "missing"
	AcquirePending  = "pending"
	AcquireErrored  = "error"
	DeleteImmediate = "immediate"
	DeleteDeferred  = "deferred"
)

// LockMetrics groups the read-lock collectors. A nil *LockMetrics is valid and
// records nothing.
type LockMetrics struct {
	AcquireTotal        *prometheus.CounterVec
	ReleaseTotal        prometheus.Counter
	MarkTotal           prometheus.Counter
	DeletionsTotal      *prometheus.CounterVec
	DeletionFailures    prometheus.Counter
	DeletionLatency     prometheus.Histogram
	AccountingViolation prometheus.Counter
	TrackedFiles        prometheus.Gauge
}

// NewLockMetrics creates the collectors and registers them on reg when reg is not nil.
func NewLockMetrics(reg prometheus.Registerer) *LockMetrics {
	m := &LockMetrics{
		AcquireTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "readlock",
			Name:      "acquire_total",
			Help:      "Read lock acquisitions by result.",
		}, []string{"result"}),
		ReleaseTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "readlock",
			Name:      "release_total",
			Help:      "Read locks released.",
		}),
		MarkTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "readlock",
			Name:      "mark_for_deletion_total",
			Help:      "Files marked for deletion.",
		}),
		DeletionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "readlock",
			Name:      "deletions_total",
			Help:      "Physical file deletions, by whether they ran at mark time or on last release.",
		}, []string{"trigger"}),
		DeletionFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "readlock",
			Name:      "deletion_failures_total",
			Help:      "Physical deletions that failed and remain pending.",
		}),
		DeletionLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "readlock",
			Name:      "deletion_seconds",
			Help:      "Time spent deleting a file's chunks and metadata.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
		}),
		AccountingViolation: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "readlock",
			Name:      "accounting_violations_total",
			Help:      "Releases without a matching acquire.",
		}),
		TrackedFiles: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "readlock",
			Name:      "tracked_files",
			Help:      "Files currently held open or pending deletion.",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.AcquireTotal,
			m.ReleaseTotal,
			m.MarkTotal,
			m.DeletionsTotal,
			m.DeletionFailures,
			m.DeletionLatency,
			m.AccountingViolation,
			m.TrackedFiles,
		)
	}
	return m
}

func (m *LockMetrics) ObserveAcquire(result string) {
	if m == nil {
		return
	}
	m.AcquireTotal.WithLabelValues(result).Inc()
}

func (m *LockMetrics) ObserveRelease() {
	if m == nil {
		return
	}
	m.ReleaseTotal.Inc()
}

func (m *LockMetrics) ObserveMark() {
	if m == nil {
		return
	}
	m.MarkTotal.Inc()
}

// ObserveDeletion records one physical deletion attempt.
func (m *LockMetrics) ObserveDeletion(trigger string, seconds float64, err error) {
	if m == nil {
		return
	}
	m.DeletionLatency.Observe(seconds)
	if err != nil {
		m.DeletionFailures.Inc()
		return
	}
	m.DeletionsTotal.WithLabelValues(trigger).Inc()
}

func (m *LockMetrics) ObserveViolation() {
	if m == nil {
		return
	}
	m.AccountingViolation.Inc()
}

func (m *LockMetrics) AddTracked(delta float64) {
	if m == nil || delta == 0 {
		return
	}
	m.TrackedFiles.Add(delta)
}
