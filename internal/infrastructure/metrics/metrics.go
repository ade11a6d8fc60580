// Package metrics holds the Prometheus collectors exported by the worker.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus collectors for the worker. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	JobsTotal         *prometheus.CounterVec
	JobDuration       *prometheus.HistogramVec
	JobRunning        *prometheus.GaugeVec
	DroppedMessages   prometheus.Counter
	AckErrors         prometheus.Counter
	JoinedQueues      prometheus.Gauge
	MembershipChanges *prometheus.CounterVec
	ResolverLookups   *prometheus.CounterVec
	ShutdownWaitTicks prometheus.Gauge
	ReconcileDuration prometheus.Histogram
}

// NewMetrics creates and registers all metrics with the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		JobsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "egress_worker",
			Name:      "jobs_total",
			Help:      "Total number of dispatched jobs by class and outcome.",
		}, []string{"class", "outcome"}),

		JobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "egress_worker",
			Name:      "job_duration_seconds",
			Help:      "Job execution wall-clock time in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"class"}),

		JobRunning: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "egress_worker",
			Name:      "job_running",
			Help:      "1 while a job of the given class is executing.",
		}, []string{"class"}),

		DroppedMessages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "egress_worker",
			Name:      "dropped_messages_total",
			Help:      "Deliveries acknowledged without dispatch because the body was not a job envelope.",
		}),

		AckErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "egress_worker",
			Name:      "ack_errors_total",
			Help:      "Acknowledgments rejected by the broker.",
		}),

		JoinedQueues: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "egress_worker",
			Name:      "joined_queues",
			Help:      "Number of outgoing queues currently subscribed.",
		}),

		MembershipChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "egress_worker",
			Name:      "membership_changes_total",
			Help:      "Queue joins and leaves applied by reconciliation.",
		}, []string{"action"}),

		ResolverLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "egress_worker",
			Name:      "resolver_lookups_total",
			Help:      "Address registry lookups by result.",
		}, []string{"result"}),

		ShutdownWaitTicks: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "egress_worker",
			Name:      "shutdown_wait_ticks",
			Help:      "Shutdown-wait intervals elapsed while a job was running.",
		}),

		ReconcileDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "egress_worker",
			Name:      "reconcile_duration_seconds",
			Help:      "Time spent reconciling queue membership per tick.",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		m.JobsTotal,
		m.JobDuration,
		m.JobRunning,
		m.DroppedMessages,
		m.AckErrors,
		m.JoinedQueues,
		m.MembershipChanges,
		m.ResolverLookups,
		m.ShutdownWaitTicks,
		m.ReconcileDuration,
	)

	return m
}

// JobStarted marks class as running.
func (m *Metrics) JobStarted(class string) {
	if m == nil {
		return
	}
	m.JobRunning.WithLabelValues(class).Set(1)
}

// JobFinished records the outcome and duration of a job.
func (m *Metrics) JobFinished(class, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.JobRunning.WithLabelValues(class).Set(0)
	m.JobsTotal.WithLabelValues(class, outcome).Inc()
	m.JobDuration.WithLabelValues(class).Observe(elapsed.Seconds())
}

func (m *Metrics) MessageDropped() {
	if m == nil {
		return
	}
	m.DroppedMessages.Inc()
}

func (m *Metrics) AckFailed() {
	if m == nil {
		return
	}
	m.AckErrors.Inc()
}

// QueueJoined records a join and updates the joined-queues gauge.
func (m *Metrics) QueueJoined(total int) {
	if m == nil {
		return
	}
	m.MembershipChanges.WithLabelValues("join").Inc()
	m.JoinedQueues.Set(float64(total))
}

// QueueLeft records a leave and updates the joined-queues gauge.
func (m *Metrics) QueueLeft(total int) {
	if m == nil {
		return
	}
	m.MembershipChanges.WithLabelValues("leave").Inc()
	m.JoinedQueues.Set(float64(total))
}

// LookupDone records a resolver lookup; result is "hit", "miss" or "error".
func (m *Metrics) LookupDone(result string) {
	if m == nil {
		return
	}
	m.ResolverLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) ShutdownWaited(ticks int) {
	if m == nil {
		return
	}
	m.ShutdownWaitTicks.Set(float64(ticks))
}

func (m *Metrics) ReconcileDone(elapsed time.Duration) {
	if m == nil {
		return
	}
	m.ReconcileDuration.Observe(elapsed.Seconds())
}
