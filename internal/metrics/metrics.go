// Package metrics exposes Prometheus instruments for submissions, fallback
// writes, notification delivery and deletions. A nil *Metrics is valid and
// records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "leadkeeper"

// Submission outcomes.
const (
	OutcomeStored   = "stored"
	OutcomeDegraded = "degraded"
	OutcomeInvalid  = "invalid"
	OutcomeFailed   = "failed"
)

type Metrics struct {
	submissions      *prometheus.CounterVec
	fallbackWrites   prometheus.Counter
	delivered        prometheus.Counter
	duplicates       prometheus.Counter
	partialDeletions prometheus.Counter
	remoteAvailable  prometheus.Gauge
}

// New creates the instruments and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "Entry submissions by outcome.",
		}, []string{"outcome"}),
		fallbackWrites: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fallback_writes_total",
			Help:      "Entries written locally after a remote write failed.",
		}),
		delivered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_delivered_total",
			Help:      "Entry notifications delivered to subscribers.",
		}),
		duplicates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_duplicate_total",
			Help:      "Entry notifications dropped as already seen.",
		}),
		partialDeletions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "partial_deletions_total",
			Help:      "Bulk deletes that left rows behind after retrying.",
		}),
		remoteAvailable: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "remote_available",
			Help:      "1 when the remote store is in use, 0 in local mode.",
		}),
	}
	reg.MustRegister(m.submissions, m.fallbackWrites, m.delivered, m.duplicates,
		m.partialDeletions, m.remoteAvailable)
	return m
}

func (m *Metrics) Submission(outcome string) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) FallbackWrite() {
	if m == nil {
		return
	}
	m.fallbackWrites.Inc()
}

func (m *Metrics) Delivered() {
	if m == nil {
		return
	}
	m.delivered.Inc()
}

func (m *Metrics) DuplicateDropped() {
	if m == nil {
		return
	}
	m.duplicates.Inc()
}

func (m *Metrics) PartialDeletion() {
	if m == nil {
		return
	}
	m.partialDeletions.Inc()
}

func (m *Metrics) SetRemoteAvailable(ok bool) {
	if m == nil {
		return
	}
	if ok {
		m.remoteAvailable.Set(1)
	} else {
		m.remoteAvailable.Set(0)
	}
}
