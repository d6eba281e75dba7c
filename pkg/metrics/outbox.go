package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// OutboxMetrics counts publisher outcomes per event type.
type OutboxMetrics struct {
	outcomes *prometheus.CounterVec
	lag      prometheus.Histogram
}

// NewOutboxMetrics registers the publisher metrics. A nil registerer yields a no-op recorder.
func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_events_total",
		Help: "Outbox rows handled by the publisher, by event type and outcome.",
	}, []string{"event_type", "outcome"})
	lag := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "outbox_publish_lag_seconds",
		Help:    "Delay between an event being recorded and published.",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
	})
	reg.MustRegister(outcomes, lag)
	return &OutboxMetrics{outcomes: outcomes, lag: lag}
}

// ObserveOutcome records one published, retried or dead-lettered row.
func (o *OutboxMetrics) ObserveOutcome(eventType, outcome string) {
	if o == nil || o.outcomes == nil {
		return
	}
	o.outcomes.WithLabelValues(normalizeLabel(eventType), normalizeLabel(outcome)).Inc()
}

// ObserveLag records the publish delay in seconds.
func (o *OutboxMetrics) ObserveLag(seconds float64) {
	if o == nil || o.lag == nil || seconds < 0 {
		return
	}
	o.lag.Observe(seconds)
}
