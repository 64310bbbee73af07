package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OutboxMetrics tracks the outbox publisher. A nil receiver is a no-op.
type OutboxMetrics struct {
	deliveries *prometheus.CounterVec
	latency    prometheus.Histogram
	batchSize  prometheus.Histogram
}

func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return nil
	}
	m := &OutboxMetrics{
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "deliveries_total",
			Help:      "Outbox rows handled by outcome.",
		}, []string{"outcome"}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "publish_duration_seconds",
			Help:      "Time spent waiting on a pubsub publish.",
			Buckets:   []float64{.005, .01, .05, .1, .5, 1, 5, 15},
		}),
		batchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "batch_rows",
			Help:      "Rows claimed per publisher batch.",
			Buckets:   prometheus.LinearBuckets(0, 10, 11),
		}),
	}
	reg.MustRegister(m.deliveries, m.latency, m.batchSize)
	return m
}

// Delivered counts one row with the given outcome.
func (m *OutboxMetrics) Delivered(outcome string) {
	if m == nil {
		return
	}
	m.deliveries.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func (m *OutboxMetrics) ObservePublish(took time.Duration) {
	if m == nil {
		return
	}
	m.latency.Observe(took.Seconds())
}

func (m *OutboxMetrics) ObserveBatch(rows int) {
	if m == nil {
		return
	}
	m.batchSize.Observe(float64(rows))
}
