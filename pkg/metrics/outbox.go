package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OutboxMetrics records publisher progress.
type OutboxMetrics struct {
	published     *prometheus.CounterVec
	failed        *prometheus.CounterVec
	deadLettered  *prometheus.CounterVec
	batchDuration prometheus.Histogram
	dlqDepth      *prometheus.GaugeVec
}

func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	published := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "musicportal",
		Name:      "outbox_published_total",
		Help:      "Outbox events published to Pub/Sub.",
	}, []string{"event_type"})
	failed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "musicportal",
		Name:      "outbox_publish_failures_total",
		Help:      "Outbox publish attempts that failed and will be retried.",
	}, []string{"event_type"})
	deadLettered := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "musicportal",
		Name:      "outbox_dead_lettered_total",
		Help:      "Outbox events moved to the DLQ by reason.",
	}, []string{"reason"})
	batchDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "musicportal",
		Name:      "outbox_batch_duration_seconds",
		Help:      "Time spent processing one outbox batch.",
		Buckets:   prometheus.DefBuckets,
	})
	dlqDepth := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "musicportal",
		Name:      "outbox_dlq_depth",
		Help:      "Rows currently parked in outbox_dlq by reason.",
	}, []string{"reason"})
	reg.MustRegister(published, failed, deadLettered, batchDuration, dlqDepth)
	return &OutboxMetrics{
		published:     published,
		failed:        failed,
		deadLettered:  deadLettered,
		batchDuration: batchDuration,
		dlqDepth:      dlqDepth,
	}
}

func (m *OutboxMetrics) IncPublished(eventType string) {
	if m == nil || m.published == nil {
		return
	}
	m.published.WithLabelValues(normalizeLabel(eventType)).Inc()
}

func (m *OutboxMetrics) IncFailed(eventType string) {
	if m == nil || m.failed == nil {
		return
	}
	m.failed.WithLabelValues(normalizeLabel(eventType)).Inc()
}

func (m *OutboxMetrics) IncDeadLettered(reason string) {
	if m == nil || m.deadLettered == nil {
		return
	}
	m.deadLettered.WithLabelValues(normalizeLabel(reason)).Inc()
}

func (m *OutboxMetrics) ObserveBatch(duration time.Duration) {
	if m == nil || m.batchDuration == nil {
		return
	}
	m.batchDuration.Observe(duration.Seconds())
}

// SetDLQDepth replaces the gauge values; reasons missing from counts drop to
// zero.
func (m *OutboxMetrics) SetDLQDepth(counts map[string]int64) {
	if m == nil || m.dlqDepth == nil {
		return
	}
	m.dlqDepth.Reset()
	for reason, n := range counts {
		m.dlqDepth.WithLabelValues(normalizeLabel(reason)).Set(float64(n))
	}
}
