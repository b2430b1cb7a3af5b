package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PortalMetrics tracks the business operations of the API: registration
// decisions, song uploads and catalog queries. A zero value is a no-op so
// services can be built without a registry in tests.
type PortalMetrics struct {
	registrations *prometheus.CounterVec
	uploads       *prometheus.CounterVec
	uploadBytes   prometheus.Counter
	queryDuration *prometheus.HistogramVec
}

// NewPortalMetrics registers the portal metrics on the provided registerer.
func NewPortalMetrics(reg prometheus.Registerer) *PortalMetrics {
	if reg == nil {
		return &PortalMetrics{}
	}
	registrations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "musicportal",
		Name:      "registration_decisions_total",
		Help:      "Registration workflow transitions by outcome.",
	}, []string{"outcome"})
	uploads := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "musicportal",
		Name:      "song_uploads_total",
		Help:      "Song file intake attempts by result.",
	}, []string{"result"})
	uploadBytes := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "musicportal",
		Name:      "song_upload_bytes_total",
		Help:      "Bytes written by successful song uploads.",
	})
	queryDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "musicportal",
		Name:      "catalog_query_duration_seconds",
		Help:      "Catalog query latency by sort key.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"sort"})
	reg.MustRegister(registrations, uploads, uploadBytes, queryDuration)
	return &PortalMetrics{
		registrations: registrations,
		uploads:       uploads,
		uploadBytes:   uploadBytes,
		queryDuration: queryDuration,
	}
}

// IncRegistration counts a submitted, approved or rejected request.
func (m *PortalMetrics) IncRegistration(outcome string) {
	if m == nil || m.registrations == nil {
		return
	}
	m.registrations.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// ObserveUpload counts an intake attempt; bytes only count on success.
func (m *PortalMetrics) ObserveUpload(result string, bytes int64) {
	if m == nil || m.uploads == nil {
		return
	}
	m.uploads.WithLabelValues(normalizeLabel(result)).Inc()
	if bytes > 0 {
		m.uploadBytes.Add(float64(bytes))
	}
}

func (m *PortalMetrics) ObserveQuery(sort string, duration time.Duration) {
	if m == nil || m.queryDuration == nil {
		return
	}
	m.queryDuration.WithLabelValues(normalizeLabel(sort)).Observe(duration.Seconds())
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
