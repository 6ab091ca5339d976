package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus collectors for the intake service. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	Submissions       *prometheus.CounterVec
	Notifications     *prometheus.CounterVec
	PersistLatency    prometheus.Histogram
	Recommendations   *prometheus.CounterVec
	CatalogReads      *prometheus.CounterVec
	Registrations     *prometheus.CounterVec
	Logins            *prometheus.CounterVec
	WebhookDeliveries *prometheus.CounterVec
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Submissions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "draughtsman_form_submissions_total",
			Help: "Form submissions, labeled by form kind and outcome",
		}, []string{"kind", "outcome"}),
		Notifications: f.NewCounterVec(prometheus.CounterOpts{
			Name: "draughtsman_notifications_total",
			Help: "Operator notifications, labeled by form kind and outcome",
		}, []string{"kind", "outcome"}),
		PersistLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "draughtsman_persist_latency_seconds",
			Help:    "Latency of record appends in seconds",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),
		Recommendations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "draughtsman_recommendations_total",
			Help: "Training recommendation requests, labeled by outcome",
		}, []string{"outcome"}),
		CatalogReads: f.NewCounterVec(prometheus.CounterOpts{
			Name: "draughtsman_catalog_reads_total",
			Help: "Catalog reads, labeled by content kind and serving tier",
		}, []string{"kind", "source"}),
		Registrations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "draughtsman_registrations_total",
			Help: "Account registrations, labeled by outcome",
		}, []string{"outcome"}),
		Logins: f.NewCounterVec(prometheus.CounterOpts{
			Name: "draughtsman_logins_total",
			Help: "Login attempts, labeled by outcome",
		}, []string{"outcome"}),
		WebhookDeliveries: f.NewCounterVec(prometheus.CounterOpts{
			Name: "draughtsman_webhook_deliveries_total",
			Help: "Webhook deliveries, labeled by outcome",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) IncrementSubmission(kind, outcome string) {
	if m == nil {
		return
	}
	m.Submissions.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) IncrementNotification(kind, outcome string) {
	if m == nil {
		return
	}
	m.Notifications.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) ObservePersistLatency(durationSeconds float64) {
	if m == nil {
		return
	}
	m.PersistLatency.Observe(durationSeconds)
}

func (m *Metrics) IncrementRecommendation(outcome string) {
	if m == nil {
		return
	}
	m.Recommendations.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncrementCatalogRead(kind, source string) {
	if m == nil {
		return
	}
	m.CatalogReads.WithLabelValues(kind, source).Inc()
}

func (m *Metrics) IncrementRegistration(outcome string) {
	if m == nil {
		return
	}
	m.Registrations.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncrementLogin(outcome string) {
	if m == nil {
		return
	}
	m.Logins.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncrementWebhookDelivery(outcome string) {
	if m == nil {
		return
	}
	m.WebhookDeliveries.WithLabelValues(outcome).Inc()
}
