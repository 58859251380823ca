package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors of the tenant client.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Requests            *prometheus.CounterVec
	ClassifiedFailures  *prometheus.CounterVec
	RequestLatency      *prometheus.HistogramVec
	NotificationsQueued *prometheus.CounterVec
	StepTransitions     *prometheus.CounterVec
	TenantChanges       prometheus.Counter
}

// New creates the collectors and registers them with reg.
// Pass prometheus.NewRegistry() in tests to avoid duplicate registration.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Requests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "meridian_client_requests_total",
			Help: "Outbound API requests, labeled by route kind and status class",
		}, []string{"route", "status_class"}),
		ClassifiedFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "meridian_client_classified_failures_total",
			Help: "Failed responses turned into notifications, labeled by status",
		}, []string{"status"}),
		RequestLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "meridian_client_request_duration_seconds",
			Help:    "Latency of outbound API requests in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		NotificationsQueued: f.NewCounterVec(prometheus.CounterOpts{
			Name: "meridian_notifications_enqueued_total",
			Help: "Notifications enqueued, labeled by severity",
		}, []string{"severity"}),
		StepTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "meridian_wizard_transitions_total",
			Help: "Wizard transitions, labeled by outcome",
		}, []string{"outcome"}),
		TenantChanges: f.NewCounter(prometheus.CounterOpts{
			Name: "meridian_tenant_changes_total",
			Help: "Times the resolved tenant differed from the stored tenant",
		}),
	}
}

// ObserveRequest records one finished request.
func (m *Metrics) ObserveRequest(route string, status int, start time.Time) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(route, statusClass(status)).Inc()
	m.RequestLatency.WithLabelValues(route).Observe(time.Since(start).Seconds())
}

// IncrementClassifiedFailure counts a failure that produced a notification.
func (m *Metrics) IncrementClassifiedFailure(status string) {
	if m == nil {
		return
	}
	m.ClassifiedFailures.WithLabelValues(status).Inc()
}

func (m *Metrics) IncrementNotifications(severity string) {
	if m == nil {
		return
	}
	m.NotificationsQueued.WithLabelValues(severity).Inc()
}

func (m *Metrics) IncrementStepTransition(outcome string) {
	if m == nil {
		return
	}
	m.StepTransitions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncrementTenantChanges() {
	if m == nil {
		return
	}
	m.TenantChanges.Inc()
}

func statusClass(status int) string {
	switch {
	case status == 0:
		return "transport_error"
	case status < 300:
		return "2xx"
	case status < 400:
		return "3xx"
	case status < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
