package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kontrivibe_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kontrivibe_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	PaymentAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kontrivibe_payment_attempts_total",
			Help: "Payment attempts by plan, method and initiation result",
		},
		[]string{"plan", "method", "result"},
	)

	ReconciliationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kontrivibe_reconciliations_total",
			Help: "Reconcile calls by source, mapped status and outcome",
		},
		[]string{"source", "status", "outcome"},
	)

	SubscriptionActivationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kontrivibe_subscription_activations_total",
			Help: "Subscriptions moved from pending to active",
		},
		[]string{"plan"},
	)

	SubscriptionCancellationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kontrivibe_subscription_cancellations_total",
			Help: "Subscriptions cancelled by their owner",
		},
	)

	SubscriptionExpirationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kontrivibe_subscription_expirations_total",
			Help: "Subscriptions expired by the sweep",
		},
	)

	WebhooksReceivedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kontrivibe_webhooks_received_total",
			Help: "Inbound provider webhooks by result",
		},
		[]string{"result"},
	)

	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kontrivibe_notifications_total",
			Help: "Notifications created, by type and push result",
		},
		[]string{"type", "push"},
	)
)

func RecordHTTPRequest(method, path, status string, duration float64) {
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
}

func RecordPaymentAttempt(plan, method, result string) {
	PaymentAttemptsTotal.WithLabelValues(plan, method, result).Inc()
}

func RecordReconciliation(source, status, outcome string) {
	ReconciliationsTotal.WithLabelValues(source, status, outcome).Inc()
}

func RecordActivation(plan string) {
	SubscriptionActivationsTotal.WithLabelValues(plan).Inc()
}

func RecordCancellation() {
	SubscriptionCancellationsTotal.Inc()
}

func RecordExpiration() {
	SubscriptionExpirationsTotal.Inc()
}

func RecordWebhook(result string) {
	WebhooksReceivedTotal.WithLabelValues(result).Inc()
}

func RecordNotification(notificationType, push string) {
	NotificationsTotal.WithLabelValues(notificationType, push).Inc()
}
