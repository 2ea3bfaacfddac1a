package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MQ consume latency (ms)
	MQConsumeLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mq_consume_latency_ms",
			Help:    "MQ message consumption latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(10, 2, 10), // 10ms to ~10s
		},
		[]string{"routing_key", "queue"},
	)

	// Payment gateway call latency (ms)
	GatewayCallLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "payment_gateway_latency_ms",
			Help:    "Payment gateway call latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(5, 2, 10), // 5ms to ~5s
		},
		[]string{"operation", "status"},
	)

	// DB query latency (s)
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"operation", "table"},
	)

	// Slow query count
	SlowQueryCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_slow_query_count",
			Help: "Total number of queries slower than the configured threshold",
		},
		[]string{"command"},
	)

	// HTTP request latency (s)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"method", "path", "status"},
	)

	// Donation outcomes
	DonationCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "donation_count",
			Help: "Total number of donation confirmations by outcome",
		},
		[]string{"outcome"}, // outcome: completed, payment_failed, persistence_failed, refunded, reconciled
	)

	// Completed donation amount
	DonationAmount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "donation_amount_total",
			Help: "Sum of completed donation amounts in major currency units",
		},
		[]string{"currency"},
	)

	// Notifications sent
	NotificationSentCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_sent_count",
			Help: "Total number of notification emails by routing key and status",
		},
		[]string{"routing_key", "status"}, // status: success, failed, skipped
	)
)

// RecordMQConsumeLatency records MQ consume latency.
func RecordMQConsumeLatency(routingKey, queue string, duration time.Duration) {
	MQConsumeLatency.WithLabelValues(routingKey, queue).Observe(float64(duration.Milliseconds()))
}

// RecordGatewayCallLatency records payment gateway call latency.
func RecordGatewayCallLatency(operation, status string, duration time.Duration) {
	GatewayCallLatency.WithLabelValues(operation, status).Observe(float64(duration.Milliseconds()))
}

// RecordDBQueryDuration records DB query latency.
func RecordDBQueryDuration(operation, table string, duration time.Duration) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
}

// IncrementSlowQuery counts a slow query.
func IncrementSlowQuery(command string) {
	SlowQueryCount.WithLabelValues(command).Inc()
}

// RecordHTTPRequestDuration records HTTP request latency.
func RecordHTTPRequestDuration(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// IncrementDonation counts a donation outcome.
func IncrementDonation(outcome string) {
	DonationCount.WithLabelValues(outcome).Inc()
}

// AddDonationAmount adds a completed donation's amount.
func AddDonationAmount(currency string, amount float64) {
	DonationAmount.WithLabelValues(currency).Add(amount)
}

// IncrementNotificationSent counts a notification send.
func IncrementNotificationSent(routingKey, status string) {
	NotificationSentCount.WithLabelValues(routingKey, status).Inc()
}
