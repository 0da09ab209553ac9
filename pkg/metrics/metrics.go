package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OperationDuration tracks the latency of booking operations
	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "bloodcamp_operation_duration_seconds",
			Help: "Duration of camp booking operations in seconds",
			Buckets: []float64{
				0.001, // 1ms
				0.005, // 5ms
				0.01,  // 10ms
				0.025, // 25ms
				0.05,  // 50ms
				0.1,   // 100ms
				0.25,  // 250ms
				0.5,   // 500ms
				1.0,   // 1s
				2.5,   // 2.5s
			},
		},
		[]string{"operation", "status"}, // status: success or failure
	)

	// RegistrationOutcomes counts registration attempts by outcome (registered or an error kind)
	RegistrationOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bloodcamp_registration_outcomes_total",
			Help: "Registration attempts by outcome",
		},
		[]string{"outcome"},
	)

	// DonationWriteFailures counts donation writes that failed after attendance was committed
	DonationWriteFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bloodcamp_donation_write_failures_total",
			Help: "Donation writes that failed after the attendance record was committed",
		},
	)

	// PendingDonations is the number of donations waiting for a retry
	PendingDonations = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bloodcamp_pending_donations",
			Help: "Donations queued for retry after a failed write",
		},
	)

	// NotificationsDropped counts events discarded because the dispatch queue was full
	NotificationsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bloodcamp_notifications_dropped_total",
			Help: "Notifications dropped because the dispatch queue was full",
		},
		[]string{"event"},
	)

	// NotificationsDelivered counts sink deliveries by sink and status
	NotificationsDelivered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bloodcamp_notifications_delivered_total",
			Help: "Notification deliveries by sink and status",
		},
		[]string{"sink", "status"},
	)
)

// RecordOperation records the duration of a booking operation
func RecordOperation(operation string, err error, seconds float64) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	OperationDuration.WithLabelValues(operation, status).Observe(seconds)
}

// RecordRegistration increments the registration outcome counter
func RecordRegistration(outcome string) {
	RegistrationOutcomes.WithLabelValues(outcome).Inc()
}
