package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	RecordsConsumed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_records_consumed_total",
			Help: "Number of records fetched from Kafka",
		},
		[]string{"topic"},
	)
	BatchesDelivered = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_batches_delivered_total",
			Help: "Number of batches accepted by the event collector",
		},
		[]string{"topic"},
	)
	BatchesFailed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_batches_failed_total",
			Help: "Number of batches abandoned after retry exhaustion",
		},
		[]string{"topic"},
	)
	DeliveryAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_delivery_attempts_total",
			Help: "Delivery attempts by outcome",
		},
		[]string{"topic", "outcome"}, // accepted|rejected
	)
	OffsetCommits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_offset_commits_total",
			Help: "Successful offset commit calls",
		},
		[]string{"topic"},
	)
	SessionRebuilds = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_session_rebuilds_total",
			Help: "Consumer sessions torn down and re-acquired",
		},
		[]string{"topic"},
	)
)

var registerOnce sync.Once

// MustRegister регистрирует коллекторы в глобальном реестре.
// Повторные вызовы (bootstrap + тесты) безопасны.
func MustRegister() {
	registerOnce.Do(register)
}

func register() {
	prometheus.MustRegister(
		RecordsConsumed,
		BatchesDelivered,
		BatchesFailed,
		DeliveryAttempts,
		OffsetCommits,
		SessionRebuilds,
	)
}
