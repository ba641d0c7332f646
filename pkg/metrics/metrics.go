package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	MessagesFetched = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leasepull_messages_fetched_total",
			Help: "Number of messages fetched from the broker",
		},
		[]string{"consumer"},
	)
	MessagesSucceeded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leasepull_messages_succeeded_total",
			Help: "Number of messages handled and acknowledged",
		},
		[]string{"consumer"},
	)
	MessagesFailedNoAck = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leasepull_messages_failed_no_ack_total",
			Help: "Number of messages left for redelivery after handler failure",
		},
		[]string{"consumer"},
	)
	AckErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leasepull_ack_errors_total",
			Help: "Number of failed acknowledgements (rejected by the broker or lost to a connectivity failure)",
		},
		[]string{"consumer"},
	)
	ConnectivityErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leasepull_connectivity_errors_total",
			Help: "Number of broker connectivity failures (fetch and ack)",
		},
		[]string{"consumer"},
	)
	AbandonedExpired = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leasepull_messages_abandoned_expired_total",
			Help: "Number of messages dropped because the local lease expired",
		},
		[]string{"consumer"},
	)
	HandlerDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "leasepull_handler_duration_seconds",
			Help:    "Handler execution time",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"consumer", "outcome"},
	)
	InFlightLeases = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "leasepull_in_flight_leases",
			Help: "Number of locally tracked leases",
		},
		[]string{"consumer"},
	)
)

var (
	CacheOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leasepull_history_cache_operations_total",
			Help: "History cache operations",
		},
		[]string{"op"}, // hit|miss|evicted|expired
	)
	CacheSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "leasepull_history_cache_size",
			Help: "Number of message histories currently in cache",
		},
	)
)

var JournalSinkMessages = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "leasepull_journal_sink_messages_total",
		Help: "Journal records read from Kafka by result",
	},
	[]string{"topic", "result"}, // consumed|projected|skipped|failed
)

var JournalRecords = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "leasepull_journal_records_total",
		Help: "Delivery records written by the consumer journal queue by result",
	},
	[]string{"consumer", "result"}, // written|failed|dropped
)

var registerOnce sync.Once

// MustRegister — регистрирует метрики в глобальном реестре; повторные вызовы ничего не делают.
func MustRegister() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			MessagesFetched, MessagesSucceeded, MessagesFailedNoAck,
			AckErrors, ConnectivityErrors, AbandonedExpired,
			HandlerDuration, InFlightLeases,
			CacheOps, CacheSize,
			JournalSinkMessages, JournalRecords,
		)
	})
}
