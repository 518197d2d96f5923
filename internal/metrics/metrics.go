package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"route", "method", "status"},
	)
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"route", "method", "status"},
	)

	// Transactions
	TransactionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transactions_total",
			Help: "Committed transaction state transitions",
		},
		[]string{"status"}, // initiated|authorized|settled|failed
	)
	TransactionsFailed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "transactions_failed_total",
			Help: "Transactions moved to failed",
		},
	)
	AuthorizationsDeclined = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "authorizations_declined_total",
			Help: "Authorizations declined by the processor",
		},
	)

	// Settlements
	SettlementEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settlement_webhook_events_total",
			Help: "Settlement webhook events by status and outcome",
		},
		[]string{"status", "outcome"}, // outcome: applied|replayed|rejected
	)
	WebhookRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_rejected_total",
			Help: "Webhook requests rejected before processing",
		},
		[]string{"reason"}, // signature|rate_limited|invalid
	)

	// Idempotency
	IdempotencyOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "idempotency_outcomes_total",
			Help: "Idempotency-Key handling outcomes",
		},
		[]string{"outcome"}, // fresh|replay|conflict
	)

	// Worker queue
	WorkerQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "worker_queue_depth",
			Help: "Current worker queue depth",
		},
	)

	initOnce sync.Once
)

// Handler serves /metrics.
var Handler = promhttp.Handler

func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			RequestsTotal,
			RequestDuration,
			TransactionsTotal,
			TransactionsFailed,
			AuthorizationsDeclined,
			SettlementEvents,
			WebhookRejected,
			IdempotencyOutcomes,
			WorkerQueueDepth,
		)
	})
}
