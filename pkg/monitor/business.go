package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// BusinessMetrics 定义业务监控指标
type BusinessMetrics struct {
	SubmissionsTotal     *prometheus.CounterVec
	SubmissionDuration   *prometheus.HistogramVec
	EventsDiscovered     *prometheus.CounterVec
	EventsFinalized      *prometheus.CounterVec
	EventsDropped        *prometheus.CounterVec
	EventsAbandoned      *prometheus.CounterVec
	PollErrorsTotal      *prometheus.CounterVec
	PendingWaiters       *prometheus.GaugeVec
	ConfirmationWait     *prometheus.HistogramVec
	LedgerRPCTotal       *prometheus.CounterVec
	LedgerRateLimitWaits prometheus.Counter
	RelayPublishedTotal  *prometheus.CounterVec
	WatchListSize        prometheus.Gauge
}

// Business 在包加载时注册到默认 Registry, 业务代码可直接使用
var Business = newBusinessMetrics()

func newBusinessMetrics() *BusinessMetrics {
	return &BusinessMetrics{
		SubmissionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_submissions_total",
			Help: "Number of transaction submissions by contract method and result",
		}, []string{"method", "result"}),
		SubmissionDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ledger_submission_duration_seconds",
			Help:    "Time spent building, signing and broadcasting a transaction",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
		EventsDiscovered: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_events_discovered_total",
			Help: "Contract events returned by the node",
		}, []string{"kind"}),
		EventsFinalized: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_events_finalized_total",
			Help: "Contract events reported after reaching the confirmation threshold",
		}, []string{"kind"}),
		EventsDropped: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_events_dropped_total",
			Help: "Delegation events dropped because the new owner is not watched",
		}, []string{"kind"}),
		EventsAbandoned: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_events_abandoned_total",
			Help: "Events whose confirmation wait exceeded the configured timeout",
		}, []string{"kind"}),
		PollErrorsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_poll_errors_total",
			Help: "Failed event poll iterations",
		}, []string{"kind"}),
		PendingWaiters: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ledger_pending_confirmation_waiters",
			Help: "Events currently waiting for confirmations",
		}, []string{"kind"}),
		ConfirmationWait: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ledger_confirmation_wait_seconds",
			Help:    "Time between discovering an event and reporting it",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 900},
		}, []string{"kind"}),
		LedgerRPCTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_rpc_calls_total",
			Help: "Calls to the ledger node by method and status",
		}, []string{"method", "status"}),
		LedgerRateLimitWaits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ledger_rpc_rate_limit_waits_total",
			Help: "Calls delayed by the client side rate limiter",
		}),
		RelayPublishedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_relay_published_total",
			Help: "Outbox messages handed to the message queue",
		}, []string{"topic", "result"}),
		WatchListSize: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "ledger_watchlist_size",
			Help: "Number of subscribed addresses",
		}),
	}
}
