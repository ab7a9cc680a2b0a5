// Package metrics exposes Prometheus instruments for the transactional
// backbone. All collectors are registered on the default registry via
// promauto; the router mounts promhttp on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	marketTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "market_transitions_total",
		Help: "Committed market lifecycle transitions by edge.",
	}, []string{"from", "to"})

	transitionRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "market_transitions_rejected_total",
		Help: "Rejected transition attempts by requested edge.",
	}, []string{"from", "to"})

	paymentsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payments_created_total",
		Help: "Payments created by target and gateway kind.",
	}, []string{"target", "gateway"})

	paymentsVerified = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payments_verified_total",
		Help: "Payment verification outcomes by target and result.",
	}, []string{"target", "result"})

	gatewayLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gateway_call_duration_seconds",
		Help:    "Latency of outbound gateway calls.",
		Buckets: prometheus.DefBuckets,
	}, []string{"call"})

	ledgerOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wallet_ledger_operations_total",
		Help: "Wallet ledger operations by kind and outcome.",
	}, []string{"kind", "outcome"})

	pendingExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payments_expired_total",
		Help: "Pending payments expired by the scheduler sweep.",
	})
)

// RecordTransition counts a committed lifecycle transition.
func RecordTransition(from, to string) {
	marketTransitions.WithLabelValues(from, to).Inc()
}

// RecordTransitionRejected counts a rejected transition attempt.
func RecordTransitionRejected(from, to string) {
	transitionRejected.WithLabelValues(from, to).Inc()
}

// RecordPaymentCreated counts a created payment.
func RecordPaymentCreated(target, gateway string) {
	paymentsCreated.WithLabelValues(target, gateway).Inc()
}

// RecordPaymentVerified counts a verification outcome
// ("paid", "failed", "mismatch", "replay", "cancelled").
func RecordPaymentVerified(target, result string) {
	paymentsVerified.WithLabelValues(target, result).Inc()
}

// ObserveGatewayCall records the latency of one outbound gateway call
// ("request" or "verify").
func ObserveGatewayCall(call string, d time.Duration) {
	gatewayLatency.WithLabelValues(call).Observe(d.Seconds())
}

// RecordLedgerOp counts a ledger operation outcome.
func RecordLedgerOp(kind, outcome string) {
	ledgerOps.WithLabelValues(kind, outcome).Inc()
}

// RecordPaymentExpired counts one expired pending payment.
func RecordPaymentExpired() {
	pendingExpired.Inc()
}
