// Package metrics holds the Prometheus collectors exported by the gateway and workers.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	EntitlementFetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "careerguide_entitlement_fetches_total",
			Help: "Entitlement snapshot fetches against the backend, by result",
		},
		[]string{"result"},
	)
	EntitlementCacheHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "careerguide_entitlement_cache_hits_total",
			Help: "Fetch calls answered from a fresh cached snapshot",
		},
	)
	EntitlementSharedFetches = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "careerguide_entitlement_shared_fetches_total",
			Help: "Fetch calls that joined an in-flight fetch instead of issuing their own",
		},
	)
	PremiumSignalDisagreements = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "careerguide_premium_signal_disagreements_total",
			Help: "Snapshots whose premium flag disagrees with the plan name",
		},
	)
	UsageRecorded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "careerguide_local_usage_recorded_total",
			Help: "Local usage increments, by meter",
		},
		[]string{"feature"},
	)
	UsageSwept = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "careerguide_local_usage_swept_total",
			Help: "Stale local usage counters removed by the sweeper",
		},
	)
	PaymentPolls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "careerguide_payment_polls_total",
			Help: "Finished payment status polls, by outcome",
		},
		[]string{"status"},
	)
	SignalsReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "careerguide_signals_received_total",
			Help: "Subscription signals consumed, by type",
		},
		[]string{"type"},
	)
)

func init() {
	prometheus.MustRegister(EntitlementFetches)
	prometheus.MustRegister(EntitlementCacheHits)
	prometheus.MustRegister(EntitlementSharedFetches)
	prometheus.MustRegister(PremiumSignalDisagreements)
	prometheus.MustRegister(UsageRecorded)
	prometheus.MustRegister(UsageSwept)
	prometheus.MustRegister(PaymentPolls)
	prometheus.MustRegister(SignalsReceived)
}
