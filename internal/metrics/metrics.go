package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestAttemptsTotal tracks physical attempts per operation and outcome
	RequestAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cachekit_request_attempts_total",
			Help: "Total number of physical request attempts",
		},
		[]string{"operation", "outcome"},
	)

	// RetriesTotal tracks retries scheduled per operation and failure reason
	RetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cachekit_retries_total",
			Help: "Total number of retries scheduled by the retry strategy",
		},
		[]string{"operation", "reason"},
	)

	// RequestFailuresTotal tracks logical requests that ended in a terminal error
	RequestFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cachekit_request_failures_total",
			Help: "Total number of logical requests that failed after retries",
		},
		[]string{"operation", "reason"},
	)

	// RequestLatency tracks logical request latency including retries
	RequestLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cachekit_request_latency_seconds",
			Help:    "Logical request latency in seconds, retries included",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// ResubscriptionsTotal tracks transparent stream reopenings per cache
	ResubscriptionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cachekit_topic_resubscriptions_total",
			Help: "Total number of topic stream resubscriptions",
		},
		[]string{"cache", "reason"},
	)

	// TopicEventsTotal tracks events delivered by subscriptions
	TopicEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cachekit_topic_events_total",
			Help: "Total number of topic events produced",
		},
		[]string{"cache", "kind"},
	)

	// SubscriptionTerminationsTotal tracks subscriptions ended by a fatal failure
	SubscriptionTerminationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cachekit_topic_subscription_terminations_total",
			Help: "Total number of subscriptions terminated by a non-retryable failure",
		},
		[]string{"cache", "reason"},
	)

	// ActiveSubscriptions tracks subscriptions whose engine is running
	ActiveSubscriptions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cachekit_topic_active_subscriptions",
			Help: "Number of topic subscriptions currently running",
		},
	)
)
