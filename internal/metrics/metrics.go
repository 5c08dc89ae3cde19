package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	SubmissionsAccepted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "geminichat",
		Name:      "submissions_accepted_total",
		Help:      "Submissions that started an exchange.",
	})

	SubmissionsDiscarded = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "geminichat",
		Name:      "submissions_discarded_total",
		Help:      "Submissions dropped before any state change.",
	}, []string{"reason"})

	GatewayFallbacks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "geminichat",
		Name:      "gateway_fallbacks_total",
		Help:      "Remote calls that failed and were answered with a fallback message.",
	}, []string{"provider"})

	LocalErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "geminichat",
		Name:      "sequencer_local_errors_total",
		Help:      "Exchanges resolved with the local error message.",
	})

	ExchangeDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "geminichat",
		Name:      "exchange_duration_seconds",
		Help:      "Time from optimistic append to reply append.",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
	})

	StaleReplies = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "geminichat",
		Name:      "stale_replies_total",
		Help:      "Replies dropped because the conversation was reset while they were in flight.",
	})

	Conversations = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "geminichat",
		Name:      "conversations_active",
		Help:      "Conversations currently held in memory.",
	})
)

func init() {
	prometheus.MustRegister(
		SubmissionsAccepted,
		SubmissionsDiscarded,
		GatewayFallbacks,
		LocalErrors,
		ExchangeDuration,
		StaleReplies,
		Conversations,
	)
}
