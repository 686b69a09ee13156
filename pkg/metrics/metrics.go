package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "todomini", Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "todomini", Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)

	// Polls counts finished long polls by outcome: changed, unchanged, error, canceled.
	Polls = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "todomini", Name: "polls_total", Help: "Number of finished long polls by outcome."},
		[]string{"outcome"},
	)
	PollWait = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "todomini",
			Name:      "poll_wait_seconds",
			Help:      "Time a long poll was held open.",
			Buckets:   []float64{0.01, 0.1, 0.5, 1, 2, 5, 10, 15, 20, 25, 30},
		},
	)
	ActivePolls = prometheus.NewGauge(
		prometheus.GaugeOpts{Namespace: "todomini", Name: "active_polls", Help: "Long polls currently waiting."},
	)
	// Mutations counts writes by op (upsert, delete) and result (applied, rejected, error).
	Mutations = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "todomini", Name: "mutations_total", Help: "Number of write requests by operation and result."},
		[]string{"op", "result"},
	)
	Notifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "todomini", Name: "notifications_total", Help: "Folder change notifications delivered by source."},
		[]string{"source"},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(RateLimitAllowed)
	reg.MustRegister(RateLimitRejected)
	reg.MustRegister(Polls)
	reg.MustRegister(PollWait)
	reg.MustRegister(ActivePolls)
	reg.MustRegister(Mutations)
	reg.MustRegister(Notifications)
}
