// Package metrics holds the Prometheus collectors shared by the game server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OracleRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "yahtzee_oracle_requests_total",
			Help: "Oracle requests by oracle (score|outcome) and status (ok|error).",
		},
		[]string{"oracle", "status"},
	)

	OracleLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "yahtzee_oracle_request_duration_seconds",
			Help:    "Oracle request latency.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"oracle"},
	)

	StaleResponses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "yahtzee_outcome_stale_responses_total",
		Help: "Outcome responses dropped because the decision point had already moved on.",
	})

	TurnActions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "yahtzee_turn_actions_total",
			Help: "Roll/hold/fill actions by result (ok|rejected|failed).",
		},
		[]string{"action", "result"},
	)

	GamesFinished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "yahtzee_games_finished_total",
			Help: "Games played to the last box, by mode.",
		},
		[]string{"mode"},
	)
)
