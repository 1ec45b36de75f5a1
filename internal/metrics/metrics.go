// Package metrics exposes Prometheus counters for the bidding engine.
// Everything is registered on the default registry and served from the
// /metrics endpoint of the HTTP server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BidsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "shopbid",
			Subsystem: "engine",
			Name:      "bids_total",
			Help:      "Bid admission outcomes",
		},
		[]string{"result"},
	)

	BuyNowTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "shopbid",
			Subsystem: "engine",
			Name:      "buy_now_total",
			Help:      "Buy-now outcomes",
		},
		[]string{"result"},
	)

	TransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "shopbid",
			Subsystem: "engine",
			Name:      "transitions_total",
			Help:      "Committed lifecycle transitions",
		},
		[]string{"from", "to"},
	)

	VersionConflictsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "shopbid",
			Subsystem: "engine",
			Name:      "version_conflicts_total",
			Help:      "Conditional writes lost to a concurrent commit",
		},
	)

	WriteAttempts = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "shopbid",
			Subsystem: "engine",
			Name:      "write_attempts",
			Help:      "Read-validate-write rounds needed per admitted mutation",
			Buckets:   []float64{1, 2, 3, 4, 5},
		},
	)

	PopcornExtensionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "shopbid",
			Subsystem: "engine",
			Name:      "popcorn_extensions_total",
			Help:      "Deadline extensions granted to late bids",
		},
	)

	WinnersProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "shopbid",
			Subsystem: "engine",
			Name:      "winners_processed_total",
			Help:      "Winner processing outcomes",
		},
		[]string{"outcome"},
	)

	EventsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "shopbid",
			Subsystem: "events",
			Name:      "published_total",
			Help:      "Events handed to the broadcaster",
		},
		[]string{"type"},
	)

	SchedulerSweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "shopbid",
			Subsystem: "scheduler",
			Name:      "sweep_duration_seconds",
			Help:      "Wall time of one deadline sweep",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
	)
)

// Bid admission results.
const (
	ResultAccepted    = "accepted"
	ResultTooLow      = "too_low"
	ResultNotActive   = "not_active"
	ResultUnavailable = "unavailable"
	ResultContention  = "contention"
	ResultError       = "error"
)

// Winner processing outcomes.
const (
	OutcomeSold          = "sold"
	OutcomeReserveNotMet = "reserve_not_met"
	OutcomeNoBids        = "no_bids"
	OutcomeAlreadyDone   = "already_done"
)
