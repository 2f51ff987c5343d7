package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// TickDuration records how long a single matching tick takes
var TickDuration = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "codemeet_matching_tick_duration_seconds",
		Help:    "Duration in seconds of a matching scheduler tick",
		Buckets: prometheus.DefBuckets,
	},
)

// QueueSize reports the number of users waiting in the match queue
var QueueSize = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "codemeet_match_queue_size",
		Help: "Number of users currently waiting in the match queue",
	},
)

// Pairing outcome counters
var (
	PairsFound = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "codemeet_pairs_found_total",
			Help: "Total number of compatible pairs selected by the pairing engine",
		},
	)

	MatchesCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "codemeet_matches_created_total",
			Help: "Total number of matches committed",
		},
	)

	InsufficientOpportunities = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "codemeet_insufficient_opportunities_total",
			Help: "Total number of pairs rejected because the interviewee had no opportunity",
		},
	)

	PairFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codemeet_pair_failures_total",
			Help: "Total number of pairs that failed after selection, by stage",
		},
		[]string{"stage"},
	)
)

// Compensation counters
var (
	Refunds = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "codemeet_opportunity_refunds_total",
			Help: "Total number of opportunities returned after a failed match",
		},
	)

	RefundFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "codemeet_opportunity_refund_failures_total",
			Help: "Total number of refunds that could not be applied",
		},
	)
)

// Notification delivery metrics
var NotificationErrors = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "codemeet_notification_errors_total",
		Help: "Total number of failed notification deliveries by kind",
	},
	[]string{"kind"},
)

// Database connection pool metrics
var (
	DBOpenConns = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "codemeet_db_open_connections",
			Help: "Number of open connections in the DB pool",
		},
		[]string{"db"},
	)

	DBInUseConns = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "codemeet_db_in_use_connections",
			Help: "Number of in-use connections in the DB pool",
		},
		[]string{"db"},
	)
)

func init() {
	prometheus.MustRegister(TickDuration, QueueSize)
	prometheus.MustRegister(PairsFound, MatchesCreated, InsufficientOpportunities, PairFailures)
	prometheus.MustRegister(Refunds, RefundFailures, NotificationErrors)
	prometheus.MustRegister(DBOpenConns, DBInUseConns)
}
