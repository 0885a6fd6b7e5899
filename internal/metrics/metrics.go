package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the various metrics used for monitoring the ledger.
// It includes counters for ledger operations, payouts and deposits,
// gauges for the rate feed, and a histogram for database query duration.
type Metrics struct {
	Operations        *prometheus.CounterVec
	PayoutsTotal      *prometheus.CounterVec
	DepositsTotal     *prometheus.CounterVec
	FeedRuns          *prometheus.CounterVec
	RatesParsed       prometheus.Counter
	LastSuccessfulRun prometheus.Gauge
	DBQueryDuration   *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance registered on the provided Registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	metrics := &Metrics{
		Operations: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "payrolld_operations_total",
			Help: "Total ledger operations, labelled by operation and outcome.",
		}, []string{"op", "status"}),
		PayoutsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "payrolld_payouts_total",
			Help: "Total payday executions.",
		}, []string{"status"}),
		DepositsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "payrolld_deposits_total",
			Help: "Total deposit attempts against the treasury gate.",
		}, []string{"status"}),
		FeedRuns: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "payrolld_feed_runs_total",
			Help: "Total times the rate feed has completed its full cycle.",
		}, []string{"status"}),
		RatesParsed: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "payrolld_feed_rates_parsed_total",
			Help: "Total number of exchange rates parsed from the market page.",
		}),
		LastSuccessfulRun: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "payrolld_feed_last_successful_run_timestamp",
			Help: "Last time the rate feed completed successfully.",
		}),
		DBQueryDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "payrolld_db_query_duration_seconds",
			Help:    "Duration of database queries.",
			Buckets: prometheus.DefBuckets,
		}, []string{"query_type"}),
	}

	metrics.FeedRuns.WithLabelValues("success")
	metrics.FeedRuns.WithLabelValues("failure")

	return metrics
}
