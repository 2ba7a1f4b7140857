package metrics

import "github.com/prometheus/client_golang/prometheus"

// Ranking Prometheus metrics.
var (
	RankingQueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rankfuse",
			Name:      "ranking_queries_total",
			Help:      "Total number of ranked queries",
		},
		[]string{"model", "mode", "status"},
	)

	RankingQueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "rankfuse",
			Name:      "ranking_query_duration_seconds",
			Help:      "Full pipeline duration per query in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"model", "mode"},
	)

	RankingFlaggedCandidates = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "rankfuse",
			Name:      "ranking_flagged_candidates_total",
			Help:      "Candidates contained as score-0 after shape errors",
		},
	)

	EvalQueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rankfuse",
			Name:      "eval_queries_total",
			Help:      "Evaluation harness query outcomes",
		},
		[]string{"status"}, // "succeeded" / "failed"
	)
)

var rankingMetricsRegistered bool

// RegisterRankingMetrics registers Prometheus ranking metrics. Must be called once from main.
func RegisterRankingMetrics() {
	if rankingMetricsRegistered {
		return
	}
	prometheus.MustRegister(RankingQueriesTotal)
	prometheus.MustRegister(RankingQueryDuration)
	prometheus.MustRegister(RankingFlaggedCandidates)
	prometheus.MustRegister(EvalQueriesTotal)
	rankingMetricsRegistered = true
}
