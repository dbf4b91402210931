package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	rankingsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pipeselect_rankings_total",
		Help: "Ranking requests by outcome.",
	}, []string{"outcome"})

	rankingDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pipeselect_ranking_duration_seconds",
		Help:    "Time spent in the TOPSIS engine per ranking.",
		Buckets: prometheus.ExponentialBuckets(0.00001, 4, 8),
	})

	degenerateScores = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pipeselect_degenerate_scores_total",
		Help: "Results whose closeness score was undefined.",
	})

	costSuggestionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pipeselect_cost_suggestions_total",
		Help: "Cost suggestion requests by outcome.",
	}, []string{"outcome"})
)
