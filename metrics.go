package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	compatibilityComputed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mithaq_compatibility_computed_total",
			Help: "Compatibility results served, by source",
		},
		[]string{"source"}, // computed, cache
	)

	compatibilityScore = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mithaq_compatibility_score",
			Help:    "Distribution of computed compatibility scores",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		},
	)

	moderationChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mithaq_moderation_checks_total",
			Help: "Moderation checks by content type and outcome",
		},
		[]string{"content_type", "outcome"},
	)

	completenessEvaluations = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mithaq_profile_completeness",
			Help:    "Completeness percentage of saved profiles",
			Buckets: []float64{20, 40, 60, 80, 95, 100},
		},
	)

	recommendationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "mithaq_recommendation_duration_seconds",
			Help: "Time spent building a recommendation list",
		},
	)
)

func moderationOutcome(appropriate bool) string {
	if appropriate {
		return "appropriate"
	}
	return "flagged"
}
