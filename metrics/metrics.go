// Package metrics holds the Prometheus collectors of the division and
// bracket engine. Collectors register with the default registry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	OutcomeGenerated    = "generated"
	OutcomeInsufficient = "insufficient"
	OutcomeError        = "error"

	OutcomeRecorded     = "recorded"
	OutcomeNoop         = "noop"
	OutcomeConflict     = "conflict"
	OutcomePrecondition = "precondition"
)

var (
	DivisionsGenerated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "divisions_generated_total",
		Help: "Divisions materialized by classification runs",
	})

	CompetitorsSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "competitors_skipped_total",
		Help: "Competitors left out of every division, by reason",
	}, []string{"reason"})

	BracketsGenerated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "brackets_generated_total",
		Help: "Bracket generation attempts by outcome",
	}, []string{"outcome"})

	BracketGenerationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "bracket_generation_duration_seconds",
		Help:    "Time to build and persist one division bracket",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
	})

	MatchResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "match_results_total",
		Help: "Match result submissions by outcome",
	}, []string{"outcome"})
)
