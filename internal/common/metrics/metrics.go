// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TurnsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "triage_turns_processed_total",
			Help: "Total number of conversation turns processed, by resulting severity",
		},
		[]string{"severity"},
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "triage_stage_duration_seconds",
			Help: "Duration of each pipeline stage in seconds",
		},
		[]string{"stage"},
	)

	StageFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "triage_stage_failures_total",
			Help: "Total number of stage failures recovered by fallback",
		},
		[]string{"stage", "error_code"},
	)

	Escalations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "triage_escalations_total",
			Help: "Total number of red transitions, by trigger",
		},
		[]string{"trigger"},
	)

	CacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "triage_cache_requests_total",
			Help: "Response cache lookups, by outcome",
		},
		[]string{"outcome"},
	)

	TurnsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "triage_turns_active",
			Help: "Number of turns currently in flight",
		},
	)
)
