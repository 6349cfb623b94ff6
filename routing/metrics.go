package routing

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pipelineOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "murojaat",
			Subsystem: "routing",
			Name:      "pipeline_outcomes_total",
			Help:      "Pipeline runs by terminal state",
		},
		[]string{"state"},
	)

	stageLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "murojaat",
			Subsystem: "routing",
			Name:      "stage_latency_seconds",
			Help:      "Per-stage latency in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"stage"},
	)

	screenVerdicts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "murojaat",
			Subsystem: "routing",
			Name:      "screen_verdicts_total",
			Help:      "Safety screen verdicts",
		},
		[]string{"flagged"},
	)

	providerRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "murojaat",
			Subsystem: "routing",
			Name:      "provider_retries_total",
			Help:      "Retried provider calls by stage",
		},
		[]string{"stage"},
	)
)
