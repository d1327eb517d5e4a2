package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// pipelineMetrics holds all Prometheus metrics owned by the query pipeline.
// A single instance is created in New and stored on Pipeline so tests can
// inject a fresh prometheus.Registry without polluting the default one.
type pipelineMetrics struct {
	// queriesTotal counts completed queries, partitioned by outcome:
	// "ok", "validation", "upstream_unavailable", "retrieval_unavailable",
	// or "composition".
	queriesTotal *prometheus.CounterVec

	// answersTotal counts successful answers, partitioned by composition
	// branch: "fallback", "single", or "list".
	answersTotal *prometheus.CounterVec

	// stageDurationSeconds records the wall-clock duration of each pipeline
	// stage: "retrieve" (embed + similarity search) and "compose".
	stageDurationSeconds *prometheus.HistogramVec
}

// newPipelineMetrics registers all pipeline metrics against reg.
// promauto.With(reg) keeps unit tests hermetic.
func newPipelineMetrics(reg prometheus.Registerer) *pipelineMetrics {
	factory := promauto.With(reg)

	return &pipelineMetrics{
		queriesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "reachbot",
			Subsystem: "pipeline",
			Name:      "queries_total",
			Help:      "Total number of bot queries completed, partitioned by outcome.",
		}, []string{"outcome"}),

		answersTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "reachbot",
			Subsystem: "pipeline",
			Name:      "answers_total",
			Help:      "Total number of successful answers, partitioned by composition branch.",
		}, []string{"branch"}),

		stageDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "reachbot",
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Wall-clock duration of each pipeline stage.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"stage"}),
	}
}
