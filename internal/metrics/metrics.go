package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeSuccess labels calls that returned at least one result.
	OutcomeSuccess = "success"
	// OutcomeNoResults labels calls that returned nothing.
	OutcomeNoResults = "no_results"
	// OutcomeError labels failed calls.
	OutcomeError = "error"
	// OutcomeStale labels results discarded because a newer search started.
	OutcomeStale = "stale"
)

var (
	searchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "devhub",
			Name:      "source_searches_total",
			Help:      "Total number of per-source searches, partitioned by source and outcome.",
		},
		[]string{"source", "outcome"},
	)

	searchDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "devhub",
			Name:      "source_search_seconds",
			Help:      "Per-source search latency in seconds.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 4, 8, 16, 32},
		},
		[]string{"source"},
	)

	llmAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "devhub",
			Name:      "llm_attempts_total",
			Help:      "Total number of LLM generation attempts, partitioned by outcome.",
		},
		[]string{"outcome"},
	)
)

// Register attaches devhub collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		searchesTotal,
		searchDurationSeconds,
		llmAttemptsTotal,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveSearch records one source search.
func ObserveSearch(source, outcome string, duration time.Duration) {
	searchesTotal.WithLabelValues(source, outcome).Inc()
	if duration < 0 {
		duration = 0
	}
	searchDurationSeconds.WithLabelValues(source).Observe(duration.Seconds())
}

// ObserveLLMAttempt records one LLM attempt.
func ObserveLLMAttempt(err error) {
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeError
	}
	llmAttemptsTotal.WithLabelValues(outcome).Inc()
}
