package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusCollector implements Collector for Prometheus.
type PrometheusCollector struct {
	uploads        *prometheus.CounterVec
	uploadRows     prometheus.Counter
	uploadDuration prometheus.Histogram

	suggestions *prometheus.CounterVec

	aiRequests   *prometheus.CounterVec
	aiLatency    *prometheus.HistogramVec
	circuitState *prometheus.GaugeVec

	embedCache *prometheus.CounterVec
}

func NewPrometheusCollector(namespace string) *PrometheusCollector {
	return &PrometheusCollector{
		uploads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "uploads_total",
				Help:      "Statement uploads by outcome and error type",
			},
			[]string{"outcome", "error_type"},
		),
		uploadRows: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upload_rows_total",
			Help:      "Transactions persisted from uploads",
		}),
		uploadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upload_duration_seconds",
			Help:      "Time spent processing an upload",
			Buckets:   prometheus.DefBuckets,
		}),
		suggestions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "suggestions_total",
				Help:      "Suggestions served by operation and source",
			},
			[]string{"operation", "source"},
		),
		aiRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ai_requests_total",
				Help:      "Calls to the AI provider",
			},
			[]string{"provider", "operation", "outcome"},
		),
		aiLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "ai_request_duration_seconds",
				Help:      "Latency of AI provider calls",
				Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"provider", "operation"},
		),
		circuitState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "ai_circuit_state",
				Help:      "Circuit breaker state (0=closed, 1=open, 2=half-open)",
			},
			[]string{"name"},
		),
		embedCache: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "embedding_cache_total",
				Help:      "Embedding cache lookups by result",
			},
			[]string{"result"},
		),
	}
}

// Register registers all metrics with the given Prometheus registry.
func (pc *PrometheusCollector) Register(registry prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		pc.uploads, pc.uploadRows, pc.uploadDuration,
		pc.suggestions,
		pc.aiRequests, pc.aiLatency, pc.circuitState,
		pc.embedCache,
	}
	for _, c := range collectors {
		if err := registry.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (pc *PrometheusCollector) RecordUpload(outcome, errorType string, rows int, duration time.Duration) {
	pc.uploads.WithLabelValues(outcome, errorType).Inc()
	if rows > 0 {
		pc.uploadRows.Add(float64(rows))
	}
	pc.uploadDuration.Observe(duration.Seconds())
}

func (pc *PrometheusCollector) RecordSuggestion(operation, source string) {
	pc.suggestions.WithLabelValues(operation, source).Inc()
}

func (pc *PrometheusCollector) RecordAIRequest(provider, operation string, success bool, duration time.Duration) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	pc.aiRequests.WithLabelValues(provider, operation, outcome).Inc()
	pc.aiLatency.WithLabelValues(provider, operation).Observe(duration.Seconds())
}

func (pc *PrometheusCollector) RecordCircuitState(name string, state CircuitState) {
	pc.circuitState.WithLabelValues(name).Set(float64(state))
}

func (pc *PrometheusCollector) RecordEmbeddingCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	pc.embedCache.WithLabelValues(result).Inc()
}
