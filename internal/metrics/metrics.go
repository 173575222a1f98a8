// Package metrics holds the Prometheus collectors for embedding,
// ingestion, retrieval, and generation.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	EmbeddingRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "groundkit",
			Name:      "embedding_requests_total",
			Help:      "Total number of embedding provider calls",
		},
		[]string{"provider", "model", "status"},
	)

	EmbeddingRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "groundkit",
			Name:      "embedding_request_duration_seconds",
			Help:      "Embedding provider call duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"provider", "model"},
	)

	EmbeddingCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "groundkit",
			Name:      "embedding_cache_total",
			Help:      "Embedding cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)

	EmbeddingFallbacksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "groundkit",
			Name:      "embedding_fallbacks_total",
			Help:      "Items substituted with a deterministic fallback vector",
		},
	)

	IngestChunksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "groundkit",
			Name:      "ingest_chunks_total",
			Help:      "Chunks persisted by the ingestion pipeline",
		},
		[]string{"origin"},
	)

	IngestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "groundkit",
			Name:      "ingest_duration_seconds",
			Help:      "End-to-end ingestion duration per source",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"origin", "status"},
	)

	RetrievalDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "groundkit",
			Name:      "retrieval_duration_seconds",
			Help:      "Hybrid retrieval duration",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"tier"},
	)

	GenerationRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "groundkit",
			Name:      "generation_requests_total",
			Help:      "Total number of generation provider calls",
		},
		[]string{"model", "status"},
	)

	GenerationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "groundkit",
			Name:      "generation_duration_seconds",
			Help:      "Generation provider call duration in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"model"},
	)

	QueryCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "groundkit",
			Name:      "query_cache_total",
			Help:      "Query response cache hits and misses",
		},
		[]string{"result"},
	)

	RetrievalCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "groundkit",
			Name:      "retrieval_cache_total",
			Help:      "Retrieval results cache hits and misses",
		},
		[]string{"result"},
	)
)

var registered bool

// Register registers all groundkit collectors. Must be called once from main.
func Register() {
	if registered {
		return
	}
	prometheus.MustRegister(
		EmbeddingRequestsTotal,
		EmbeddingRequestDuration,
		EmbeddingCacheTotal,
		EmbeddingFallbacksTotal,
		IngestChunksTotal,
		IngestDuration,
		RetrievalDuration,
		GenerationRequestsTotal,
		GenerationDuration,
		QueryCacheTotal,
		RetrievalCacheTotal,
	)
	registered = true
}
