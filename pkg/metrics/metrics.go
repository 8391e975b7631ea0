package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Ingestion metrics
	DedupHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "quill_dedup_hits_total",
			Help: "Total number of uploads resolved idempotently to an existing document",
		},
	)

	IngestFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "quill_ingest_failures_total",
			Help: "Total number of ingestion jobs that ended FAILED",
		},
	)

	IngestDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "quill_ingest_duration_seconds",
			Help:    "Wall-clock duration of ingestion jobs in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		},
	)

	ChunksPersistedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "quill_chunks_persisted_total",
			Help: "Total number of chunks written by the ingestion worker",
		},
	)

	InjectionFlaggedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quill_injection_flagged_total",
			Help: "Total number of prompt-injection detections by surface",
		},
		[]string{"surface"}, // "document" or "query"
	)

	// Retrieval metrics
	RetrievalFallbackTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quill_retrieval_fallback_total",
			Help: "Total number of degraded retrievals by failed stage",
		},
		[]string{"stage"}, // "sparse" or "rerank"
	)

	RetrievalDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "quill_retrieval_duration_seconds",
			Help:    "Retrieval channel duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"channel"}, // "dense", "sparse", "fused"
	)

	// Answer metrics
	PolicyRefusalTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "quill_policy_refusal_total",
			Help: "Total number of queries refused by the prompt-injection detector",
		},
	)

	AnswerWithoutSourcesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "quill_answer_without_sources_total",
			Help: "Total number of answers returned with an empty context",
		},
	)

	StreamCancellationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "quill_stream_cancellations_total",
			Help: "Total number of streaming answers aborted by consumer disconnect",
		},
	)

	// Embedding metrics
	EmbeddingCacheHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "quill_embedding_cache_hits_total",
			Help: "Total number of embedding requests served from the in-process cache",
		},
	)

	EmbeddingBatchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quill_embedding_batches_total",
			Help: "Total number of embedding batch calls by outcome",
		},
		[]string{"outcome"}, // "ok", "retried", "failed"
	)

	// API metrics
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quill_api_requests_total",
			Help: "Total number of API requests by route and status",
		},
		[]string{"route", "status"},
	)

	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "quill_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	// Queue metrics
	QueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "quill_queue_depth",
			Help: "Current number of pending ingestion jobs",
		},
	)

	DocumentsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "quill_documents_total",
			Help: "Total number of documents by status",
		},
		[]string{"status"},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(DedupHitsTotal)
	prometheus.MustRegister(IngestFailuresTotal)
	prometheus.MustRegister(IngestDuration)
	prometheus.MustRegister(ChunksPersistedTotal)
	prometheus.MustRegister(InjectionFlaggedTotal)
	prometheus.MustRegister(RetrievalFallbackTotal)
	prometheus.MustRegister(RetrievalDuration)
	prometheus.MustRegister(PolicyRefusalTotal)
	prometheus.MustRegister(AnswerWithoutSourcesTotal)
	prometheus.MustRegister(StreamCancellationsTotal)
	prometheus.MustRegister(EmbeddingCacheHitsTotal)
	prometheus.MustRegister(EmbeddingBatchesTotal)
	prometheus.MustRegister(APIRequestsTotal)
	prometheus.MustRegister(APIRequestDuration)
	prometheus.MustRegister(QueueDepth)
	prometheus.MustRegister(DocumentsTotal)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
