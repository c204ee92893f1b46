package chat

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	retrievalQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "maitre",
			Name:      "retrieval_queries_total",
			Help:      "Total vector retrieval queries",
		},
		[]string{"stage"}, // "direct", "hyde"
	)

	retrievalDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "maitre",
			Name:      "retrieval_duration_seconds",
			Help:      "Duration of hybrid retrieval in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)

	retrievalResultsCount = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "maitre",
			Name:      "retrieval_results_count",
			Help:      "Number of entries surviving merge per retrieval",
			Buckets:   []float64{0, 1, 2, 3, 4, 5},
		},
	)

	llmCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "maitre",
			Name:      "llm_calls_total",
			Help:      "Total LLM API calls",
		},
		[]string{"status"},
	)

	llmDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "maitre",
			Name:      "llm_duration_seconds",
			Help:      "Duration of LLM API calls in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
		},
	)

	llmTokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "maitre",
			Name:      "llm_tokens_total",
			Help:      "Estimated LLM tokens consumed",
		},
		[]string{"direction"},
	)

	toolCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "maitre",
			Name:      "tool_calls_total",
			Help:      "Total agent tool invocations",
		},
		[]string{"tool", "status"},
	)

	tracesRecordedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "maitre",
			Name:      "traces_recorded_total",
			Help:      "Query traces written, by resolution status",
		},
		[]string{"status"},
	)

	chatsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "maitre",
			Name:      "chats_active",
			Help:      "Number of chat requests currently streaming",
		},
	)
)
