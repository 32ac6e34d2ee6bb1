package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "topicreader_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "topicreader_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.005, .01, .05, .1, .5, 1, 5, 15, 60},
		},
		[]string{"method", "path"},
	)

	// Pipeline metrics
	PagesFetched = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "topicreader_message_pages_fetched_total",
			Help: "Total message pages requested from Discord",
		},
	)

	SummariesGenerated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "topicreader_summaries_generated_total",
			Help: "Total summaries generated",
		},
		[]string{"category"},
	)

	GenerationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "topicreader_generation_errors_total",
			Help: "Total failed summary generations",
		},
		[]string{"kind"},
	)

	GenerationLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "topicreader_generation_latency_seconds",
			Help:    "Generative API request latency",
			Buckets: []float64{.5, 1, 2, 5, 10, 20, 40, 80},
		},
	)

	// Storage metrics
	SummariesSaved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "topicreader_summaries_saved_total",
			Help: "Total summaries saved, by tier",
		},
		[]string{"tier"}, // "local" or "remote"
	)

	RemoteSaveFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "topicreader_remote_save_failures_total",
			Help: "Total summaries saved locally only because the remote write failed",
		},
	)
)
