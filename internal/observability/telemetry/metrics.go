package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Dialog metrics
	TurnsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parlance_turns_total",
		Help: "Total dialog turns processed",
	}, []string{"action", "result"})

	TurnLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "parlance_turn_latency_seconds",
		Help:    "End-to-end latency of one dialog turn",
		Buckets: prometheus.DefBuckets,
	})

	DeprioritizedRequestsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "parlance_deprioritized_requests_total",
		Help: "Requests rejected because the host CPU was overloaded",
	})

	SpeechRecognitionLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "parlance_speech_recognition_latency_seconds",
		Help:    "Latency of server-side speech recognition",
		Buckets: prometheus.DefBuckets,
	})

	HTTPRequestLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "parlance_http_request_latency_seconds",
		Help:    "Latency from route dispatch to response written",
		Buckets: prometheus.DefBuckets,
	}, []string{"path", "status"})

	HTTPResponseBytes = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "parlance_http_response_bytes",
		Help:    "Final payload size of written responses",
		Buckets: prometheus.ExponentialBuckets(64, 4, 10),
	})

	// Infrastructure metrics
	CacheReadLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "parlance_cache_read_latency_seconds",
		Help:    "Latency of dialog cache reads, including bounded waits",
		Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
	}, []string{"kind"})

	AudioRelayChunksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "parlance_audio_relay_chunks_total",
		Help: "Audio chunks relayed into streaming cache entries",
	})

	CPUUsagePercent = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "parlance_cpu_usage_percent",
		Help: "Host CPU usage sampled by the load monitor",
	})

	WorkerPoolBacklog = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "parlance_worker_pool_backlog",
		Help: "Audio tasks waiting in the worker pool",
	})
)
