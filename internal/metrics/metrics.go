// ALN Orchestrator
// Copyright 2026 ALN Orchestrator Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/maxepunk/aln-orchestrator

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus Metrics Integration for Production Observability
// This package provides instrumentation for:
// - API endpoint latency and throughput
// - WebSocket connections and message flow
// - Cache efficiency (offline batch idempotency cache)
// - VLC circuit breaker health
// - Session/transaction/video-queue domain state

var (
	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	APIRateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_rate_limit_hits_total",
			Help: "Total number of rate limit rejections",
		},
		[]string{"endpoint"},
	)

	// Cache Metrics (offline batch idempotency cache)
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"cache_type"},
	)

	CacheSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cache_entries",
			Help: "Current number of cached entries",
		},
		[]string{"cache_type"},
	)

	CacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_evictions_total",
			Help: "Total number of cache evictions (TTL expiry or LRU eviction)",
		},
		[]string{"cache_type"},
	)

	// WebSocket Metrics
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections",
			Help: "Current number of active WebSocket connections",
		},
	)

	WSMessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_messages_sent_total",
			Help: "Total number of WebSocket messages sent",
		},
	)

	WSMessagesReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_messages_received_total",
			Help: "Total number of WebSocket messages received",
		},
	)

	WSErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_errors_total",
			Help: "Total number of WebSocket errors",
		},
		[]string{"error_type"},
	)

	// Circuit Breaker Metrics (VLC client, internal/video)
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	CircuitBreakerConsecutiveFailures = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_consecutive_failures",
			Help: "Current number of consecutive failures",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// Session/Transaction Domain Metrics
	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "orchestrator_sessions_active",
			Help: "1 if a session is currently active, 0 otherwise",
		},
	)

	DevicesConnected = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "orchestrator_devices_connected",
			Help: "Current number of connected devices by type",
		},
		[]string{"device_type"}, // "player", "gm"
	)

	TransactionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orchestrator_transactions_total",
			Help: "Total number of scan transactions processed",
		},
		[]string{"mode", "status"}, // mode: "detective"/"blackmarket", status: "accepted"/"duplicate"/"error"
	)

	GroupCompletionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "orchestrator_group_completions_total",
			Help: "Total number of memory-group completion bonuses awarded",
		},
	)

	VideoQueueLength = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "orchestrator_video_queue_length",
			Help: "Current number of items pending in the video queue",
		},
	)

	OfflineBatchesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orchestrator_offline_batches_processed_total",
			Help: "Total number of offline scan batches processed",
		},
		[]string{"result"}, // "processed", "partial", "replayed"
	)

	// System Metrics
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_info",
			Help: "Application version and build information",
		},
		[]string{"version", "go_version"},
	)

	AppUptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "app_uptime_seconds",
			Help: "Application uptime in seconds",
		},
	)
)

// RecordAPIRequest records an API request metric.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks active API requests.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordTransaction records a processed scan transaction.
func RecordTransaction(mode, status string) {
	TransactionsTotal.WithLabelValues(mode, status).Inc()
}

// RecordGroupCompletion records a memory-group completion bonus.
func RecordGroupCompletion() {
	GroupCompletionsTotal.Inc()
}

// SetVideoQueueLength reports the current number of pending video queue items.
func SetVideoQueueLength(n int) {
	VideoQueueLength.Set(float64(n))
}

// SetDevicesConnected reports the current connected-device count for a type.
func SetDevicesConnected(deviceType string, n int) {
	DevicesConnected.WithLabelValues(deviceType).Set(float64(n))
}

// SetSessionActive reports whether a session is currently active.
func SetSessionActive(active bool) {
	if active {
		SessionsActive.Set(1)
	} else {
		SessionsActive.Set(0)
	}
}

// RecordOfflineBatch records an offline batch intake outcome.
func RecordOfflineBatch(result string) {
	OfflineBatchesProcessed.WithLabelValues(result).Inc()
}
