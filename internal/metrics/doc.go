// ALN Orchestrator
// Copyright 2026 ALN Orchestrator Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/maxepunk/aln-orchestrator

/*
Package metrics provides Prometheus metrics collection and export for observability.

This package implements application instrumentation using the Prometheus client
library, exposing metrics for monitoring request performance, WebSocket traffic,
the VLC circuit breaker, and game session/transaction state.

# Overview

The package provides metrics for:
  - HTTP request latency and throughput
  - WebSocket connection and message counts
  - VLC circuit breaker state transitions
  - Offline batch idempotency cache hit/miss rates
  - Active session, device, and video queue state

# Metrics Endpoint

The collectors register with Prometheus's default registry. This package
serves no HTTP endpoint, and the orchestrator's server mounts no /metrics
route; a program that wants them scraped mounts promhttp.Handler() itself,
as in the usage example below.

# Available Metrics

API Metrics:
  - api_requests_total: Total API requests (counter)
    Labels: method, endpoint, status_code
  - api_request_duration_seconds: Request latency (histogram)
    Labels: method, endpoint
  - api_active_requests: In-flight requests (gauge)
  - api_rate_limit_hits_total: Rate limit rejections (counter)
    Labels: endpoint

WebSocket Metrics:
  - websocket_connections: Active connections (gauge)
  - websocket_messages_sent_total / websocket_messages_received_total: counters
  - websocket_errors_total: Errors (counter)
    Labels: error_type

Circuit Breaker Metrics (VLC client):
  - circuit_breaker_state: Current state (gauge)
    Labels: name
    Values: 0=closed, 1=half-open, 2=open
  - circuit_breaker_requests_total: Requests by outcome (counter)
    Labels: name, result
  - circuit_breaker_consecutive_failures: Current streak (gauge)
    Labels: name
  - circuit_breaker_state_transitions_total: State changes (counter)
    Labels: name, from_state, to_state

Cache Metrics (offline batch idempotency cache):
  - cache_hits_total / cache_misses_total: counters, labeled cache_type
  - cache_entries: Current size (gauge)
  - cache_evictions_total: TTL/LRU evictions (counter)

Domain Metrics:
  - orchestrator_sessions_active: 1 if a session is live (gauge)
  - orchestrator_devices_connected: Connected devices by type (gauge)
  - orchestrator_transactions_total: Scans processed (counter)
    Labels: mode, status
  - orchestrator_group_completions_total: Group bonuses awarded (counter)
  - orchestrator_video_queue_length: Pending video queue items (gauge)
  - orchestrator_offline_batches_processed_total: Offline batches intaken (counter)
    Labels: result

# Usage Example

Basic setup in main.go:

	import (
	    "github.com/maxepunk/aln-orchestrator/internal/metrics"
	    "github.com/prometheus/client_golang/prometheus/promhttp"
	)

	func main() {
	    http.Handle("/metrics", promhttp.Handler())

	    metrics.RecordTransaction("detective", "accepted")
	    metrics.SetVideoQueueLength(queue.Snapshot().QueueLength)
	}

Recording HTTP metrics happens via internal/middleware's Metrics
wrapper, which calls metrics.TrackActiveRequest and metrics.RecordAPIRequest
around every handler invocation.

# Prometheus Configuration

Example prometheus.yml configuration:

	scrape_configs:
	  - job_name: 'aln-orchestrator'
	    static_configs:
	      - targets: ['localhost:3000']
	    metrics_path: '/metrics'
	    scrape_interval: 15s

# Example PromQL Queries

	# API request rate
	rate(api_requests_total[5m])

	# API p95 latency
	histogram_quantile(0.95, rate(api_request_duration_seconds_bucket[5m]))

	# Cache hit rate
	sum(rate(cache_hits_total[5m])) / (sum(rate(cache_hits_total[5m])) + sum(rate(cache_misses_total[5m])))

	# Circuit breaker currently open
	circuit_breaker_state{name="vlc"} == 2

# Thread Safety

All metric recording functions are thread-safe and designed for concurrent use
from multiple goroutines. The Prometheus client library handles synchronization
internally.

# Cardinality Management

To prevent high cardinality issues:
  - Endpoint labels are the raw request path; the mounted routes are fixed
    paths with no IDs in them
  - device_type/mode/status labels are drawn from small fixed enums
  - No per-session or per-token labels

# See Also

  - internal/middleware: HTTP middleware with metrics integration
  - internal/video: VLC circuit breaker
  - https://prometheus.io/docs/practices/naming/: Metric naming conventions
*/
package metrics
