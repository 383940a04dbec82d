/*
Package monitoring provides Prometheus metrics for the backend.

# Overview

Each Metrics value owns a private registry, so tests and multiple servers in
one process never collide on metric names. All metrics carry the
"textnexus" namespace.

# Features

  - HTTP request metrics (latency, throughput, size) keyed by route template
  - Storage operations per slot, backup and verification outcomes
  - Circuit breaker state per storage slot
  - Notification router outcomes and tracked handles
  - Activity signal outcomes (queued, dropped, emitted)
  - Session snapshot writes
  - WebSocket connection metrics

# Usage

	metrics := monitoring.NewMetrics()
	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	timer := monitoring.NewTimer(metrics, "durable", "set")
	// ... perform operation ...
	timer.Stop(monitoring.StatusSuccess)

A nil *Metrics is valid and records nothing.
*/
package monitoring
