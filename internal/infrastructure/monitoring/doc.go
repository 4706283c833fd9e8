/*
Package monitoring provides Prometheus metrics for the host bridge.

# Overview

Each Metrics owns its own registry, so several servers (or tests) can
coexist in one process. A nil *Metrics is accepted everywhere and records
nothing.

# Metrics

- HTTP request metrics (latency, throughput, size) keyed by route template
- Buffer lifecycle (active, created, start failures by stage, closes by reason)
- Relayed commands (count and latency by command and status)
- Directory changes by source (poll or page event) and prompt outcomes
- WebSocket subscribers, messages and drops

# Usage

	metrics := monitoring.NewMetrics()
	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	timer := monitoring.NewTimer(metrics, "copy_text")
	// ... relay the command ...
	timer.Stop("ok")
*/
package monitoring
