/*
Package monitoring provides Prometheus metrics for the portal.

# Overview

Each Metrics value owns a private registry, so several servers (or tests) can
coexist in one process. It tracks HTTP traffic, terminal sessions, socket
events, probe fallbacks, weather lookups, notification sends, and proxy
failures.

# Usage

	metrics := monitoring.NewMetrics()
	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	metrics.RecordWeather("ok")
	metrics.TerminalOpened()
*/
package monitoring
