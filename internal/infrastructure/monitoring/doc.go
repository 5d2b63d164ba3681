/*
Package monitoring provides metrics collection for the host.

# Overview

This package implements Prometheus-based metrics for the transport, the
editor views, the WebSocket bridge and the HTTP surface. Collectors are
registered on an injectable prometheus.Registerer so tests can use a
private registry.

# Features

- Transport frame counters (received, sent, dropped by reason)
- Binding and pending-callback gauges
- View and remote-request metrics
- WebSocket connection metrics
- HTTP request metrics

# Usage

	metrics := monitoring.NewMetrics(prometheus.NewRegistry())

	router.Use(monitoring.Middleware(metrics))
	metrics.RecordFrameDropped(monitoring.DropUnknownSource)

A nil *Metrics is valid and records nothing.

# Metrics Endpoint

	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
*/
package monitoring
