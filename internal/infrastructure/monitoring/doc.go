/*
Package monitoring provides Prometheus metrics collection.

# Overview

Each service builds one Metrics instance holding its own registry, so
parallel services (and tests) never fight over metric registration.
Collected series cover HTTP traffic, circuit breaker transitions, retry
attempts, rate limiter rejections, idempotency replays, cache
effectiveness, event bus throughput, and order volume.

# Usage

	// Create the collector for this service
	metrics := monitoring.New("order-service")

	// Record requests via middleware and expose the scrape endpoint
	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", metrics.Handler())

	// Record domain metrics directly
	metrics.OrdersCreated.Inc()
	metrics.EventsPublished.WithLabelValues("order.created").Inc()
*/
package monitoring
