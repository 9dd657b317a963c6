/*
Package resilience provides the shared retry, circuit breaker, and timeout
combinators used for every outbound dependency call.

# Overview

Calls to sibling services and external collaborators are composed at the call
site from three explicit pieces: a bounded retry with exponential backoff and
jitter, a per-dependency circuit breaker that fails fast while the dependency
is unhealthy, and a deadline on the individual call. A Registry owns one
breaker per dependency name and is injected into whatever builds clients.

# Usage

	registry := resilience.NewRegistry(resilience.Settings{
		FailureThreshold: 5,
		ResetTimeout:     30 * time.Second,
	}, resilience.DefaultRetryConfig(), logger)

	product, err := resilience.Execute(ctx, registry, "product-service",
		func(ctx context.Context) (*Product, error) {
			return client.Fetch(ctx, id)
		})

# Pattern

The breaker transitions between states based on call outcomes, where one
outcome is a full retry sequence:

	Closed --[threshold failures]-> Open --[reset timeout]-> Half-Open --[trial success]-> Closed
	                                                           |
	                                                    [trial failure]
	                                                           |
	                                                           v
	                                                         Open
*/
package resilience
