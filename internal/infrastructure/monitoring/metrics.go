package monitoring

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vurksha/backend/internal/infrastructure/resilience"
)

// Metrics holds all Prometheus metrics for one service instance. Each
// instance owns its registry so services and tests never collide on
// metric registration.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Resilience metrics
	BreakerTransitions *prometheus.CounterVec
	BreakerState       *prometheus.GaugeVec
	RetryAttempts      *prometheus.CounterVec

	// Rate limiting and idempotency
	RateLimitRejections *prometheus.CounterVec
	IdempotencyReplays  prometheus.Counter

	// Cache metrics
	CacheHits   *prometheus.CounterVec
	CacheMisses *prometheus.CounterVec

	// Event bus metrics
	EventsPublished    *prometheus.CounterVec
	EventsConsumed     *prometheus.CounterVec
	EventsDeadLettered *prometheus.CounterVec

	// Business metrics
	OrdersCreated   prometheus.Counter
	OrdersCancelled prometheus.Counter

	// Outbound call metrics
	ClientCalls    *prometheus.CounterVec
	ClientDuration *prometheus.HistogramVec
}

// New creates a metrics collector for the named service.
func New(service string) *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)
	labels := prometheus.Labels{"service": service}

	return &Metrics{
		registry: registry,

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "vurksha_http_requests_total",
				Help:        "Total number of HTTP requests",
				ConstLabels: labels,
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:        "vurksha_http_request_duration_seconds",
				Help:        "HTTP request duration in seconds",
				ConstLabels: labels,
				Buckets:     []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),

		BreakerTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "vurksha_breaker_transitions_total",
				Help:        "Circuit breaker state transitions",
				ConstLabels: labels,
			},
			[]string{"dependency", "from", "to"},
		),
		BreakerState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name:        "vurksha_breaker_state",
				Help:        "Circuit breaker state (0 closed, 1 half-open, 2 open)",
				ConstLabels: labels,
			},
			[]string{"dependency"},
		),
		RetryAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "vurksha_retry_attempts_total",
				Help:        "Retry attempts beyond the first try",
				ConstLabels: labels,
			},
			[]string{"dependency"},
		),

		RateLimitRejections: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "vurksha_ratelimit_rejections_total",
				Help:        "Requests rejected by the rate limiter",
				ConstLabels: labels,
			},
			[]string{"scope"},
		),
		IdempotencyReplays: factory.NewCounter(
			prometheus.CounterOpts{
				Name:        "vurksha_idempotency_replays_total",
				Help:        "Responses replayed from the idempotency store",
				ConstLabels: labels,
			},
		),

		CacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "vurksha_cache_hits_total",
				Help:        "Cache hits",
				ConstLabels: labels,
			},
			[]string{"keyspace"},
		),
		CacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "vurksha_cache_misses_total",
				Help:        "Cache misses",
				ConstLabels: labels,
			},
			[]string{"keyspace"},
		),

		EventsPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "vurksha_events_published_total",
				Help:        "Domain events published",
				ConstLabels: labels,
			},
			[]string{"event_type"},
		),
		EventsConsumed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "vurksha_events_consumed_total",
				Help:        "Domain events consumed, by outcome",
				ConstLabels: labels,
			},
			[]string{"event_type", "outcome"},
		),
		EventsDeadLettered: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "vurksha_events_dead_lettered_total",
				Help:        "Domain events parked on the dead letter queue",
				ConstLabels: labels,
			},
			[]string{"event_type"},
		),

		OrdersCreated: factory.NewCounter(
			prometheus.CounterOpts{
				Name:        "vurksha_orders_created_total",
				Help:        "Orders successfully created",
				ConstLabels: labels,
			},
		),
		OrdersCancelled: factory.NewCounter(
			prometheus.CounterOpts{
				Name:        "vurksha_orders_cancelled_total",
				Help:        "Orders cancelled",
				ConstLabels: labels,
			},
		),

		ClientCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "vurksha_client_calls_total",
				Help:        "Outbound service calls, by status",
				ConstLabels: labels,
			},
			[]string{"dependency", "status"},
		),
		ClientDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:        "vurksha_client_duration_seconds",
				Help:        "Outbound service call duration in seconds",
				ConstLabels: labels,
				Buckets:     []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"dependency"},
		),
	}
}

// Handler exposes this instance's registry in Prometheus format.
func (m *Metrics) Handler() gin.HandlerFunc {
	h := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	return gin.WrapH(h)
}

// RecordHTTPRequest records one served request.
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordBreakerTransition records a circuit breaker state change and
// updates the state gauge.
func (m *Metrics) RecordBreakerTransition(dependency, from, to string, stateValue float64) {
	m.BreakerTransitions.WithLabelValues(dependency, from, to).Inc()
	m.BreakerState.WithLabelValues(dependency).Set(stateValue)
}

// BreakerObserver adapts the collector to the breaker registry's state
// change hook.
func (m *Metrics) BreakerObserver() func(name string, from, to resilience.State) {
	return func(name string, from, to resilience.State) {
		m.RecordBreakerTransition(name, from.String(), to.String(), float64(to))
	}
}

// RetryObserver adapts the collector to the registry's retry hook.
func (m *Metrics) RetryObserver() func(dependency string, attempt int) {
	return func(dependency string, _ int) {
		m.RetryAttempts.WithLabelValues(dependency).Inc()
	}
}

// RecordClientCall records an outbound call to another service.
func (m *Metrics) RecordClientCall(dependency, status string, duration time.Duration) {
	m.ClientCalls.WithLabelValues(dependency, status).Inc()
	m.ClientDuration.WithLabelValues(dependency).Observe(duration.Seconds())
}
