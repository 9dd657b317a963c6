// Package product is the HTTP client other services use to talk to the
// product service. Calls run through the shared resilience registry, so
// retries happen inside the product-service circuit breaker.
package product

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/vurksha/backend/internal/api/apierror"
	"github.com/vurksha/backend/internal/api/envelope"
	"github.com/vurksha/backend/internal/infrastructure/monitoring"
	"github.com/vurksha/backend/internal/infrastructure/resilience"
)

// dependency is the breaker name for all product-service calls.
const dependency = "product-service"

// Product is the subset of the product document callers consume.
type Product struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	MRP      float64 `json:"mrp"`
	Stock    int     `json:"stock"`
	Unit     string  `json:"unit"`
	ImageURL string  `json:"imageUrl"`
	Active   bool    `json:"active"`
}

// Client calls the product service.
type Client struct {
	http     *resty.Client
	registry *resilience.Registry
	metrics  *monitoring.Metrics
}

// New builds a client against baseURL. Calls inherit the registry's
// retry policy and share one breaker for the product service.
func New(baseURL string, timeout time.Duration, registry *resilience.Registry) *Client {
	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	return &Client{http: httpClient, registry: registry}
}

// Instrument routes per-attempt call counts and latencies into the
// collector. Call during wiring.
func (c *Client) Instrument(m *monitoring.Metrics) {
	c.metrics = m
}

// observe records one attempt. Retries count individually; transport
// failures get the "error" status label.
func (c *Client) observe(start time.Time, resp *resty.Response, err error) {
	if c.metrics == nil {
		return
	}
	status := "error"
	if err == nil {
		status = strconv.Itoa(resp.StatusCode())
	}
	c.metrics.RecordClientCall(dependency, status, time.Since(start))
}

// Ping probes the product service's liveness endpoint. It bypasses the
// breaker so health reporting keeps working while the circuit is open.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.http.R().SetContext(ctx).Get("/health/live")
	if err != nil {
		return err
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("product service liveness returned %d", resp.StatusCode())
	}
	return nil
}

// productEnvelope mirrors the product service's response shape.
type productEnvelope struct {
	Success bool            `json:"success"`
	Data    *Product        `json:"data"`
	Error   *envelope.Error `json:"error"`
}

type productListEnvelope struct {
	Success bool            `json:"success"`
	Data    []Product       `json:"data"`
	Error   *envelope.Error `json:"error"`
}

// Get fetches one product by ID.
func (c *Client) Get(ctx context.Context, id string) (Product, error) {
	return resilience.Execute(ctx, c.registry, dependency, func(ctx context.Context) (Product, error) {
		var body productEnvelope
		start := time.Now()
		resp, err := c.http.R().
			SetContext(ctx).
			SetResult(&body).
			SetError(&body).
			Get("/api/products/" + id)
		c.observe(start, resp, err)
		if err != nil {
			return Product{}, apierror.Dependency(dependency, err)
		}
		return decodeOne(resp, body, id)
	})
}

// GetBatch fetches several products in one round trip. Unknown IDs are
// simply absent from the result.
func (c *Client) GetBatch(ctx context.Context, ids []string) (map[string]Product, error) {
	return resilience.Execute(ctx, c.registry, dependency, func(ctx context.Context) (map[string]Product, error) {
		var body productListEnvelope
		start := time.Now()
		resp, err := c.http.R().
			SetContext(ctx).
			SetQueryParamsFromValues(map[string][]string{"id": ids}).
			SetResult(&body).
			SetError(&body).
			Get("/api/products")
		c.observe(start, resp, err)
		if err != nil {
			return nil, apierror.Dependency(dependency, err)
		}
		if resp.StatusCode() != http.StatusOK {
			return nil, remoteError(resp, body.Error)
		}
		out := make(map[string]Product, len(body.Data))
		for _, p := range body.Data {
			out[p.ID] = p
		}
		return out, nil
	})
}

func decodeOne(resp *resty.Response, body productEnvelope, id string) (Product, error) {
	switch {
	case resp.StatusCode() == http.StatusOK && body.Data != nil:
		return *body.Data, nil
	case resp.StatusCode() == http.StatusNotFound:
		return Product{}, apierror.NotFound("product", id)
	default:
		return Product{}, remoteError(resp, body.Error)
	}
}

// remoteError converts a non-OK product-service response into a typed
// error. 4xx responses are the caller's fault and come back
// non-retryable, so the retry executor stops immediately; like any
// other failure they still count toward the breaker threshold.
func remoteError(resp *resty.Response, remote *envelope.Error) error {
	if remote != nil {
		if resp.StatusCode() >= 400 && resp.StatusCode() < 500 {
			return apierror.New(apierror.Code(remote.Code), remote.Message)
		}
		return apierror.Wrap(apierror.CodeDependencyFailed, "product service error",
			fmt.Errorf("%s: %s", remote.Code, remote.Message))
	}
	return apierror.Dependency(dependency, fmt.Errorf("unexpected status %d", resp.StatusCode()))
}

// IsUnavailable reports whether err means the product service could not
// answer at all, as opposed to answering with a domain error. Callers
// with an optimistic policy degrade on these.
func IsUnavailable(err error) bool {
	if resilience.IsCircuitOpen(err) || resilience.IsTimeout(err) {
		return true
	}
	apiErr := apierror.From(err)
	return apiErr.Code == apierror.CodeDependencyFailed || apiErr.Code == apierror.CodeServiceUnavailable
}
