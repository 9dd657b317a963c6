package notification

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/vurksha/backend/internal/infrastructure/logging"
	"github.com/vurksha/backend/internal/infrastructure/resilience"
)

// Pusher delivers a rendered notification to one device token.
type Pusher interface {
	Push(ctx context.Context, token string, n Notification) error
}

// pushMessage is the wire form sent to the push gateway.
type pushMessage struct {
	Token string         `json:"token"`
	Title string         `json:"title"`
	Body  string         `json:"body"`
	Data  map[string]any `json:"data,omitempty"`
}

// HTTPPusher posts notifications to an FCM-style push gateway. The
// transport already retries connection-level failures; 5xx responses
// from the gateway are additionally retried by the caller through the
// retry executor.
type HTTPPusher struct {
	url    string
	client *retryablehttp.Client
	retry  resilience.RetryConfig
	logger *logging.Logger
}

// NewHTTPPusher builds a pusher for the given gateway endpoint.
func NewHTTPPusher(url string, timeout time.Duration, logger *logging.Logger) *HTTPPusher {
	client := retryablehttp.NewClient()
	client.HTTPClient.Timeout = timeout
	client.RetryMax = 2
	client.RetryWaitMin = 100 * time.Millisecond
	client.RetryWaitMax = 2 * time.Second
	client.Logger = nil

	retry := resilience.DefaultRetryConfig()
	retry.IsRetryable = transientPushError

	return &HTTPPusher{url: url, client: client, retry: retry, logger: logger}
}

// pushError carries the gateway's status so the retry predicate can
// tell rejected tokens from gateway trouble.
type pushError struct {
	status int
}

func (e *pushError) Error() string {
	return fmt.Sprintf("push gateway returned %d", e.status)
}

func (e *pushError) Retryable() bool {
	return e.status >= 500
}

func transientPushError(err error) bool {
	type retryable interface{ Retryable() bool }
	if r, ok := err.(retryable); ok {
		return r.Retryable()
	}
	return resilience.Transient(err)
}

func (p *HTTPPusher) Push(ctx context.Context, token string, n Notification) error {
	msg := pushMessage{
		Token: token,
		Title: n.Title,
		Body:  n.Body,
		Data:  map[string]any{"type": n.Type, "notificationId": n.ID},
	}
	payload, err := sonic.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode push message: %w", err)
	}

	_, err = resilience.WithRetry(ctx, p.retry, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, p.send(ctx, payload)
	})
	return err
}

func (p *HTTPPusher) send(ctx context.Context, payload []byte) error {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return &pushError{status: resp.StatusCode}
	}
	return nil
}
