// Package webhook implements an HTTP POST adapter.
//
// Each change event is POSTed as a JSON body. The feed, sequence and a
// delivery key are mirrored into request headers so receivers can route and
// deduplicate without decoding the body.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/pithecene-io/sluice/adapter"
	"github.com/pithecene-io/sluice/iox"
)

// DefaultTimeout is the default HTTP request timeout.
const DefaultTimeout = 10 * time.Second

// DefaultRetries is the default number of retry attempts.
const DefaultRetries = 3

// retryBase is the first backoff interval; it doubles per attempt.
const retryBase = 500 * time.Millisecond

// Request headers set on every delivery.
const (
	HeaderFeed     = "X-Sluice-Feed"
	HeaderSeq      = "X-Sluice-Seq"
	HeaderDelivery = "X-Sluice-Delivery"
)

// Config configures the webhook adapter.
type Config struct {
	// URL is the HTTP endpoint to POST to (required).
	URL string
	// Headers are added to each request and may override the defaults.
	Headers map[string]string
	// Timeout bounds a single attempt (default 10s).
	Timeout time.Duration
	// Retries is the number of attempts after the first (default 3).
	Retries int
}

// Adapter publishes change events via HTTP POST.
type Adapter struct {
	url     string
	headers http.Header
	retries int
	client  *http.Client
}

// New creates a webhook adapter from the given config.
func New(cfg Config) (*Adapter, error) {
	if cfg.URL == "" {
		return nil, errors.New("webhook adapter requires a URL")
	}
	if cfg.Retries < 0 {
		return nil, fmt.Errorf("retries must be >= 0, got %d", cfg.Retries)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	headers := make(http.Header, len(cfg.Headers)+1)
	headers.Set("Content-Type", "application/json")
	for k, v := range cfg.Headers {
		headers.Set(k, v)
	}

	return &Adapter{
		url:     cfg.URL,
		headers: headers,
		retries: cfg.Retries,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

// DeliveryKey identifies one change event across redeliveries.
// Records replayed after a reconnect produce the same key.
func DeliveryKey(event *adapter.ChangeEvent) string {
	return event.Feed + "/" + event.Seq
}

// Publish POSTs the event. Network errors, 5xx, 408 and 429 responses are
// retried; any other non-2xx status fails immediately.
func (a *Adapter) Publish(ctx context.Context, event *adapter.ChangeEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("webhook: marshal event: %w", err)
	}

	header := a.headers.Clone()
	header.Set(HeaderFeed, event.Feed)
	header.Set(HeaderSeq, event.Seq)
	header.Set(HeaderDelivery, DeliveryKey(event))

	return adapter.Retry(ctx, "webhook", a.retries, retryBase, permanent, func(ctx context.Context) error {
		return a.post(ctx, header, body)
	})
}

// StatusError is returned for non-2xx HTTP responses.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.Code)
}

// Retriable reports whether the receiver may accept the same request later.
func (e *StatusError) Retriable() bool {
	switch {
	case e.Code == http.StatusRequestTimeout, e.Code == http.StatusTooManyRequests:
		return true
	default:
		return e.Code >= 500
	}
}

func permanent(err error) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && !statusErr.Retriable()
}

func (a *Adapter) post(ctx context.Context, header http.Header, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header = header.Clone()

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer iox.DrainClose(resp.Body)

	if resp.StatusCode/100 != 2 {
		return &StatusError{Code: resp.StatusCode}
	}
	return nil
}

// Close releases idle connections.
func (a *Adapter) Close() error {
	a.client.CloseIdleConnections()
	return nil
}

var _ adapter.Adapter = (*Adapter)(nil)
