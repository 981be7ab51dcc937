// Package upstream talks to the cart and catalog services over HTTP,
// forwarding the caller's credential so the peers scope data to the same user.
package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/cenkalti/backoff/v4"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"io"
	"net/http"
	"strings"
	"time"
)

// Observer records the outcome of every upstream round trip.
type Observer interface {
	ObserveUpstream(source, outcome string, elapsed time.Duration)
}

// StatusError is a non-2xx answer from a peer.
type StatusError struct {
	Source string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Source, e.Code, e.Body)
}

// Client is a JSON-over-HTTP peer with a per-attempt timeout and bounded
// exponential-backoff retries for network errors, 429 and 5xx.
type Client struct {
	Source   string
	BaseURL  string
	HTTP     *http.Client
	Timeout  time.Duration
	Retries  int
	Observer Observer // optional
}

func NewClient(source, baseURL string, timeout time.Duration, retries int, obs Observer) *Client {
	return &Client{
		Source:   source,
		BaseURL:  strings.TrimRight(baseURL, "/"),
		HTTP:     &http.Client{},
		Timeout:  timeout,
		Retries:  retries,
		Observer: obs,
	}
}

func (c *Client) getJSON(ctx context.Context, path, token string, out any) error {
	op := func() error {
		start := time.Now()
		err := c.attempt(ctx, path, token, out)
		if c.Observer != nil {
			c.Observer.ObserveUpstream(c.Source, outcome(err), time.Since(start))
		}
		var se *StatusError
		if errors.As(err, &se) && se.Code != http.StatusTooManyRequests && se.Code < 500 {
			return backoff.Permanent(err)
		}
		if ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		return err
	}
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 100 * time.Millisecond
	bo.MaxInterval = time.Second
	retries := c.Retries
	if retries < 0 {
		retries = 0
	}
	return backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(bo, uint64(retries)), ctx))
}

func (c *Client) attempt(ctx context.Context, path, token string, out any) error {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return backoff.Permanent(err)
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if id := middleware.GetReqID(ctx); id != "" {
		req.Header.Set(middleware.RequestIDHeader, id)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", c.Source, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Source: c.Source, Code: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return backoff.Permanent(fmt.Errorf("%s: decode response: %w", c.Source, err))
	}
	return nil
}

func outcome(err error) string {
	var se *StatusError
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &se):
		return fmt.Sprintf("%dxx", se.Code/100)
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "error"
	}
}
