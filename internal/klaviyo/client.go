// Package klaviyo is the outbound adapter for the Klaviyo REST API.
//
// Every operation runs one or more HTTP calls through a shared transport that sets the
// credentials and revision headers, throttles outbound traffic, bounds each attempt with a
// timeout and repeats only 5xx responses and transport faults.
package klaviyo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	apperrors "github.com/allisson/klaviyo-relay/internal/errors"
)

const (
	// DefaultBaseURL is the production API root.
	DefaultBaseURL = "https://a.klaviyo.com/api"

	// DefaultRevision is the API version sent in the revision header.
	DefaultRevision = "2024-10-15"

	defaultTimeout     = 30 * time.Second
	defaultMaxAttempts = 2
	defaultRetryDelay  = 100 * time.Millisecond
	maxResponseBody    = 1 << 20
)

// Config holds the transport settings of a Client.
type Config struct {
	APIKey             string
	BaseURL            string
	Revision           string
	Timeout            time.Duration
	MaxAttempts        int
	RetryDelay         time.Duration
	RateLimitPerSecond float64
	RateLimitBurst     int
}

// Client executes logical operations against the Klaviyo API.
type Client struct {
	apiKey      string
	baseURL     string
	revision    string
	timeout     time.Duration
	maxAttempts int
	retryDelay  time.Duration
	httpClient  *http.Client
	limiter     *rate.Limiter
	logger      *slog.Logger
	now         func() time.Time
}

// NewClient creates a Client. Zero values in cfg fall back to the production defaults.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Revision == "" {
		cfg.Revision = DefaultRevision
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = defaultRetryDelay
	}

	limit := rate.Inf
	if cfg.RateLimitPerSecond > 0 {
		limit = rate.Limit(cfg.RateLimitPerSecond)
	}
	burst := cfg.RateLimitBurst
	if burst <= 0 {
		burst = 1
	}

	return &Client{
		apiKey:      cfg.APIKey,
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		revision:    cfg.Revision,
		timeout:     cfg.Timeout,
		maxAttempts: cfg.MaxAttempts,
		retryDelay:  cfg.RetryDelay,
		httpClient:  &http.Client{},
		limiter:     rate.NewLimiter(limit, burst),
		logger:      logger,
		now:         time.Now,
	}
}

// request describes one logical HTTP call.
type request struct {
	operation string
	method    string
	path      string
	query     url.Values
	body      any
}

// do runs req, retrying 5xx responses and transport faults up to maxAttempts with a fixed
// delay. 4xx responses return immediately. On success the response is decoded into out
// when out is non-nil and the body is non-empty.
func (c *Client) do(ctx context.Context, req request, out any) error {
	var payload []byte
	if req.body != nil {
		var err error
		if payload, err = json.Marshal(req.body); err != nil {
			return apperrors.Wrap(apperrors.ErrInvalidInput, fmt.Sprintf("klaviyo %s: encode body: %v", req.operation, err))
		}
	}

	endpoint := c.baseURL + req.path
	if len(req.query) > 0 {
		endpoint += "?" + req.query.Encode()
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return c.transportFailure(req, lastErr)
			case <-time.After(c.retryDelay):
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return c.transportFailure(req, err)
		}

		status, body, err := c.send(ctx, req.method, endpoint, payload)
		if err != nil {
			lastErr = err
			c.logger.Warn("klaviyo request failed",
				slog.String("operation", req.operation),
				slog.String("method", req.method),
				slog.String("path", req.path),
				slog.Int("attempt", attempt),
				slog.Any("error", err),
			)
			continue
		}

		if status >= http.StatusOK && status < http.StatusMultipleChoices {
			if out == nil || len(bytes.TrimSpace(body)) == 0 {
				return nil
			}
			if err := json.Unmarshal(body, out); err != nil {
				return apperrors.Wrap(ErrRemoteUnavailable, fmt.Sprintf("klaviyo %s: decode response: %v", req.operation, err))
			}
			return nil
		}

		apiErr := newAPIError(req.operation, req.method, req.path, status, body)
		if !apiErr.Retryable() {
			if status != http.StatusConflict {
				c.logger.Error("klaviyo request rejected",
					slog.String("operation", req.operation),
					slog.Int("status", status),
					slog.String("body", apiErr.Body),
				)
			}
			return apiErr
		}

		lastErr = apiErr
		c.logger.Warn("klaviyo server error",
			slog.String("operation", req.operation),
			slog.Int("status", status),
			slog.Int("attempt", attempt),
		)
	}

	var apiErr *APIError
	if apperrors.As(lastErr, &apiErr) {
		c.logger.Error("klaviyo request exhausted retries",
			slog.String("operation", req.operation),
			slog.Int("status", apiErr.StatusCode),
			slog.String("body", apiErr.Body),
		)
		return apiErr
	}
	return c.transportFailure(req, lastErr)
}

func (c *Client) transportFailure(req request, cause error) error {
	c.logger.Error("klaviyo request exhausted retries",
		slog.String("operation", req.operation),
		slog.Any("error", cause),
	)
	return fmt.Errorf("klaviyo %s: %w: %w", req.operation, ErrRemoteUnavailable, cause)
}

// send performs a single attempt bounded by the client timeout.
func (c *Client) send(ctx context.Context, method, endpoint string, payload []byte) (int, []byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return 0, nil, err
	}
	httpReq.Header.Set("Authorization", "Klaviyo-API-Key "+c.apiKey)
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("revision", c.revision)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return 0, nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, body, nil
}

// resourcePath joins collection and an escaped id as "/collection/id/".
func resourcePath(collection, id string) string {
	return "/" + collection + "/" + url.PathEscape(id) + "/"
}
