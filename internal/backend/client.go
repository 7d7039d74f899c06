// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/jeranaias/echoflow/internal/errs"
)

// Configuration constants for the backend client.
const (
	// DefaultTimeout bounds one HTTP attempt.
	DefaultTimeout = 120 * time.Second

	// DefaultMaxRetries is the number of attempts for transient failures.
	DefaultMaxRetries = 3

	// MaxResponseSize caps a response body.
	MaxResponseSize = 10 * 1024 * 1024

	retryBaseDelay = 500 * time.Millisecond
	retryMaxDelay  = 10 * time.Second

	chatPath       = "/api/chat"
	transcribePath = "/api/transcribe"
)

// StatusError is a non-2xx backend response.
type StatusError struct {
	Status  int
	Message string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend returned status %d", e.Status)
	}
	return fmt.Sprintf("backend returned status %d: %s", e.Status, e.Message)
}

// Retryable reports whether the status is worth another attempt. A 500
// carries the provider's own failure and is returned at once.
func (e *StatusError) Retryable() bool {
	switch e.Status {
	case http.StatusTooManyRequests, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// =============================================================================
// HTTP CLIENT
// =============================================================================

// HTTPClient talks to the backend over JSON/HTTP.
type HTTPClient struct {
	baseURL    string
	http       *http.Client
	limiter    *rate.Limiter
	maxRetries int
	retryDelay time.Duration
	log        *zap.Logger
}

// ClientOption configures an HTTPClient.
type ClientOption func(*HTTPClient)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *HTTPClient) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout sets the per-attempt timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithMaxRetries sets the number of attempts for transient failures.
func WithMaxRetries(n int) ClientOption {
	return func(c *HTTPClient) {
		if n > 0 {
			c.maxRetries = n
		}
	}
}

// WithRetryDelay sets the base backoff delay.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		if d > 0 {
			c.retryDelay = d
		}
	}
}

// WithRateLimit caps outgoing requests to rps with the given burst.
// A non-positive rps disables limiting.
func WithRateLimit(rps float64, burst int) ClientOption {
	return func(c *HTTPClient) {
		if rps <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) ClientOption {
	return func(c *HTTPClient) {
		if l != nil {
			c.log = l
		}
	}
}

// NewHTTPClient creates a client for the backend at baseURL.
func NewHTTPClient(baseURL string, opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		http:       &http.Client{Timeout: DefaultTimeout},
		limiter:    rate.NewLimiter(rate.Inf, 0),
		maxRetries: DefaultMaxRetries,
		retryDelay: retryBaseDelay,
		log:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the backend base URL.
func (c *HTTPClient) BaseURL() string {
	return c.baseURL
}

// SendChatMessage implements Chatter.
func (c *HTTPClient) SendChatMessage(ctx context.Context, req ChatRequest) (string, error) {
	var resp ChatResponse
	if err := c.post(ctx, chatPath, req, &resp); err != nil {
		return "", errs.Backend("backend.chat", errs.Reason(err), err)
	}
	if strings.TrimSpace(resp.Response) == "" {
		return "", ErrEmptyResponse
	}
	return resp.Response, nil
}

// TranscribeAudio implements Transcriber.
func (c *HTTPClient) TranscribeAudio(ctx context.Context, req TranscribeRequest) (string, error) {
	var resp TranscribeResponse
	if err := c.post(ctx, transcribePath, req, &resp); err != nil {
		return "", errs.Backend("backend.transcribe", errs.Reason(err), err)
	}
	if strings.TrimSpace(resp.TranscribedText) == "" {
		return "", ErrEmptyTranscription
	}
	return resp.TranscribedText, nil
}

// =============================================================================
// REQUEST PLUMBING
// =============================================================================

// post sends body to path and decodes the reply into out, retrying
// transient statuses with exponential backoff.
func (c *HTTPClient) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.backoff(attempt)):
			}
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		start := time.Now()
		err := c.do(ctx, path, payload, out)
		c.log.Debug("backend request",
			zap.String("path", path),
			zap.Int("attempt", attempt+1),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err))
		if err == nil {
			return nil
		}

		var se *StatusError
		if errors.As(err, &se) && se.Retryable() {
			lastErr = err
			continue
		}
		return err
	}
	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (c *HTTPClient) do(ctx context.Context, path string, payload []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := readResponse(resp)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		se := &StatusError{Status: resp.StatusCode}
		var e ErrorResponse
		if json.Unmarshal(body, &e) == nil && e.Error != "" {
			se.Message = e.Error
		} else {
			se.Message = strings.TrimSpace(string(body))
		}
		return se
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// readResponse reads the body, failing when it exceeds MaxResponseSize.
func readResponse(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if len(body) > MaxResponseSize {
		return nil, fmt.Errorf("response exceeded maximum size of %d bytes", MaxResponseSize)
	}
	return body, nil
}

func (c *HTTPClient) backoff(attempt int) time.Duration {
	delay := c.retryDelay * time.Duration(1<<uint(attempt-1))
	if delay > retryMaxDelay {
		delay = retryMaxDelay
	}
	return delay
}
