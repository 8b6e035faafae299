package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// ClientConfig configures a collaborator client.
type ClientConfig struct {
	// Service is the collaborator name used in errors, logs, and metrics
	// ("classifier", "generator").
	Service string

	// BaseURL is the collaborator's base URL (no trailing slash).
	BaseURL string

	// Timeout bounds a single call, including retries. Classification and
	// generation calls may take minutes, so this is typically large.
	Timeout time.Duration

	// MaxRetries is the number of retries after the first attempt for
	// transient failures (connection errors, 5xx). Zero means a single
	// attempt; the generation client must run with zero.
	MaxRetries int

	// MaxConcurrent caps in-flight calls to the collaborator. Zero or
	// negative disables the cap.
	MaxConcurrent int64

	// MaxIdleConns and IdleConnTimeout tune the connection pool.
	MaxIdleConns    int
	IdleConnTimeout time.Duration
}

// Health is a point-in-time view of a collaborator's availability as
// observed by this client.
type Health struct {
	// Healthy is false after three consecutive failures.
	Healthy bool

	// ConsecutiveFailures counts failures since the last success.
	ConsecutiveFailures int

	// LastError is the most recent failure (nil when healthy).
	LastError error

	// LastSuccess is when the last call succeeded.
	LastSuccess time.Time

	// TotalRequests and FailedRequests are lifetime counters.
	TotalRequests  int64
	FailedRequests int64
}

// Client is the shared HTTP client for collaborator calls. It provides
// connection pooling, per-call deadlines, optional retry with exponential
// backoff, a concurrency cap, and failure-streak health tracking.
type Client struct {
	config ClientConfig
	http   *http.Client
	logger *slog.Logger

	sem *semaphore.Weighted

	healthMu sync.RWMutex
	health   Health
}

// NewClient creates a collaborator client from config.
func NewClient(config ClientConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	transport := &http.Transport{
		MaxIdleConns:        config.MaxIdleConns,
		MaxIdleConnsPerHost: config.MaxIdleConns,
		IdleConnTimeout:     config.IdleConnTimeout,
		ForceAttemptHTTP2:   true,
	}

	c := &Client{
		config: config,
		http: &http.Client{
			Transport: transport,
		},
		logger: logger.With("service", config.Service),
		health: Health{
			Healthy:     true, // start optimistic
			LastSuccess: time.Now(),
		},
	}

	if config.MaxConcurrent > 0 {
		c.sem = semaphore.NewWeighted(config.MaxConcurrent)
	}

	return c
}

// Service returns the collaborator name this client talks to.
func (c *Client) Service() string {
	return c.config.Service
}

// GetHealth returns the current health view.
func (c *Client) GetHealth() Health {
	c.healthMu.RLock()
	defer c.healthMu.RUnlock()
	return c.health
}

// IsHealthy reports whether the collaborator is currently considered
// reachable.
func (c *Client) IsHealthy() bool {
	c.healthMu.RLock()
	defer c.healthMu.RUnlock()
	return c.health.Healthy
}

// PostJSON sends reqBody to path and decodes the response into respBody.
// The call is bounded by the configured timeout independent of any deadline
// already on ctx, so a slow earlier stage never starves this one.
func (c *Client) PostJSON(ctx context.Context, path string, reqBody, respBody interface{}) error {
	if c.sem != nil {
		if err := c.sem.Acquire(ctx, 1); err != nil {
			return &ConnectionError{Service: c.config.Service, Cause: err}
		}
		defer c.sem.Release(1)
	}

	callCtx := ctx
	if c.config.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.config.Timeout)
		defer cancel()
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("failed to marshal %s request: %w", c.config.Service, err)
	}

	raw, err := c.doWithRetry(callCtx, c.config.BaseURL+path, body)
	if err != nil {
		c.recordFailure(err)
		return err
	}
	c.recordSuccess()

	if respBody != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, respBody); err != nil {
			decodeErr := &DecodeError{Service: c.config.Service, Cause: err}
			c.recordFailure(decodeErr)
			return decodeErr
		}
	}

	return nil
}

// doWithRetry performs the POST, retrying transient failures with
// exponential backoff up to MaxRetries.
func (c *Client) doWithRetry(ctx context.Context, url string, body []byte) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * time.Second
			c.logger.Debug("retrying request",
				"attempt", attempt,
				"max_retries", c.config.MaxRetries,
				"backoff", backoff,
			)

			select {
			case <-ctx.Done():
				return nil, c.contextError(ctx)
			case <-time.After(backoff):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("failed to create %s request: %w", c.config.Service, err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, c.contextError(ctx)
			}
			lastErr = &ConnectionError{Service: c.config.Service, Cause: err}
			c.logger.Warn("request failed, will retry",
				"attempt", attempt+1,
				"error", err,
			)
			continue
		}

		raw, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			lastErr = &ConnectionError{Service: c.config.Service, Cause: readErr}
			continue
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return raw, nil
		}

		statusErr := &StatusError{
			Service:    c.config.Service,
			StatusCode: resp.StatusCode,
			Message:    truncate(string(raw), 512),
		}

		// 4xx means the request itself is wrong; retrying cannot help.
		if resp.StatusCode < 500 {
			return nil, statusErr
		}

		lastErr = statusErr
		c.logger.Warn("request returned server error, will retry",
			"status", resp.StatusCode,
			"attempt", attempt+1,
		)
	}

	return nil, lastErr
}

// contextError maps a cancelled or expired context to the typed error
// callers expect.
func (c *Client) contextError(ctx context.Context) error {
	if ctx.Err() == context.DeadlineExceeded {
		return &TimeoutError{Service: c.config.Service, Timeout: c.config.Timeout}
	}
	return &ConnectionError{Service: c.config.Service, Cause: ctx.Err()}
}

// recordSuccess resets the failure streak.
func (c *Client) recordSuccess() {
	c.healthMu.Lock()
	defer c.healthMu.Unlock()

	c.health.TotalRequests++
	c.health.Healthy = true
	c.health.ConsecutiveFailures = 0
	c.health.LastError = nil
	c.health.LastSuccess = time.Now()
}

// recordFailure advances the failure streak and marks the collaborator
// unhealthy after three consecutive failures.
func (c *Client) recordFailure(err error) {
	c.healthMu.Lock()
	defer c.healthMu.Unlock()

	c.health.TotalRequests++
	c.health.FailedRequests++
	c.health.ConsecutiveFailures++
	c.health.LastError = err

	if c.health.ConsecutiveFailures >= 3 {
		if c.health.Healthy {
			c.logger.Warn("collaborator marked unhealthy",
				"consecutive_failures", c.health.ConsecutiveFailures,
				"error", err,
			)
		}
		c.health.Healthy = false
	}
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

// truncate shortens s to at most n bytes for error messages.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
