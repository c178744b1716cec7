// Package external wraps the third-party services AirWatch talks to over HTTP.
// Every outbound call goes through BaseClient, which applies circuit breaking,
// bounded retries with backoff, trace propagation and error mapping, so the
// provider clients only deal with payload shapes and vendor error bodies.
package external

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"net/http"
	"strconv"
	"time"

	"airwatch/internal/types"

	"github.com/sony/gobreaker/v2"
)

// RetryPolicy configures the retry behavior for the BaseClient.
type RetryPolicy struct {
	MaxRetries int
	MinWait    time.Duration
	MaxWait    time.Duration
}

// DefaultRetryPolicy returns the policy used when a provider does not need
// anything specific.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 3,
		MinWait:    500 * time.Millisecond,
		MaxWait:    10 * time.Second,
	}
}

// BreakerSettings tunes the circuit breaker created by NewBaseClient.
type BreakerSettings struct {
	// ConsecutiveFailures trips the breaker once exceeded.
	ConsecutiveFailures uint32
	// OpenTimeout is how long the breaker stays open before probing again.
	OpenTimeout time.Duration
	// Interval clears the failure counts while closed.
	Interval time.Duration
}

// DefaultBreakerSettings trips after five straight failures and probes again
// after thirty seconds.
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		ConsecutiveFailures: 5,
		OpenTimeout:         30 * time.Second,
		Interval:            60 * time.Second,
	}
}

// BaseClient pairs an *http.Client with a circuit breaker. Provider clients
// hold one and call Do instead of using the http.Client directly.
type BaseClient struct {
	client      *http.Client
	breaker     *gobreaker.CircuitBreaker[*http.Response]
	retryPolicy RetryPolicy
	userAgent   string
	sleepFn     func(context.Context, time.Duration) error
}

// BaseClientOption is a functional option for configuring a BaseClient.
type BaseClientOption func(*BaseClient)

// WithSleepFunc overrides the wait between retries. Tests pass a no-op.
func WithSleepFunc(fn func(context.Context, time.Duration) error) BaseClientOption {
	return func(c *BaseClient) {
		c.sleepFn = fn
	}
}

// NewBaseClient creates a BaseClient whose breaker is named breakerName and
// configured with DefaultBreakerSettings.
func NewBaseClient(
	httpClient *http.Client,
	breakerName string,
	retryPolicy RetryPolicy,
	userAgent string,
	opts ...BaseClientOption,
) *BaseClient {
	return NewBaseClientWithBreaker(
		httpClient,
		NewBreaker(breakerName, DefaultBreakerSettings()),
		retryPolicy,
		userAgent,
		opts...,
	)
}

// NewBreaker builds the breaker used by provider clients. 5xx and 429 count as
// failures; any other response is a success from the breaker's point of view.
func NewBreaker(name string, s BreakerSettings) *gobreaker.CircuitBreaker[*http.Response] {
	return gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    s.Interval,
		Timeout:     s.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > s.ConsecutiveFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil
		},
	})
}

// NewBaseClientWithBreaker creates a BaseClient around a caller-provided
// breaker.
func NewBaseClientWithBreaker(
	httpClient *http.Client,
	breaker *gobreaker.CircuitBreaker[*http.Response],
	retryPolicy RetryPolicy,
	userAgent string,
	opts ...BaseClientOption,
) *BaseClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	bc := &BaseClient{
		client:      httpClient,
		breaker:     breaker,
		retryPolicy: retryPolicy,
		userAgent:   userAgent,
		sleepFn:     sleepContext,
	}

	for _, opt := range opts {
		opt(bc)
	}

	return bc
}

// Do sends req through the breaker, retrying 429 and 5xx responses as well as
// transport errors. Any other response, including 4xx, is returned to the
// caller unchanged and the caller closes its body.
//
// When retries run out, the breaker is open or the request context ends while
// waiting, Do returns a *types.AppError.
func (c *BaseClient) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	if traceID := types.GetRequestID(ctx); traceID != "" {
		req.Header.Set("X-B3-TraceId", traceID)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	body, err := snapshotBody(req)
	if err != nil {
		return nil, err
	}

	var (
		lastResp *http.Response
		lastErr  error
	)

	maxAttempts := 1 + c.retryPolicy.MaxRetries
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if body != nil {
			req.Body = io.NopCloser(bytes.NewReader(body))
			req.ContentLength = int64(len(body))
		}

		resp, err := c.breaker.Execute(func() (*http.Response, error) {
			return c.send(req)
		})
		if err == nil {
			return resp, nil
		}

		if lastResp != nil {
			lastResp.Body.Close()
		}
		lastResp, lastErr = resp, err

		if breakerRejected(err) {
			break
		}
		if resp != nil && !retryableStatus(resp.StatusCode) {
			return resp, nil
		}
		if ctx.Err() != nil {
			break
		}

		if attempt < maxAttempts-1 {
			if sleepErr := c.sleepFn(ctx, c.computeBackoff(attempt, resp)); sleepErr != nil {
				lastErr = sleepErr
				break
			}
		}
	}

	if lastResp != nil {
		lastResp.Body.Close()
	}

	return nil, c.mapError(lastResp, lastErr)
}

// send performs one attempt. Retryable statuses come back as an error so the
// breaker counts them.
func (c *BaseClient) send(req *http.Request) (*http.Response, error) {
	r, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	if retryableStatus(r.StatusCode) {
		return r, fmt.Errorf("upstream returned %d", r.StatusCode)
	}
	return r, nil
}

func snapshotBody(req *http.Request) ([]byte, error) {
	if req.Body == nil || req.Body == http.NoBody {
		return nil, nil
	}
	defer req.Body.Close()
	b, err := io.ReadAll(req.Body)
	if err != nil {
		return nil, types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"failed to read request body for retry support",
			err,
		)
	}
	return b, nil
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

func breakerRejected(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

// computeBackoff honors Retry-After (seconds or HTTP date) and otherwise uses
// exponential backoff with jitter, clamped to [MinWait, MaxWait].
func (c *BaseClient) computeBackoff(attempt int, resp *http.Response) time.Duration {
	if resp != nil {
		if wait, ok := c.retryAfter(resp.Header.Get("Retry-After")); ok {
			return wait
		}
	}

	minWait := float64(c.retryPolicy.MinWait)
	ceiling := minWait * math.Pow(2, float64(attempt))
	if maxWait := float64(c.retryPolicy.MaxWait); ceiling > maxWait {
		ceiling = maxWait
	}
	if ceiling <= minWait {
		return c.retryPolicy.MinWait
	}
	return time.Duration(minWait + rand.Float64()*(ceiling-minWait))
}

func (c *BaseClient) retryAfter(header string) (time.Duration, bool) {
	if header == "" {
		return 0, false
	}
	var wait time.Duration
	if seconds, err := strconv.Atoi(header); err == nil && seconds > 0 {
		wait = time.Duration(seconds) * time.Second
	} else if t, err := http.ParseTime(header); err == nil {
		wait = time.Until(t)
		if wait <= 0 {
			return c.retryPolicy.MinWait, true
		}
	} else {
		return 0, false
	}
	if wait > c.retryPolicy.MaxWait {
		wait = c.retryPolicy.MaxWait
	}
	return wait, true
}

// mapError translates HTTP-level failures into AppErrors.
func (c *BaseClient) mapError(resp *http.Response, err error) *types.AppError {
	if breakerRejected(err) {
		return types.NewAppError(
			types.ErrCodeUpstreamRateLimited,
			"circuit breaker is open; upstream service unavailable",
			err,
		)
	}

	if resp != nil {
		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			return types.NewAppError(
				types.ErrCodeUpstreamRateLimited,
				"upstream rate limit exceeded",
				err,
			)
		case resp.StatusCode >= 500:
			return types.NewAppError(
				types.ErrCodeUpstreamUnavailable,
				fmt.Sprintf("upstream returned %d after retries", resp.StatusCode),
				err,
			)
		}
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return types.NewAppError(
			types.ErrCodeUpstreamUnavailable,
			"upstream request abandoned",
			err,
		)
	}

	return types.NewAppError(
		types.ErrCodeInternalUnexpected,
		"upstream request failed",
		err,
	)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
