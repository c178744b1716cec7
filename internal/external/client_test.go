package external

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"airwatch/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noopSleep(context.Context, time.Duration) error { return nil }

func newTestClient(policy RetryPolicy, opts ...BaseClientOption) *BaseClient {
	opts = append([]BaseClientOption{WithSleepFunc(noopSleep)}, opts...)
	return NewBaseClient(&http.Client{Timeout: 5 * time.Second}, "test-breaker", policy, "AirWatch-Test/1.0", opts...)
}

func fastPolicy(retries int) RetryPolicy {
	return RetryPolicy{MaxRetries: retries, MinWait: time.Millisecond, MaxWait: 5 * time.Second}
}

func TestBaseClient_Do_InjectsHeaders(t *testing.T) {
	var traceID, userAgent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID = r.Header.Get("X-B3-TraceId")
		userAgent = r.Header.Get("User-Agent")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ctx := types.WithRequestID(context.Background(), "req-123")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	resp, err := newTestClient(fastPolicy(0)).Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "req-123", traceID)
	assert.Equal(t, "AirWatch-Test/1.0", userAgent)
}

func TestBaseClient_Do_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	resp, err := newTestClient(fastPolicy(3)).Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "ok", string(body))
	assert.Equal(t, int32(3), calls.Load())
}

func TestBaseClient_Do_ExhaustedRetries(t *testing.T) {
	tests := []struct {
		name   string
		status int
		code   types.ErrorCode
	}{
		{"server error", http.StatusInternalServerError, types.ErrCodeUpstreamUnavailable},
		{"rate limited", http.StatusTooManyRequests, types.ErrCodeUpstreamRateLimited},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
			resp, err := newTestClient(fastPolicy(2)).Do(req)

			assert.Nil(t, resp)
			assert.True(t, types.HasCode(err, tt.code), "got %v", err)
			assert.Equal(t, int32(3), calls.Load())
		})
	}
}

func TestBaseClient_Do_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	resp, err := newTestClient(fastPolicy(3)).Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, int32(1), calls.Load())
}

func TestBaseClient_Do_ReplaysBody(t *testing.T) {
	var bodies []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		bodies = append(bodies, string(b))
		if len(bodies) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodPost, srv.URL, strings.NewReader(`{"n":1}`))
	resp, err := newTestClient(fastPolicy(1)).Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, []string{`{"n":1}`, `{"n":1}`}, bodies)
}

func TestBaseClient_Do_HonorsRetryAfter(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "2")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	var waits []time.Duration
	tracking := func(_ context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}

	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	resp, err := newTestClient(fastPolicy(1), WithSleepFunc(tracking)).Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, []time.Duration{2 * time.Second}, waits)
}

func TestBaseClient_Do_RetryAfterCappedByMaxWait(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "120")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	var waits []time.Duration
	tracking := func(_ context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}

	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	_, err := newTestClient(fastPolicy(1), WithSleepFunc(tracking)).Do(req)
	require.Error(t, err)

	assert.Equal(t, []time.Duration{5 * time.Second}, waits)
}

func TestBaseClient_Do_ContextCancelledDuringBackoff(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cancelled := func(context.Context, time.Duration) error { return context.Canceled }

	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	_, err := newTestClient(fastPolicy(3), WithSleepFunc(cancelled)).Do(req)

	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestBaseClient_Do_BreakerOpens(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	breaker := NewBreaker("trip-test", BreakerSettings{ConsecutiveFailures: 2, OpenTimeout: time.Minute, Interval: time.Minute})
	client := NewBaseClientWithBreaker(&http.Client{}, breaker, fastPolicy(0), "", WithSleepFunc(noopSleep))

	for i := 0; i < 3; i++ {
		req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
		_, err := client.Do(req)
		require.Error(t, err)
	}
	require.Equal(t, int32(3), calls.Load())

	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	_, err := client.Do(req)

	assert.True(t, types.HasCode(err, types.ErrCodeUpstreamRateLimited), "got %v", err)
	assert.Equal(t, int32(3), calls.Load(), "open breaker must not reach the server")
}

func TestBaseClient_Do_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	req, _ := http.NewRequest(http.MethodGet, url, nil)
	_, err := newTestClient(fastPolicy(1)).Do(req)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeInternalUnexpected, appErr.Code)
}

func TestBaseClient_ComputeBackoff_Bounds(t *testing.T) {
	c := newTestClient(RetryPolicy{MaxRetries: 5, MinWait: 100 * time.Millisecond, MaxWait: time.Second})

	assert.Equal(t, 100*time.Millisecond, c.computeBackoff(0, nil))
	for attempt := 1; attempt < 8; attempt++ {
		d := c.computeBackoff(attempt, nil)
		assert.GreaterOrEqual(t, d, 100*time.Millisecond)
		assert.LessOrEqual(t, d, time.Second)
	}
}
