package core

import (
	"context"
	"sync"
	"time"
)

// --- MockKeyVerifier ---

// MockKeyVerifier implements KeyVerifier by comparing against a fixed key.
//
//	mock := &MockKeyVerifier{Key: "secret"}
//	ok, _ := mock.Verify("secret") // true
type MockKeyVerifier struct {
	Key string
	Err error

	mu    sync.Mutex
	Calls []string
}

// Verify implements KeyVerifier.
func (m *MockKeyVerifier) Verify(key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, key)
	if m.Err != nil {
		return false, m.Err
	}
	return key == m.Key, nil
}

// --- MockRateLimitStore ---

// MockRateLimitStore implements RateLimitStore with a canned result.
// IncrementAndCheckFunc, when set, takes precedence over Result and Err.
type MockRateLimitStore struct {
	Result RateLimitResult
	Err    error

	IncrementAndCheckFunc func(ctx context.Context, key string, limit int, window time.Duration) (RateLimitResult, error)

	mu   sync.Mutex
	Keys []string
}

// IncrementAndCheck implements RateLimitStore.
func (m *MockRateLimitStore) IncrementAndCheck(ctx context.Context, key string, limit int, window time.Duration) (RateLimitResult, error) {
	m.mu.Lock()
	m.Keys = append(m.Keys, key)
	m.mu.Unlock()

	if m.IncrementAndCheckFunc != nil {
		return m.IncrementAndCheckFunc(ctx, key, limit, window)
	}
	return m.Result, m.Err
}

// --- MockMetricsCollector ---

// RecordedRequest is one call captured by MockMetricsCollector.
type RecordedRequest struct {
	Method   string
	Endpoint string
	Status   string
}

// MockMetricsCollector implements MetricsCollector and records every call.
type MockMetricsCollector struct {
	mu       sync.Mutex
	Requests []RecordedRequest
}

// RecordRequest implements MetricsCollector.
func (m *MockMetricsCollector) RecordRequest(method, endpoint, status string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Requests = append(m.Requests, RecordedRequest{Method: method, Endpoint: endpoint, Status: status})
}

// Recorded returns a copy of the captured calls.
func (m *MockMetricsCollector) Recorded() []RecordedRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]RecordedRequest, len(m.Requests))
	copy(out, m.Requests)
	return out
}
