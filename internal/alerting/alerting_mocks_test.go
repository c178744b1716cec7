package alerting

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"airwatch/internal/types"
)

// fakeSender records sends and returns the error configured per token.
type fakeSender struct {
	mu     sync.Mutex
	errs   map[string]error
	sent   []string
	msgs   []types.PushMessage
	onSend func(ctx context.Context, token string)
}

func (f *fakeSender) Send(ctx context.Context, token string, msg types.PushMessage) error {
	if f.onSend != nil {
		f.onSend(ctx, token)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, token)
	f.msgs = append(f.msgs, msg)
	return f.errs[token]
}

func (f *fakeSender) sentTokens() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

// mockTokenStore is a testify mock for TokenStore.
type mockTokenStore struct {
	mock.Mock
}

func (m *mockTokenStore) List(ctx context.Context) ([]types.PushToken, error) {
	args := m.Called(ctx)
	if v := args.Get(0); v != nil {
		return v.([]types.PushToken), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockTokenStore) Upsert(ctx context.Context, token, userID string) error {
	return m.Called(ctx, token, userID).Error(0)
}

func (m *mockTokenStore) Delete(ctx context.Context, token string) (bool, error) {
	args := m.Called(ctx, token)
	return args.Bool(0), args.Error(1)
}

// fakePublisher records alert events.
type fakePublisher struct {
	mu     sync.Mutex
	events []AlertEvent
	err    error
}

func (p *fakePublisher) PublishAlert(_ context.Context, e AlertEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

// countingMetrics counts alert and delivery outcomes.
type countingMetrics struct {
	mu         sync.Mutex
	alerts     map[string]int
	deliveries map[string]int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{alerts: map[string]int{}, deliveries: map[string]int{}}
}

func (c *countingMetrics) RecordAlert(_ context.Context, outcome string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.alerts[outcome]++
}

func (c *countingMetrics) RecordDelivery(_ context.Context, outcome string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deliveries[outcome]++
}

func registryWith(tokens ...string) *Registry {
	r := NewRegistry(nil, nil)
	for _, t := range tokens {
		_ = r.Register(context.Background(), t, "user")
	}
	return r
}
