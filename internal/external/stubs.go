package external

import (
	"context"
	"log/slog"
	"sync"

	"airwatch/internal/types"
)

// ---------------------------------------------------------------------------
// Stub Implementations
//
// Stubs let the service boot locally and in tests without FCM credentials.
// They log every call and report success.
// ---------------------------------------------------------------------------

// StubPushProvider implements PushProvider by logging the message it was
// asked to send. Selected with PUSH_PROVIDER=stub.
type StubPushProvider struct {
	logger *slog.Logger

	mu   sync.Mutex
	sent int
}

// NewStubPushProvider creates a new StubPushProvider.
func NewStubPushProvider(logger *slog.Logger) *StubPushProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &StubPushProvider{logger: logger}
}

func (s *StubPushProvider) Send(ctx context.Context, token string, msg types.PushMessage) error {
	s.mu.Lock()
	s.sent++
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "stub: Send called",
		"token_prefix", tokenPrefix(token),
		"title", msg.Title,
		"body", msg.Body,
		"node_id", msg.Data["node_id"],
	)
	return nil
}

// Sent returns how many messages the stub has accepted.
func (s *StubPushProvider) Sent() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sent
}

// tokenPrefix keeps device tokens out of the logs.
func tokenPrefix(token string) string {
	const n = 20
	if len(token) <= n {
		return token
	}
	return token[:n] + "..."
}
