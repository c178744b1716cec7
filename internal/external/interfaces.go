package external

import (
	"context"

	"airwatch/internal/types"
)

// PushProvider delivers a single notification to a single device token.
//
// A token FCM no longer recognizes yields an AppError with
// types.ErrCodePushUnregistered; callers prune the token on that code and
// treat every other error as transient.
type PushProvider interface {
	Send(ctx context.Context, token string, msg types.PushMessage) error
}

var (
	_ PushProvider = (*FCMClient)(nil)
	_ PushProvider = (*StubPushProvider)(nil)
)
