package external

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"airwatch/internal/config"
)

// ---------------------------------------------------------------------------
// Provider Registry
//
// Builds the push provider from configuration. Local runs and
// PUSH_PROVIDER=stub get the logging stub; everything else gets the real FCM
// client with its own HTTP timeout.
// ---------------------------------------------------------------------------

// fcmHTTPTimeout backstops the per-send context deadline.
const fcmHTTPTimeout = 15 * time.Second

// NewPushProvider returns the PushProvider selected by cfg.Push.
func NewPushProvider(ctx context.Context, cfg *config.Config, logger *slog.Logger) (PushProvider, error) {
	if logger == nil {
		logger = slog.Default()
	}

	useStub := cfg.Push.Provider == config.PushProviderStub ||
		(cfg.Environment == "local" && !cfg.Push.FCMCredentialsJSON.IsSet())

	if useStub {
		logger.Info("initializing push provider in STUB mode",
			"provider", cfg.Push.Provider,
			"environment", cfg.Environment,
		)
		return NewStubPushProvider(logger.With("mode", "stub")), nil
	}

	ts, err := NewFCMTokenSource(ctx, []byte(cfg.Push.FCMCredentialsJSON.Unmask()))
	if err != nil {
		return nil, fmt.Errorf("building FCM token source: %w", err)
	}

	logger.Info("initializing push provider",
		"provider", config.PushProviderFCM,
		"project_id", cfg.Push.FCMProjectID,
	)
	return NewFCMClient(&http.Client{Timeout: fcmHTTPTimeout}, FCMClientConfig{
		ProjectID:   cfg.Push.FCMProjectID,
		TokenSource: ts,
		Logger:      logger.With("client", "fcm"),
	}), nil
}
