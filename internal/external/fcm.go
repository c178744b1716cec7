package external

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

	"airwatch/internal/types"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// fcmAPIBase is the default FCM HTTP v1 endpoint.
// Overridable in tests via FCMClientConfig.BaseURL.
const fcmAPIBase = "https://fcm.googleapis.com"

// FCMScope is the OAuth2 scope required by the FCM HTTP v1 API.
const FCMScope = "https://www.googleapis.com/auth/firebase.messaging"

// FCMClientConfig holds the configuration for creating an FCMClient.
type FCMClientConfig struct {
	ProjectID   string
	BaseURL     string // Override for testing; defaults to fcmAPIBase
	TokenSource oauth2.TokenSource
	Logger      *slog.Logger
}

// FCMClient delivers push notifications through the FCM HTTP v1 API. Requests
// go through BaseClient, so 429 and 5xx responses are retried and a
// misbehaving FCM trips the breaker instead of stalling every alert batch.
type FCMClient struct {
	base        *BaseClient
	projectID   string
	baseURL     string
	tokenSource oauth2.TokenSource
	logger      *slog.Logger
}

// NewFCMClient creates an FCMClient. The caller bounds each send through the
// context; httpClient's own timeout is a backstop.
func NewFCMClient(httpClient *http.Client, cfg FCMClientConfig) *FCMClient {
	base := NewBaseClient(
		httpClient,
		"fcm",
		RetryPolicy{
			MaxRetries: 2,
			MinWait:    500 * time.Millisecond,
			MaxWait:    5 * time.Second,
		},
		"AirWatch/1.0",
	)
	return NewFCMClientWithBase(base, cfg)
}

// NewFCMClientWithBase creates an FCMClient around a pre-configured
// BaseClient.
func NewFCMClientWithBase(base *BaseClient, cfg FCMClientConfig) *FCMClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = fcmAPIBase
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &FCMClient{
		base:        base,
		projectID:   cfg.ProjectID,
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		tokenSource: cfg.TokenSource,
		logger:      logger,
	}
}

// NewFCMTokenSource builds a token source from a service account JSON key.
func NewFCMTokenSource(ctx context.Context, credentialsJSON []byte) (oauth2.TokenSource, error) {
	creds, err := google.CredentialsFromJSON(ctx, credentialsJSON, FCMScope)
	if err != nil {
		return nil, types.NewAppError(
			types.ErrCodeInternalConfigInvariant,
			"invalid FCM service account credentials",
			err,
		)
	}
	return creds.TokenSource, nil
}

// ---------------------------------------------------------------------------
// Send
// ---------------------------------------------------------------------------

// Send delivers msg to a single device token. It returns nil on success, an
// AppError with types.ErrCodePushUnregistered when FCM reports the token as
// gone, and any other AppError for failures worth retrying on a later cycle.
func (c *FCMClient) Send(ctx context.Context, token string, msg types.PushMessage) error {
	const op = "fcm send"

	body, err := json.Marshal(fcmSendRequest{Message: buildFCMMessage(token, msg)})
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, op+": failed to marshal payload", err)
	}

	endpoint := fmt.Sprintf("%s/v1/projects/%s/messages:send", c.baseURL, url.PathEscape(c.projectID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, op+": failed to build request", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=UTF-8")

	if err := c.authorize(req); err != nil {
		return err
	}

	resp, err := c.base.Do(req)
	if err != nil {
		return c.wrapFCMError(op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		io.Copy(io.Discard, resp.Body)
		return nil
	}

	return c.handleErrorResponse(resp, op)
}

// ---------------------------------------------------------------------------
// Payload
// ---------------------------------------------------------------------------

type fcmSendRequest struct {
	Message fcmMessage `json:"message"`
}

type fcmMessage struct {
	Token        string            `json:"token"`
	Notification fcmNotification   `json:"notification"`
	Data         map[string]string `json:"data,omitempty"`
	Android      *fcmAndroidConfig `json:"android,omitempty"`
}

type fcmNotification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type fcmAndroidConfig struct {
	Priority     string                  `json:"priority,omitempty"`
	Notification *fcmAndroidNotification `json:"notification,omitempty"`
}

type fcmAndroidNotification struct {
	Icon      string `json:"icon,omitempty"`
	Color     string `json:"color,omitempty"`
	Sound     string `json:"sound,omitempty"`
	ChannelID string `json:"channel_id,omitempty"`
}

func buildFCMMessage(token string, msg types.PushMessage) fcmMessage {
	m := fcmMessage{
		Token:        token,
		Notification: fcmNotification{Title: msg.Title, Body: msg.Body},
		Data:         msg.Data,
	}

	a := msg.Android
	if a != (types.AndroidOptions{}) {
		m.Android = &fcmAndroidConfig{Priority: strings.ToLower(a.Priority)}
		if a.Icon != "" || a.Color != "" || a.Sound != "" || a.ChannelID != "" {
			m.Android.Notification = &fcmAndroidNotification{
				Icon:      a.Icon,
				Color:     a.Color,
				Sound:     a.Sound,
				ChannelID: a.ChannelID,
			}
		}
	}
	return m
}

// ---------------------------------------------------------------------------
// HTTP Helpers
// ---------------------------------------------------------------------------

func (c *FCMClient) authorize(req *http.Request) error {
	if c.tokenSource == nil {
		return types.NewAppError(types.ErrCodeInternalConfigInvariant, "fcm send: no token source configured", nil)
	}
	tok, err := c.tokenSource.Token()
	if err != nil {
		return types.NewAppError(types.ErrCodeUpstreamPush, "fcm send: failed to obtain access token", err)
	}
	tok.SetAuthHeader(req)
	return nil
}

// ---------------------------------------------------------------------------
// Error Handling
// ---------------------------------------------------------------------------

// fcmErrorResponse is the google.rpc.Status body FCM returns on failure.
type fcmErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
		Details []struct {
			Type      string `json:"@type"`
			ErrorCode string `json:"errorCode"`
		} `json:"details"`
	} `json:"error"`
}

// fcmUnregistered is the FcmError code for an app instance that is no longer
// registered.
const fcmUnregistered = "UNREGISTERED"

// handleErrorResponse maps a non-2xx FCM response to an AppError:
//   - 404 or errorCode UNREGISTERED -> types.ErrCodePushUnregistered
//   - anything else -> types.ErrCodeUpstreamPush
func (c *FCMClient) handleErrorResponse(resp *http.Response, operation string) error {
	body, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return types.NewAppError(
			types.ErrCodeUpstreamPush,
			fmt.Sprintf("%s: FCM returned status %d and response body was unreadable", operation, resp.StatusCode),
			readErr,
		)
	}

	var fcmErr fcmErrorResponse
	message := string(body)
	fcmCode := ""
	if err := json.Unmarshal(body, &fcmErr); err == nil && fcmErr.Error.Message != "" {
		message = fcmErr.Error.Message
		for _, d := range fcmErr.Error.Details {
			if d.ErrorCode != "" {
				fcmCode = d.ErrorCode
				break
			}
		}
	}

	if resp.StatusCode == http.StatusNotFound || fcmCode == fcmUnregistered {
		return types.NewAppErrorWithDetails(
			types.ErrCodePushUnregistered,
			fmt.Sprintf("%s: device token is no longer registered", operation),
			nil,
			map[string]any{"status": resp.StatusCode, "fcm_error": fcmCode},
		)
	}

	return types.NewAppErrorWithDetails(
		types.ErrCodeUpstreamPush,
		fmt.Sprintf("%s: FCM error (%d): %s", operation, resp.StatusCode, message),
		nil,
		map[string]any{"status": resp.StatusCode, "fcm_error": fcmCode},
	)
}

// wrapFCMError wraps a BaseClient transport error with context.
func (c *FCMClient) wrapFCMError(operation string, err error) error {
	if _, ok := err.(*types.AppError); ok {
		return err
	}
	return types.NewAppError(
		types.ErrCodeUpstreamPush,
		fmt.Sprintf("%s: FCM request failed: %v", operation, err),
		err,
	)
}
