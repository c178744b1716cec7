// Package alerting decides whether an evaluated node warrants a push alert,
// deduplicates alerts per (node, tier) within a cooldown window, and fans a
// notification out to every registered device token.
package alerting

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"airwatch/internal/aqi"
	"airwatch/internal/telemetry"
	"airwatch/internal/types"
)

// Defaults applied by NewDispatcher.
const (
	DefaultCooldown    = 30 * time.Minute
	DefaultSendTimeout = 10 * time.Second
)

// PushSender delivers one message to one device token. It returns an
// AppError with ErrCodePushUnregistered when the token is permanently
// invalid; any other error is treated as transient.
type PushSender interface {
	Send(ctx context.Context, token string, msg types.PushMessage) error
}

// AlertEvent describes a dispatched alert for downstream consumers.
type AlertEvent struct {
	AlertID    string    `json:"alert_id"`
	NodeID     string    `json:"node_id"`
	Tier       aqi.Tier  `json:"level"`
	AQI        int       `json:"aqi"`
	PM25       float64   `json:"pm2_5"`
	PM10       float64   `json:"pm10"`
	Recipients int       `json:"recipients"`
	Delivered  int       `json:"delivered"`
	SentAt     time.Time `json:"sent_at"`
}

// EventPublisher receives an AlertEvent after a successful dispatch.
type EventPublisher interface {
	PublishAlert(ctx context.Context, event AlertEvent) error
}

// MetricsRecorder is the subset of telemetry the dispatcher emits.
type MetricsRecorder interface {
	RecordAlert(ctx context.Context, outcome string)
	RecordDelivery(ctx context.Context, outcome string)
}

// Config holds the dispatcher's collaborators. Sender and Registry are required.
type Config struct {
	Sender      PushSender
	Registry    *Registry
	Cooldown    time.Duration
	SendTimeout time.Duration
	Publisher   EventPublisher  // optional
	Metrics     MetricsRecorder // optional
	Logger      *slog.Logger
	NewID       func() string
}

// Dispatcher implements the alert decision and fan-out.
type Dispatcher struct {
	sender      PushSender
	registry    *Registry
	cooldowns   *CooldownTracker
	sendTimeout time.Duration
	publisher   EventPublisher
	metrics     MetricsRecorder
	logger      *slog.Logger
	newID       func() string
}

// NewDispatcher builds a Dispatcher, applying defaults for zero durations.
func NewDispatcher(cfg Config) *Dispatcher {
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultCooldown
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = DefaultSendTimeout
	}
	if cfg.Metrics == nil {
		cfg.Metrics = telemetry.Nop{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.NewID == nil {
		cfg.NewID = uuid.NewString
	}
	return &Dispatcher{
		sender:      cfg.Sender,
		registry:    cfg.Registry,
		cooldowns:   NewCooldownTracker(cfg.Cooldown),
		sendTimeout: cfg.SendTimeout,
		publisher:   cfg.Publisher,
		metrics:     cfg.Metrics,
		logger:      cfg.Logger,
		newID:       cfg.NewID,
	}
}

// EvaluateAndMaybeAlert sends an alert for (nodeID, tier) unless the tier is
// not alert-eligible, the key is cooling down, or another batch for the key
// is in flight. It returns true iff at least one recipient accepted the
// message, in which case the cooldown entry is recorded at now.
//
// Unregistered tokens are pruned from the registry. Other send failures are
// logged and do not affect remaining recipients. Cancelling ctx stops the
// batch before the next recipient.
func (d *Dispatcher) EvaluateAndMaybeAlert(ctx context.Context, nodeID string, tier aqi.Tier, m Measurement, now time.Time) bool {
	if !tier.AlertEligible() {
		return false
	}
	if !d.cooldowns.Acquire(nodeID, tier, now) {
		d.logger.DebugContext(ctx, "alert suppressed", "node_id", nodeID, "level", string(tier))
		d.metrics.RecordAlert(ctx, telemetry.AlertSuppressed)
		return false
	}

	tokens := d.registry.Tokens()
	if len(tokens) == 0 {
		d.cooldowns.Release(nodeID, tier, now, false)
		d.logger.WarnContext(ctx, "no push tokens registered", "node_id", nodeID, "level", string(tier))
		d.metrics.RecordAlert(ctx, telemetry.AlertFailed)
		return false
	}

	alertID := d.newID()
	msg := BuildMessage(alertID, nodeID, tier, m, now)
	delivered := d.fanOut(ctx, nodeID, tokens, msg)

	sent := delivered > 0
	d.cooldowns.Release(nodeID, tier, now, sent)
	if !sent {
		d.logger.ErrorContext(ctx, "alert not delivered to any recipient",
			"node_id", nodeID,
			"level", string(tier),
			"recipients", len(tokens),
		)
		d.metrics.RecordAlert(ctx, telemetry.AlertFailed)
		return false
	}

	d.logger.InfoContext(ctx, "alert dispatched",
		"alert_id", alertID,
		"node_id", nodeID,
		"level", string(tier),
		"aqi", m.AQI,
		"delivered", delivered,
		"recipients", len(tokens),
	)
	d.metrics.RecordAlert(ctx, telemetry.AlertDispatched)
	d.publish(ctx, AlertEvent{
		AlertID:    alertID,
		NodeID:     nodeID,
		Tier:       tier,
		AQI:        m.AQI,
		PM25:       m.PM25,
		PM10:       m.PM10,
		Recipients: len(tokens),
		Delivered:  delivered,
		SentAt:     now,
	})
	return true
}

// fanOut sends msg to each token in order and returns the success count.
func (d *Dispatcher) fanOut(ctx context.Context, nodeID string, tokens []string, msg types.PushMessage) int {
	delivered := 0
	for i, token := range tokens {
		if ctx.Err() != nil {
			d.logger.WarnContext(ctx, "alert batch aborted",
				"node_id", nodeID,
				"skipped", len(tokens)-i,
				"error", ctx.Err().Error(),
			)
			for range tokens[i:] {
				d.metrics.RecordDelivery(ctx, telemetry.OutcomeSkipped)
			}
			break
		}

		err := d.sendOne(ctx, token, msg)
		switch {
		case err == nil:
			delivered++
			d.metrics.RecordDelivery(ctx, telemetry.OutcomeSuccess)
		case types.HasCode(err, types.ErrCodePushUnregistered):
			d.metrics.RecordDelivery(ctx, telemetry.OutcomeUnregistered)
			d.logger.WarnContext(ctx, "push token unregistered, removing", "token", TokenPrefix(token))
			if _, rmErr := d.registry.Remove(ctx, token); rmErr != nil {
				d.logger.ErrorContext(ctx, "failed to remove push token",
					"token", TokenPrefix(token),
					"error", rmErr.Error(),
				)
			}
		default:
			d.metrics.RecordDelivery(ctx, telemetry.OutcomeFailed)
			d.logger.ErrorContext(ctx, "push send failed",
				"node_id", nodeID,
				"token", TokenPrefix(token),
				"error", err.Error(),
			)
		}
	}
	return delivered
}

func (d *Dispatcher) sendOne(ctx context.Context, token string, msg types.PushMessage) error {
	sendCtx, cancel := context.WithTimeout(ctx, d.sendTimeout)
	defer cancel()
	return d.sender.Send(sendCtx, token, msg)
}

func (d *Dispatcher) publish(ctx context.Context, event AlertEvent) {
	if d.publisher == nil {
		return
	}
	if err := d.publisher.PublishAlert(ctx, event); err != nil {
		d.logger.ErrorContext(ctx, "failed to publish alert event",
			"alert_id", event.AlertID,
			"error", err.Error(),
		)
	}
}

// History returns the cooldown entries recorded for nodeID.
func (d *Dispatcher) History(nodeID string) []CooldownEntry {
	return d.cooldowns.History(nodeID)
}

// LastSent returns the cooldown entry for (nodeID, tier), if any.
func (d *Dispatcher) LastSent(nodeID string, tier aqi.Tier) (CooldownEntry, bool) {
	return d.cooldowns.Lookup(nodeID, tier)
}
