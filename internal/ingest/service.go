package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"airwatch/internal/aqi"
	"airwatch/internal/core"
	"airwatch/internal/telemetry"
	"airwatch/internal/types"
)

// Sensor limits applied when Config leaves them at zero.
const (
	DefaultPM25Max = 500.0
	DefaultPM10Max = 600.0
)

// MaxClockSkew is how far ahead of the service clock a reported timestamp may
// run before it is replaced with the receive time.
const MaxClockSkew = 5 * time.Minute

// ReadingStore persists readings. Duplicate (node, time) rows are ignored.
type ReadingStore interface {
	InsertMany(ctx context.Context, readings []types.Reading) error
}

// LatestCache remembers the newest reading per node.
type LatestCache interface {
	Put(ctx context.Context, rd types.Reading) error
}

// MetricsRecorder is the subset of telemetry ingestion emits.
type MetricsRecorder interface {
	RecordIngest(ctx context.Context, accepted, rejected int)
}

// Config holds the service's collaborators. Store is required.
type Config struct {
	Store     ReadingStore
	Cache     LatestCache // optional
	Validator *core.Validator
	Clock     types.Clock
	PM25Max   float64
	PM10Max   float64
	Metrics   MetricsRecorder
	Logger    *slog.Logger
}

// Service ingests sensor payloads.
type Service struct {
	store     ReadingStore
	cache     LatestCache
	validator *core.Validator
	clock     types.Clock
	pm25Max   float64
	pm10Max   float64
	metrics   MetricsRecorder
	logger    *slog.Logger
}

// NewService builds a Service, filling defaults for optional fields.
func NewService(cfg Config) *Service {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Validator == nil {
		cfg.Validator = core.NewValidator(cfg.Logger)
	}
	if cfg.Clock == nil {
		cfg.Clock = types.RealClock{}
	}
	if cfg.PM25Max <= 0 {
		cfg.PM25Max = DefaultPM25Max
	}
	if cfg.PM10Max <= 0 {
		cfg.PM10Max = DefaultPM10Max
	}
	if cfg.Metrics == nil {
		cfg.Metrics = telemetry.Nop{}
	}
	return &Service{
		store:     cfg.Store,
		cache:     cfg.Cache,
		validator: cfg.Validator,
		clock:     cfg.Clock,
		pm25Max:   cfg.PM25Max,
		pm10Max:   cfg.PM10Max,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger,
	}
}

// Rejection describes a payload that failed validation.
type Rejection struct {
	Index  int    `json:"index"`
	NodeID string `json:"node_id,omitempty"`
	Error  error  `json:"-"`
	Reason string `json:"reason"`
}

// Result summarizes one Ingest call.
type Result struct {
	Accepted []types.Reading `json:"accepted"`
	Rejected []Rejection     `json:"rejected,omitempty"`
}

// Ingest validates and normalizes payloads and stores the valid ones in a
// single write. Invalid payloads are reported in Result.Rejected and do not
// block the others.
//
// It returns a validation AppError when no payload is valid and an
// ErrCodeInternalDB AppError when the write fails; the latter is worth
// retrying, the former never is.
func (s *Service) Ingest(ctx context.Context, payloads []Payload) (Result, error) {
	var res Result

	for i, p := range payloads {
		if err := s.validator.ValidateStruct(p, types.ErrCodeValidationReading); err != nil {
			res.Rejected = append(res.Rejected, Rejection{Index: i, NodeID: p.NodeID, Error: err, Reason: err.Error()})
			continue
		}
		res.Accepted = append(res.Accepted, s.normalize(ctx, p))
	}

	if len(res.Accepted) == 0 {
		s.metrics.RecordIngest(ctx, 0, len(res.Rejected))
		if len(res.Rejected) == 1 {
			return res, res.Rejected[0].Error
		}
		return res, types.NewAppErrorWithDetails(types.ErrCodeValidationReading,
			fmt.Sprintf("all %d readings are invalid", len(res.Rejected)), nil,
			map[string]any{"rejected": len(res.Rejected)})
	}

	if err := s.store.InsertMany(ctx, res.Accepted); err != nil {
		return res, fmt.Errorf("storing %d readings: %w", len(res.Accepted), err)
	}
	s.metrics.RecordIngest(ctx, len(res.Accepted), len(res.Rejected))

	if s.cache != nil {
		for _, rd := range res.Accepted {
			if err := s.cache.Put(ctx, rd); err != nil {
				s.logger.WarnContext(ctx, "latest-reading cache update failed",
					"node_id", rd.NodeID,
					"error", err,
				)
			}
		}
	}

	for _, r := range res.Rejected {
		s.logger.WarnContext(ctx, "reading rejected", "index", r.Index, "node_id", r.NodeID, "error", r.Error)
	}
	s.logger.DebugContext(ctx, "readings ingested", "accepted", len(res.Accepted), "rejected", len(res.Rejected))

	return res, nil
}

// HandleMessage implements queue.MessageHandler.
func (s *Service) HandleMessage(ctx context.Context, body []byte) error {
	payloads, err := Decode(body)
	if err != nil {
		s.metrics.RecordIngest(ctx, 0, 1)
		return err
	}
	_, err = s.Ingest(ctx, payloads)
	return err
}

// normalize clamps concentrations to the sensor range and fills AQI and
// timestamp. The payload must already be valid.
func (s *Service) normalize(ctx context.Context, p Payload) types.Reading {
	pm25 := *p.PM25
	if pm25 > s.pm25Max {
		s.logger.DebugContext(ctx, "pm2_5 clamped", "node_id", p.NodeID, "value", pm25, "max", s.pm25Max)
		pm25 = s.pm25Max
	}
	pm10 := p.PM10
	if pm10 > s.pm10Max {
		s.logger.DebugContext(ctx, "pm10 clamped", "node_id", p.NodeID, "value", pm10, "max", s.pm10Max)
		pm10 = s.pm10Max
	}

	index := aqi.Compute(pm25)
	if p.AQI != nil {
		index = *p.AQI
	}

	now := s.clock.Now()
	recordedAt := now
	if p.Timestamp != nil && !p.Timestamp.IsZero() {
		recordedAt = *p.Timestamp
	}
	if recordedAt.After(now.Add(MaxClockSkew)) {
		s.logger.DebugContext(ctx, "future timestamp clamped", "node_id", p.NodeID, "timestamp", recordedAt, "now", now)
		recordedAt = now
	}

	return types.Reading{
		NodeID:     p.NodeID,
		RecordedAt: recordedAt.UTC(),
		PM1:        p.PM1,
		PM25:       pm25,
		PM10:       pm10,
		AQI:        &index,
	}
}
