// Package airquality answers read-path queries: current status, forecasts,
// anomaly reports, history and cross-node comparison. Queries run against the
// models the evaluation cycle published for a node and fall back to fitting
// from storage when the node has not been evaluated in this process.
package airquality

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"sort"
	"time"

	"airwatch/internal/alerting"
	"airwatch/internal/analytics"
	"airwatch/internal/aqi"
	"airwatch/internal/scheduler"
	"airwatch/internal/types"
)

// Query windows and limits.
const (
	DefaultStatusMaxAge  = 10 * time.Minute
	DefaultHistoryWindow = 168 * time.Hour
	DefaultQueryHours    = 24

	HistoryBucket    = 5 * time.Minute
	CompareBucket    = 30 * time.Minute
	NodesWindow      = 24 * time.Hour
	MaxAnomalyPoints = 20
)

const (
	forecastLabelLayout = "15:04 02/01"
	bucketLabelLayout   = "15:04"
)

// ReadingStore is the slice of reading storage the queries use.
type ReadingStore interface {
	ActiveNodes(ctx context.Context, since time.Time) ([]string, error)
	HourlyPM25(ctx context.Context, nodeID string, since time.Time) ([]float64, error)
	PM25Points(ctx context.Context, nodeID string, since time.Time) ([]types.PM25Point, error)
	Buckets(ctx context.Context, nodeID string, since time.Time, width time.Duration) ([]types.ReadingBucket, error)
	BucketsAllNodes(ctx context.Context, since time.Time, width time.Duration) ([]types.ReadingBucket, error)
}

// LatestSource returns the newest reading for a node recorded after since.
type LatestSource interface {
	Latest(ctx context.Context, nodeID string, since time.Time) (types.Reading, error)
}

// SnapshotSource exposes the evaluation cycle's published snapshots.
type SnapshotSource interface {
	Snapshot(nodeID string) (scheduler.NodeSnapshot, bool)
}

// AlertHistory exposes the dispatcher's cooldown records.
type AlertHistory interface {
	History(nodeID string) []alerting.CooldownEntry
}

// Config holds the service's collaborators.
type Config struct {
	Readings  ReadingStore
	Latest    LatestSource
	Snapshots SnapshotSource // optional
	Alerts    AlertHistory   // optional

	StatusMaxAge  time.Duration
	HistoryWindow time.Duration
	Location      *time.Location
	Clock         types.Clock
	Logger        *slog.Logger
}

// Service implements the read-path queries.
type Service struct {
	readings      ReadingStore
	latest        LatestSource
	snapshots     SnapshotSource
	alerts        AlertHistory
	statusMaxAge  time.Duration
	historyWindow time.Duration
	loc           *time.Location
	clock         types.Clock
	logger        *slog.Logger
}

// NewService creates a Service, filling defaults for optional fields.
func NewService(cfg Config) *Service {
	if cfg.StatusMaxAge <= 0 {
		cfg.StatusMaxAge = DefaultStatusMaxAge
	}
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = DefaultHistoryWindow
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Clock == nil {
		cfg.Clock = types.RealClock{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Service{
		readings:      cfg.Readings,
		latest:        cfg.Latest,
		snapshots:     cfg.Snapshots,
		alerts:        cfg.Alerts,
		statusMaxAge:  cfg.StatusMaxAge,
		historyWindow: cfg.HistoryWindow,
		loc:           cfg.Location,
		clock:         cfg.Clock,
		logger:        cfg.Logger,
	}
}

// CurrentStatus returns the latest reading of nodeID with its AQI, tier,
// guidance, anomaly verdict and alert history.
func (s *Service) CurrentStatus(ctx context.Context, nodeID string) (*Status, error) {
	if err := types.ValidateNodeID(nodeID); err != nil {
		return nil, err
	}
	now := s.clock.Now()

	rd, err := s.latest.Latest(ctx, nodeID, now.Add(-s.statusMaxAge))
	if err != nil {
		return nil, err
	}

	index := aqi.Compute(rd.PM25)
	tier := aqi.Classify(index)

	// Without a snapshot there is no fitted detector and the reading is
	// reported as normal.
	var flag AnomalyFlag
	if snap, ok := s.snapshot(nodeID); ok {
		flag.IsAnomaly, flag.Score = snap.Detector.Detect(rd.PM25)
	}
	flag.Message = NormalMessage
	if flag.IsAnomaly {
		flag.Message = AnomalyMessage
	}

	alerts := []alerting.CooldownEntry{}
	if s.alerts != nil {
		alerts = append(alerts, s.alerts.History(nodeID)...)
	}

	return &Status{
		NodeID:     nodeID,
		Timestamp:  now.In(s.loc),
		RecordedAt: rd.RecordedAt.In(s.loc),
		PM1:        analytics.Round1(rd.PM1),
		PM25:       analytics.Round1(rd.PM25),
		PM10:       analytics.Round1(rd.PM10),
		AQI:        index,
		Level:      tier,
		LevelInfo:  aqi.Info(tier),
		Anomaly:    flag,
		Alerts:     alerts,
		Standards:  aqi.Standards(),
	}, nil
}

// Forecast predicts PM2.5 for the next hours hours. It fails with
// ErrCodeInsufficientData when fewer than a day of hourly samples exist.
func (s *Service) Forecast(ctx context.Context, nodeID string, hours int) (*Forecast, error) {
	if err := validateQuery(nodeID, hours); err != nil {
		return nil, err
	}

	m, err := s.models(ctx, nodeID)
	if err != nil {
		return nil, err
	}

	start := s.clock.Now().In(s.loc)
	predictions := m.forecaster.Predict(start, hours)
	if predictions == nil {
		return nil, types.NewAppErrorWithDetails(types.ErrCodeInsufficientData,
			fmt.Sprintf("at least %d hours of history are needed to forecast", analytics.Lookback), nil,
			map[string]any{"required": analytics.Lookback, "available": m.forecaster.Len()})
	}

	points := make([]ForecastPoint, len(predictions))
	maxV, minV := math.Inf(-1), math.Inf(1)
	for i, p := range predictions {
		at := start.Add(time.Duration(i+1) * time.Hour)
		index := aqi.Compute(p)
		info := aqi.Info(aqi.Classify(index))
		points[i] = ForecastPoint{
			Time:      at,
			TimeLabel: at.Format(forecastLabelLayout),
			Hour:      i + 1,
			PM25:      p,
			AQI:       index,
			Level:     info.Tier,
			LevelName: info.Label,
			Color:     info.Color,
		}
		maxV = math.Max(maxV, p)
		minV = math.Min(minV, p)
	}

	return &Forecast{
		NodeID:      nodeID,
		Model:       ForecastModel,
		Hours:       hours,
		GeneratedAt: start,
		Points:      points,
		Summary: ForecastSummary{
			AvgPM25: analytics.Round1(analytics.Mean(predictions)),
			MaxPM25: analytics.Round1(maxV),
			MinPM25: analytics.Round1(minV),
		},
	}, nil
}

// Anomalies evaluates every raw PM2.5 sample of the last hours hours against
// the node's fitted detector. The detector is not refit on the window.
func (s *Service) Anomalies(ctx context.Context, nodeID string, hours int) (*AnomalyReport, error) {
	if err := validateQuery(nodeID, hours); err != nil {
		return nil, err
	}

	points, err := s.readings.PM25Points(ctx, nodeID, s.since(hours))
	if err != nil {
		return nil, err
	}
	if len(points) == 0 {
		return nil, types.NewAppError(types.ErrCodeNotFoundReading,
			fmt.Sprintf("no readings for %s in the last %dh", nodeID, hours), nil)
	}

	m, err := s.models(ctx, nodeID)
	if err != nil {
		return nil, err
	}

	var flagged []AnomalyPoint
	for _, p := range points {
		if anomalous, score := m.detector.Detect(p.PM25); anomalous {
			flagged = append(flagged, AnomalyPoint{Time: p.RecordedAt.In(s.loc), PM25: p.PM25, Score: score})
		}
	}
	count := len(flagged)
	if len(flagged) > MaxAnomalyPoints {
		flagged = flagged[len(flagged)-MaxAnomalyPoints:]
	}
	if flagged == nil {
		flagged = []AnomalyPoint{}
	}

	stats := m.detector.Stats()
	return &AnomalyReport{
		NodeID:       nodeID,
		Hours:        hours,
		TotalPoints:  len(points),
		AnomalyCount: count,
		AnomalyRate:  analytics.Round1(float64(count) / float64(len(points)) * 100),
		Anomalies:    flagged,
		Detector: DetectorInfo{
			Type:      DetectorType,
			Threshold: stats.Threshold,
			Mean:      analytics.Round1(stats.Mean),
			Std:       analytics.Round1(stats.StdDev),
			Fitted:    stats.Fitted,
		},
	}, nil
}

// History returns 5-minute means for nodeID over the last hours hours.
func (s *Service) History(ctx context.Context, nodeID string, hours int) (*History, error) {
	if err := validateQuery(nodeID, hours); err != nil {
		return nil, err
	}

	buckets, err := s.readings.Buckets(ctx, nodeID, s.since(hours), HistoryBucket)
	if err != nil {
		return nil, err
	}

	out := &History{NodeID: nodeID, Hours: hours, Data: make([]HistoryPoint, 0, len(buckets))}
	pm25 := make([]float64, 0, len(buckets))
	for _, b := range buckets {
		at := b.Start.In(s.loc)
		p := HistoryPoint{
			Time:      at,
			TimeLabel: at.Format(bucketLabelLayout),
			PM1:       analytics.Round1(b.PM1),
			PM25:      analytics.Round1(b.PM25),
			PM10:      analytics.Round1(b.PM10),
			AQI:       int(b.AQI),
		}
		out.Data = append(out.Data, p)
		pm25 = append(pm25, p.PM25)
	}

	if len(pm25) > 0 {
		out.Statistics = &HistoryStats{
			MinPM25: slices.Min(pm25),
			MaxPM25: slices.Max(pm25),
			AvgPM25: analytics.Round1(analytics.Mean(pm25)),
		}
	}
	return out, nil
}

// Compare returns 30-minute means for every node with data in the last
// hours hours.
func (s *Service) Compare(ctx context.Context, hours int) (*Comparison, error) {
	if err := types.ValidateQueryHours(hours); err != nil {
		return nil, err
	}

	buckets, err := s.readings.BucketsAllNodes(ctx, s.since(hours), CompareBucket)
	if err != nil {
		return nil, err
	}

	out := &Comparison{Hours: hours, Nodes: make(map[string][]ComparePoint)}
	for _, b := range buckets {
		at := b.Start.In(s.loc)
		out.Nodes[b.NodeID] = append(out.Nodes[b.NodeID], ComparePoint{
			Time:      at,
			TimeLabel: at.Format(bucketLabelLayout),
			PM25:      analytics.Round1(b.PM25),
			PM10:      analytics.Round1(b.PM10),
			AQI:       int(b.AQI),
		})
	}
	return out, nil
}

// Suggestions returns the tier presentation and guidance for nodeID's
// latest reading.
func (s *Service) Suggestions(ctx context.Context, nodeID string) (*aqi.TierInfo, error) {
	if err := types.ValidateNodeID(nodeID); err != nil {
		return nil, err
	}
	rd, err := s.latest.Latest(ctx, nodeID, s.clock.Now().Add(-s.statusMaxAge))
	if err != nil {
		return nil, err
	}
	info := aqi.Info(aqi.Classify(aqi.Compute(rd.PM25)))
	return &info, nil
}

// Standards returns the reference limits, alert thresholds and breakpoints.
func (s *Service) Standards() StandardsInfo {
	return StandardsInfo{
		Source:          aqi.StandardsSource,
		Standards:       aqi.Standards(),
		AlertThresholds: aqi.AlertThresholds(),
		Breakpoints:     append(aqi.Table(nil), aqi.DefaultTable...),
	}
}

// Nodes lists nodes that reported in the last 24 hours with their latest
// evaluation, ordered by node ID.
func (s *Service) Nodes(ctx context.Context) ([]NodeInfo, error) {
	ids, err := s.readings.ActiveNodes(ctx, s.clock.Now().Add(-NodesWindow))
	if err != nil {
		return nil, err
	}
	sort.Strings(ids)

	out := make([]NodeInfo, len(ids))
	for i, id := range ids {
		out[i] = NodeInfo{NodeID: id}
		if snap, ok := s.snapshot(id); ok {
			evaluated := snap.EvaluatedAt.In(s.loc)
			index := snap.AQI
			out[i].EvaluatedAt = &evaluated
			out[i].AQI = &index
			out[i].Level = snap.Tier
			out[i].Anomalous = snap.Anomalous
		}
	}
	return out, nil
}

// models returns the node's published models, or fits fresh ones from
// storage when the node has no snapshot.
func (s *Service) models(ctx context.Context, nodeID string) (models, error) {
	if snap, ok := s.snapshot(nodeID); ok && snap.Forecaster != nil {
		return models{detector: snap.Detector, forecaster: snap.Forecaster}, nil
	}

	history, err := s.readings.HourlyPM25(ctx, nodeID, s.clock.Now().Add(-s.historyWindow))
	if err != nil {
		return models{}, err
	}
	s.logger.DebugContext(ctx, "fitted models on demand", "node_id", nodeID, "samples", len(history))

	m := models{detector: analytics.NewAnomalyDetector(), forecaster: &analytics.Forecaster{}}
	m.detector.Fit(history)
	m.forecaster.Fit(history)
	return m, nil
}

func (s *Service) snapshot(nodeID string) (scheduler.NodeSnapshot, bool) {
	if s.snapshots == nil {
		return scheduler.NodeSnapshot{}, false
	}
	return s.snapshots.Snapshot(nodeID)
}

func (s *Service) since(hours int) time.Time {
	return s.clock.Now().Add(-time.Duration(hours) * time.Hour)
}

func validateQuery(nodeID string, hours int) error {
	if err := types.ValidateNodeID(nodeID); err != nil {
		return err
	}
	return types.ValidateQueryHours(hours)
}
