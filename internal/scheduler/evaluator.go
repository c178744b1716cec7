// Package scheduler drives the periodic evaluation cycle: for every active
// node it classifies the latest reading, keeps the node's anomaly detector and
// forecaster fitted to recent history, publishes a snapshot for the read path
// and hands eligible tiers to the alert dispatcher.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"airwatch/internal/alerting"
	"airwatch/internal/aqi"
	"airwatch/internal/telemetry"
	"airwatch/internal/types"
)

// Defaults applied by NewEvaluator to zero-valued Config fields.
const (
	DefaultInterval        = 60 * time.Second
	DefaultRetrainInterval = time.Hour
	DefaultNodeTimeout     = 30 * time.Second
	DefaultWorkers         = 4
	DefaultActiveWindow    = 5 * time.Minute
	DefaultReadingMaxAge   = 5 * time.Minute
	DefaultHistoryWindow   = 168 * time.Hour
	DefaultShutdownGrace   = 10 * time.Second
)

// ErrNoRecentReading marks a node skipped because it has no reading inside
// the freshness window.
var ErrNoRecentReading = errors.New("no recent reading")

// ReadingSource lists active nodes and their history.
type ReadingSource interface {
	ActiveNodes(ctx context.Context, since time.Time) ([]string, error)
	HourlyPM25(ctx context.Context, nodeID string, since time.Time) ([]float64, error)
}

// LatestSource returns a node's newest reading recorded after since. A missing
// reading is an ErrCodeNotFoundReading AppError.
type LatestSource interface {
	Latest(ctx context.Context, nodeID string, since time.Time) (types.Reading, error)
}

// AlertDispatcher decides whether an evaluated tier results in a notification.
type AlertDispatcher interface {
	EvaluateAndMaybeAlert(ctx context.Context, nodeID string, tier aqi.Tier, m alerting.Measurement, now time.Time) bool
}

// MetricsRecorder is the subset of telemetry the evaluator emits.
type MetricsRecorder interface {
	ObserveCycle(ctx context.Context, duration time.Duration, evaluated, failed int)
	RecordTier(ctx context.Context, tier string)
	RecordAnomaly(ctx context.Context)
}

// Config holds the evaluator's collaborators and timing. Readings, Latest
// and Dispatcher are required.
type Config struct {
	Readings   ReadingSource
	Latest     LatestSource
	Dispatcher AlertDispatcher
	State      *StateStore

	Interval        time.Duration
	RetrainInterval time.Duration
	NodeTimeout     time.Duration
	Workers         int
	ActiveWindow    time.Duration
	ReadingMaxAge   time.Duration
	HistoryWindow   time.Duration
	ShutdownGrace   time.Duration

	Clock   types.Clock
	Metrics MetricsRecorder
	Logger  *slog.Logger
}

// Evaluator runs evaluation cycles.
type Evaluator struct {
	readings   ReadingSource
	latest     LatestSource
	dispatcher AlertDispatcher
	state      *StateStore

	interval        time.Duration
	retrainInterval time.Duration
	nodeTimeout     time.Duration
	workers         int
	activeWindow    time.Duration
	readingMaxAge   time.Duration
	historyWindow   time.Duration
	shutdownGrace   time.Duration

	clock   types.Clock
	metrics MetricsRecorder
	logger  *slog.Logger
}

// NewEvaluator creates an Evaluator, filling defaults for zero fields.
func NewEvaluator(cfg Config) *Evaluator {
	e := &Evaluator{
		readings:        cfg.Readings,
		latest:          cfg.Latest,
		dispatcher:      cfg.Dispatcher,
		state:           cfg.State,
		interval:        orDefault(cfg.Interval, DefaultInterval),
		retrainInterval: orDefault(cfg.RetrainInterval, DefaultRetrainInterval),
		nodeTimeout:     orDefault(cfg.NodeTimeout, DefaultNodeTimeout),
		workers:         cfg.Workers,
		activeWindow:    orDefault(cfg.ActiveWindow, DefaultActiveWindow),
		readingMaxAge:   orDefault(cfg.ReadingMaxAge, DefaultReadingMaxAge),
		historyWindow:   orDefault(cfg.HistoryWindow, DefaultHistoryWindow),
		shutdownGrace:   orDefault(cfg.ShutdownGrace, DefaultShutdownGrace),
		clock:           cfg.Clock,
		metrics:         cfg.Metrics,
		logger:          cfg.Logger,
	}
	if e.state == nil {
		e.state = NewStateStore()
	}
	if e.workers <= 0 {
		e.workers = DefaultWorkers
	}
	if e.clock == nil {
		e.clock = types.RealClock{}
	}
	if e.metrics == nil {
		e.metrics = telemetry.Nop{}
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	return e
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

// State returns the store the evaluator publishes snapshots to.
func (e *Evaluator) State() *StateStore {
	return e.state
}

// CycleResult summarizes one cycle.
type CycleResult struct {
	Active    int
	Evaluated int
	Skipped   int
	Failed    int
	Duration  time.Duration
}

// Run evaluates immediately and then every interval until ctx is cancelled.
//
// A cycle that is running when ctx is cancelled continues on a detached
// context for up to the shutdown grace period and is then cancelled, so
// notifications in flight get a chance to finish. Run returns once that
// cycle has ended.
func (e *Evaluator) Run(ctx context.Context) error {
	e.logger.InfoContext(ctx, "evaluator started",
		"interval", e.interval.String(),
		"workers", e.workers,
		"retrain_interval", e.retrainInterval.String(),
	)

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		e.runDetached(ctx)

		select {
		case <-ctx.Done():
			e.logger.InfoContext(context.WithoutCancel(ctx), "evaluator stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// runDetached runs one cycle on a context that outlives parent by at most
// the shutdown grace.
func (e *Evaluator) runDetached(parent context.Context) CycleResult {
	if parent.Err() != nil {
		return CycleResult{}
	}

	cycleCtx, cancel := context.WithCancel(context.WithoutCancel(parent))
	defer cancel()

	stop := context.AfterFunc(parent, func() {
		e.logger.InfoContext(cycleCtx, "shutdown requested, finishing in-flight cycle", "grace", e.shutdownGrace.String())
		timer := time.NewTimer(e.shutdownGrace)
		defer timer.Stop()
		select {
		case <-timer.C:
			e.logger.WarnContext(cycleCtx, "shutdown grace elapsed, cancelling cycle")
			cancel()
		case <-cycleCtx.Done():
		}
	})
	defer stop()

	return e.RunCycle(cycleCtx)
}

// RunCycle evaluates every active node once. Node failures are logged and
// counted; they never stop other nodes.
func (e *Evaluator) RunCycle(ctx context.Context) CycleResult {
	start := e.clock.Now()
	began := time.Now()

	nodes, err := e.readings.ActiveNodes(ctx, start.Add(-e.activeWindow))
	if err != nil {
		e.logger.ErrorContext(ctx, "failed to list active nodes",
			"error_code", string(types.ErrCodeUpstreamStorage),
			"error", err,
		)
		res := CycleResult{Duration: time.Since(began)}
		e.metrics.ObserveCycle(ctx, res.Duration, 0, 0)
		return res
	}

	var evaluated, skipped, failed atomic.Int64

	g := new(errgroup.Group)
	g.SetLimit(e.workers)
	for _, nodeID := range nodes {
		if ctx.Err() != nil {
			failed.Add(1)
			continue
		}
		g.Go(func() error {
			nodeCtx, cancel := context.WithTimeout(ctx, e.nodeTimeout)
			defer cancel()

			_, err := e.EvaluateNode(nodeCtx, nodeID, start)
			switch {
			case err == nil:
				evaluated.Add(1)
			case errors.Is(err, ErrNoRecentReading):
				skipped.Add(1)
				e.logger.DebugContext(ctx, "node skipped", "node_id", nodeID, "reason", err.Error())
			default:
				failed.Add(1)
				e.logger.ErrorContext(ctx, "node evaluation failed", "node_id", nodeID, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()

	res := CycleResult{
		Active:    len(nodes),
		Evaluated: int(evaluated.Load()),
		Skipped:   int(skipped.Load()),
		Failed:    int(failed.Load()),
		Duration:  time.Since(began),
	}
	e.metrics.ObserveCycle(ctx, res.Duration, res.Evaluated, res.Failed)

	e.logger.InfoContext(ctx, "evaluation cycle complete",
		"active", res.Active,
		"evaluated", res.Evaluated,
		"skipped", res.Skipped,
		"failed", res.Failed,
		"duration_ms", res.Duration.Milliseconds(),
	)
	return res
}

// EvaluateNode evaluates one node at now and returns the published snapshot.
//
// The steps run in order: latest reading, AQI and tier, refit when due,
// anomaly detection, snapshot, dispatch. A node without a fresh reading
// returns ErrNoRecentReading. A failed history fetch returns an
// ErrCodeUpstreamStorage error and leaves the node for the next cycle.
func (e *Evaluator) EvaluateNode(ctx context.Context, nodeID string, now time.Time) (NodeSnapshot, error) {
	rd, err := e.latest.Latest(ctx, nodeID, now.Add(-e.readingMaxAge))
	if err != nil {
		if types.HasCode(err, types.ErrCodeNotFoundReading) {
			return NodeSnapshot{}, fmt.Errorf("%s: %w", nodeID, ErrNoRecentReading)
		}
		return NodeSnapshot{}, fmt.Errorf("latest reading: %w", err)
	}

	index := aqi.Compute(rd.PM25)
	tier := aqi.Classify(index)

	st := e.state.node(nodeID)
	snap, err := e.evaluateState(ctx, st, nodeID, rd, index, tier, now)
	if err != nil {
		return NodeSnapshot{}, err
	}

	e.metrics.RecordTier(ctx, string(tier))
	if snap.Anomalous {
		e.metrics.RecordAnomaly(ctx)
		e.logger.WarnContext(ctx, "anomalous reading",
			"node_id", nodeID,
			"pm2_5", rd.PM25,
			"score", snap.AnomalyScore,
		)
	}

	if tier.AlertEligible() {
		e.dispatcher.EvaluateAndMaybeAlert(ctx, nodeID, tier, alerting.Measurement{
			PM1:  rd.PM1,
			PM25: rd.PM25,
			PM10: rd.PM10,
			AQI:  index,
		}, now)
	}
	return snap, nil
}

// evaluateState refits st when due, runs detection and publishes the
// snapshot, all under the node lock.
func (e *Evaluator) evaluateState(ctx context.Context, st *NodeState, nodeID string, rd types.Reading, index int, tier aqi.Tier, now time.Time) (NodeSnapshot, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.needsFit(now, e.retrainInterval) {
		history, err := e.readings.HourlyPM25(ctx, nodeID, now.Add(-e.historyWindow))
		if err != nil {
			e.logger.WarnContext(ctx, "history fetch failed, node skipped",
				"node_id", nodeID,
				"error_code", string(types.ErrCodeUpstreamStorage),
				"error", err,
			)
			return NodeSnapshot{}, types.NewAppError(types.ErrCodeUpstreamStorage, "failed to fetch pm2.5 history for "+nodeID, err)
		}
		st.detector.Fit(history)
		st.forecaster.Fit(history)
		st.fittedAt = now
		e.logger.DebugContext(ctx, "node models refit",
			"node_id", nodeID,
			"samples", len(history),
			"detector_fitted", st.detector.Fitted(),
		)
	}

	anomalous, score := st.detector.Detect(rd.PM25)

	snap := NodeSnapshot{
		NodeID:       nodeID,
		EvaluatedAt:  now,
		Reading:      rd,
		AQI:          index,
		Tier:         tier,
		Anomalous:    anomalous,
		AnomalyScore: score,
		Detector:     st.detector,
		Forecaster:   st.forecaster.Clone(),
		FittedAt:     st.fittedAt,
	}
	st.publish(snap)
	return snap, nil
}
