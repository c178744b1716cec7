package telemetry

import (
	"context"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"airwatch/internal/types"
)

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

var _ Recorder = (*CloudWatchRecorder)(nil)

// CloudWatchRecorder emits each observation as a PutMetricData call. Every
// datum carries a Service dimension. Failures are logged and dropped; metrics
// never fail the operation being measured.
type CloudWatchRecorder struct {
	client    CloudWatchClient
	namespace string
	service   string
	logger    *slog.Logger
}

// NewCloudWatchRecorder creates a recorder publishing to namespace.
func NewCloudWatchRecorder(client CloudWatchClient, namespace, service string, logger *slog.Logger) *CloudWatchRecorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &CloudWatchRecorder{
		client:    client,
		namespace: namespace,
		service:   service,
		logger:    logger,
	}
}

func (m *CloudWatchRecorder) ObserveCycle(ctx context.Context, d time.Duration, evaluated, failed int) {
	m.put(ctx,
		m.datum(types.MetricCycleDuration, float64(d.Milliseconds()), cwtypes.StandardUnitMilliseconds),
		m.datum(types.MetricNodesEvaluated, float64(evaluated), cwtypes.StandardUnitCount),
		m.datum(types.MetricNodesFailed, float64(failed), cwtypes.StandardUnitCount),
	)
}

func (m *CloudWatchRecorder) RecordTier(ctx context.Context, tier string) {
	m.put(ctx, m.datum(types.MetricTierEvaluation, 1, cwtypes.StandardUnitCount, types.DimTier, tier))
}

func (m *CloudWatchRecorder) RecordAnomaly(ctx context.Context) {
	m.put(ctx, m.datum(types.MetricAnomalyDetected, 1, cwtypes.StandardUnitCount))
}

func (m *CloudWatchRecorder) RecordAlert(ctx context.Context, outcome string) {
	name := types.MetricAlertDispatched
	if outcome != AlertDispatched {
		name = types.MetricAlertSuppressed
	}
	m.put(ctx, m.datum(name, 1, cwtypes.StandardUnitCount, types.DimOutcome, outcome))
}

func (m *CloudWatchRecorder) RecordDelivery(ctx context.Context, outcome string) {
	data := []cwtypes.MetricDatum{
		m.datum(types.MetricDeliveryAttempt, 1, cwtypes.StandardUnitCount, types.DimOutcome, outcome),
	}
	switch outcome {
	case OutcomeSuccess:
		data = append(data, m.datum(types.MetricDeliverySuccess, 1, cwtypes.StandardUnitCount))
	case OutcomeUnregistered:
		data = append(data, m.datum(types.MetricTokenPruned, 1, cwtypes.StandardUnitCount))
	default:
		data = append(data, m.datum(types.MetricDeliveryFailed, 1, cwtypes.StandardUnitCount))
	}
	m.put(ctx, data...)
}

func (m *CloudWatchRecorder) RecordIngest(ctx context.Context, accepted, rejected int) {
	m.put(ctx,
		m.datum(types.MetricReadingsIngested, float64(accepted), cwtypes.StandardUnitCount),
		m.datum(types.MetricReadingsRejected, float64(rejected), cwtypes.StandardUnitCount),
	)
}

// RecordRequest emits the API latency metric with Method, Endpoint and Status
// dimensions. It runs on the request path, so it uses a short detached context.
func (m *CloudWatchRecorder) RecordRequest(method, endpoint, status string, d time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	m.put(ctx, m.datum(types.MetricAPILatency, float64(d.Milliseconds()), cwtypes.StandardUnitMilliseconds,
		types.DimMethod, method, types.DimEndpoint, endpoint, types.DimStatus, status))
}

// datum builds a metric datum. dims are name/value pairs.
func (m *CloudWatchRecorder) datum(name string, value float64, unit cwtypes.StandardUnit, dims ...string) cwtypes.MetricDatum {
	dimensions := []cwtypes.Dimension{
		{Name: aws.String(types.DimService), Value: aws.String(m.service)},
	}
	for i := 0; i+1 < len(dims); i += 2 {
		dimensions = append(dimensions, cwtypes.Dimension{
			Name:  aws.String(dims[i]),
			Value: aws.String(dims[i+1]),
		})
	}
	return cwtypes.MetricDatum{
		MetricName: aws.String(name),
		Value:      aws.Float64(value),
		Unit:       unit,
		Dimensions: dimensions,
	}
}

func (m *CloudWatchRecorder) put(ctx context.Context, data ...cwtypes.MetricDatum) {
	input := &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(m.namespace),
		MetricData: data,
	}
	if _, err := m.client.PutMetricData(ctx, input); err != nil {
		m.logger.ErrorContext(ctx, "failed to put metric data",
			"error", err.Error(),
			"metric", aws.ToString(data[0].MetricName),
		)
	}
}
