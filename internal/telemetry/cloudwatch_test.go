package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"airwatch/internal/types"
)

// mockCloudWatchClient records PutMetricData calls for verification.
type mockCloudWatchClient struct {
	calls     []*cloudwatch.PutMetricDataInput
	returnErr error
}

func (m *mockCloudWatchClient) PutMetricData(_ context.Context, params *cloudwatch.PutMetricDataInput, _ ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	m.calls = append(m.calls, params)
	if m.returnErr != nil {
		return nil, m.returnErr
	}
	return &cloudwatch.PutMetricDataOutput{}, nil
}

func dimension(t *testing.T, dims []cwtypes.Dimension, name string) string {
	t.Helper()
	for _, d := range dims {
		if aws.ToString(d.Name) == name {
			return aws.ToString(d.Value)
		}
	}
	t.Fatalf("dimension %q not found", name)
	return ""
}

func TestCloudWatchRecorder_RecordTier(t *testing.T) {
	cw := &mockCloudWatchClient{}
	r := NewCloudWatchRecorder(cw, "AirWatch", "airwatch", nil)

	r.RecordTier(context.Background(), "bad")

	require.Len(t, cw.calls, 1)
	input := cw.calls[0]
	assert.Equal(t, "AirWatch", aws.ToString(input.Namespace))
	require.Len(t, input.MetricData, 1)
	datum := input.MetricData[0]
	assert.Equal(t, types.MetricTierEvaluation, aws.ToString(datum.MetricName))
	assert.Equal(t, cwtypes.StandardUnitCount, datum.Unit)
	assert.Equal(t, "bad", dimension(t, datum.Dimensions, types.DimTier))
	assert.Equal(t, "airwatch", dimension(t, datum.Dimensions, types.DimService))
}

func TestCloudWatchRecorder_ObserveCycle_BatchesData(t *testing.T) {
	cw := &mockCloudWatchClient{}
	r := NewCloudWatchRecorder(cw, "AirWatch", "airwatch", nil)

	r.ObserveCycle(context.Background(), 250*time.Millisecond, 7, 2)

	require.Len(t, cw.calls, 1)
	data := cw.calls[0].MetricData
	require.Len(t, data, 3)
	assert.Equal(t, 250.0, aws.ToFloat64(data[0].Value))
	assert.Equal(t, cwtypes.StandardUnitMilliseconds, data[0].Unit)
	assert.Equal(t, 7.0, aws.ToFloat64(data[1].Value))
	assert.Equal(t, 2.0, aws.ToFloat64(data[2].Value))
}

func TestCloudWatchRecorder_RecordDelivery_Outcomes(t *testing.T) {
	tests := []struct {
		outcome string
		want    string
	}{
		{OutcomeSuccess, types.MetricDeliverySuccess},
		{OutcomeUnregistered, types.MetricTokenPruned},
		{OutcomeFailed, types.MetricDeliveryFailed},
	}

	for _, tt := range tests {
		t.Run(tt.outcome, func(t *testing.T) {
			cw := &mockCloudWatchClient{}
			r := NewCloudWatchRecorder(cw, "AirWatch", "airwatch", nil)

			r.RecordDelivery(context.Background(), tt.outcome)

			require.Len(t, cw.calls, 1)
			data := cw.calls[0].MetricData
			require.Len(t, data, 2)
			assert.Equal(t, types.MetricDeliveryAttempt, aws.ToString(data[0].MetricName))
			assert.Equal(t, tt.outcome, dimension(t, data[0].Dimensions, types.DimOutcome))
			assert.Equal(t, tt.want, aws.ToString(data[1].MetricName))
		})
	}
}

func TestCloudWatchRecorder_RecordRequest_Dimensions(t *testing.T) {
	cw := &mockCloudWatchClient{}
	r := NewCloudWatchRecorder(cw, "AirWatch", "airwatch", nil)

	r.RecordRequest("GET", "/v1/nodes/{nodeID}/status", "404", 12*time.Millisecond)

	require.Len(t, cw.calls, 1)
	datum := cw.calls[0].MetricData[0]
	assert.Equal(t, types.MetricAPILatency, aws.ToString(datum.MetricName))
	assert.Equal(t, "GET", dimension(t, datum.Dimensions, types.DimMethod))
	assert.Equal(t, "/v1/nodes/{nodeID}/status", dimension(t, datum.Dimensions, types.DimEndpoint))
	assert.Equal(t, "404", dimension(t, datum.Dimensions, types.DimStatus))
}

func TestCloudWatchRecorder_ErrorIsSwallowed(t *testing.T) {
	cw := &mockCloudWatchClient{returnErr: errors.New("throttled")}
	r := NewCloudWatchRecorder(cw, "AirWatch", "airwatch", nil)

	assert.NotPanics(t, func() {
		r.RecordAnomaly(context.Background())
	})
	assert.Len(t, cw.calls, 1)
}
