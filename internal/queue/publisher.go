// Package queue moves AirWatch messages through SQS: it publishes alert
// events for downstream consumers and consumes sensor readings for ingestion,
// either by long polling or as a Lambda SQS event source.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqsTypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"airwatch/internal/alerting"
	"airwatch/internal/types"
)

// SQSSender abstracts the SQS SendMessage operation for testability.
// Production code uses the *sqs.Client from aws-sdk-go-v2.
type SQSSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// AlertPublisher implements alerting.EventPublisher by sending each event as
// a JSON message to the alert events queue.
type AlertPublisher struct {
	client   SQSSender
	queueURL string
	logger   *slog.Logger
}

// NewAlertPublisher creates an AlertPublisher for queueURL.
func NewAlertPublisher(client SQSSender, queueURL string, logger *slog.Logger) *AlertPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &AlertPublisher{
		client:   client,
		queueURL: queueURL,
		logger:   logger,
	}
}

// PublishAlert sends event to the queue. The node and tier travel as message
// attributes so subscribers can filter without parsing the body.
func (p *AlertPublisher) PublishAlert(ctx context.Context, event alerting.AlertEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("queue: failed to marshal AlertEvent: %w", err)
	}

	attrs := map[string]sqsTypes.MessageAttributeValue{
		"node_id": stringAttr(event.NodeID),
		"level":   stringAttr(string(event.Tier)),
	}
	if traceID := types.GetRequestID(ctx); traceID != "" {
		attrs["trace_id"] = stringAttr(traceID)
	}

	_, err = p.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:          aws.String(p.queueURL),
		MessageBody:       aws.String(string(body)),
		MessageAttributes: attrs,
	})
	if err != nil {
		return fmt.Errorf("queue: failed to send AlertEvent to %s: %w", p.queueURL, err)
	}

	p.logger.InfoContext(ctx, "alert event published",
		"queue_url", p.queueURL,
		"alert_id", event.AlertID,
		"node_id", event.NodeID,
		"level", string(event.Tier),
		"delivered", event.Delivered,
	)
	return nil
}

func stringAttr(v string) sqsTypes.MessageAttributeValue {
	return sqsTypes.MessageAttributeValue{
		DataType:    aws.String("String"),
		StringValue: aws.String(v),
	}
}

var _ alerting.EventPublisher = (*AlertPublisher)(nil)
