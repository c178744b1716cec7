package queue

import (
	"context"
	"log/slog"

	"github.com/aws/aws-lambda-go/events"
)

// BatchHandler adapts a MessageHandler to the Lambda SQS event source. It
// uses partial batch responses: only records that failed transiently are
// reported back, so SQS redelivers those and deletes the rest.
type BatchHandler struct {
	handler MessageHandler
	logger  *slog.Logger
}

// NewBatchHandler creates a BatchHandler.
func NewBatchHandler(handler MessageHandler, logger *slog.Logger) *BatchHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &BatchHandler{handler: handler, logger: logger}
}

// Handle processes every record in the event.
func (h *BatchHandler) Handle(ctx context.Context, event events.SQSEvent) (events.SQSEventResponse, error) {
	response := events.SQSEventResponse{}

	for _, record := range event.Records {
		err := h.handler.HandleMessage(ctx, []byte(record.Body))
		if err == nil {
			continue
		}
		if IsPermanent(err) {
			h.logger.WarnContext(ctx, "dropping message",
				"message_id", record.MessageId,
				"error", err,
			)
			continue
		}
		h.logger.ErrorContext(ctx, "failed to process SQS message",
			"message_id", record.MessageId,
			"error", err,
		)
		response.BatchItemFailures = append(response.BatchItemFailures,
			events.SQSBatchItemFailure{ItemIdentifier: record.MessageId},
		)
	}

	return response, nil
}
