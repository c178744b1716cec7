package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"airwatch/internal/types"
)

// MessageHandler processes one message body.
//
// A nil return acknowledges the message. An error rejected by IsPermanent
// leaves the message on the queue for redelivery; a permanent error drops it.
type MessageHandler interface {
	HandleMessage(ctx context.Context, body []byte) error
}

// HandlerFunc adapts a function to MessageHandler.
type HandlerFunc func(ctx context.Context, body []byte) error

// HandleMessage calls f.
func (f HandlerFunc) HandleMessage(ctx context.Context, body []byte) error {
	return f(ctx, body)
}

// IsPermanent reports whether err describes a message that will never
// succeed, i.e. an AppError in the 4xx range such as a validation failure.
func IsPermanent(err error) bool {
	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		return false
	}
	status := appErr.HTTPStatus()
	return status >= http.StatusBadRequest && status < http.StatusInternalServerError
}

// SQSReceiver is the subset of the SQS client used by Consumer.
type SQSReceiver interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// ConsumerConfig tunes the long-poll loop. Zero values take the defaults.
type ConsumerConfig struct {
	QueueURL          string
	MaxMessages       int32         // default 10, the SQS maximum
	WaitTime          time.Duration // default 20s, the SQS maximum
	VisibilityTimeout time.Duration // default 30s
	ErrorBackoff      time.Duration // pause after a failed receive, default 5s
	Logger            *slog.Logger
}

// Consumer long-polls an SQS queue and hands each message to a handler.
type Consumer struct {
	client  SQSReceiver
	handler MessageHandler
	cfg     ConsumerConfig
	logger  *slog.Logger
	sleep   func(context.Context, time.Duration)
}

// NewConsumer creates a Consumer.
func NewConsumer(client SQSReceiver, handler MessageHandler, cfg ConsumerConfig) *Consumer {
	if cfg.MaxMessages <= 0 || cfg.MaxMessages > 10 {
		cfg.MaxMessages = 10
	}
	if cfg.WaitTime <= 0 || cfg.WaitTime > 20*time.Second {
		cfg.WaitTime = 20 * time.Second
	}
	if cfg.VisibilityTimeout <= 0 {
		cfg.VisibilityTimeout = 30 * time.Second
	}
	if cfg.ErrorBackoff <= 0 {
		cfg.ErrorBackoff = 5 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{
		client:  client,
		handler: handler,
		cfg:     cfg,
		logger:  logger.With("queue_url", cfg.QueueURL),
		sleep:   pause,
	}
}

// Run polls until ctx is cancelled. A failed receive is logged and retried
// after ErrorBackoff; it never stops the loop.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.InfoContext(ctx, "queue consumer started")
	for {
		if ctx.Err() != nil {
			c.logger.InfoContext(ctx, "queue consumer stopped")
			return nil
		}
		if _, err := c.Poll(ctx); err != nil {
			if ctx.Err() != nil {
				continue
			}
			c.logger.ErrorContext(ctx, "receive failed", "error", err)
			c.sleep(ctx, c.cfg.ErrorBackoff)
		}
	}
}

// PollResult counts what one Poll did with the messages it received.
type PollResult struct {
	Received  int
	Processed int
	Dropped   int
	Retried   int
}

// Poll performs one receive and processes the returned messages in order.
func (c *Consumer) Poll(ctx context.Context) (PollResult, error) {
	var res PollResult

	out, err := c.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(c.cfg.QueueURL),
		MaxNumberOfMessages: c.cfg.MaxMessages,
		WaitTimeSeconds:     int32(c.cfg.WaitTime / time.Second),
		VisibilityTimeout:   int32(c.cfg.VisibilityTimeout / time.Second),
	})
	if err != nil {
		return res, fmt.Errorf("queue: receive from %s: %w", c.cfg.QueueURL, err)
	}
	res.Received = len(out.Messages)

	for _, msg := range out.Messages {
		messageID := aws.ToString(msg.MessageId)
		herr := c.handler.HandleMessage(ctx, []byte(aws.ToString(msg.Body)))

		switch {
		case herr == nil:
			res.Processed++
		case IsPermanent(herr):
			res.Dropped++
			c.logger.WarnContext(ctx, "dropping message",
				"message_id", messageID,
				"error", herr,
			)
		default:
			// Left invisible until the visibility timeout lapses, then redelivered.
			res.Retried++
			c.logger.ErrorContext(ctx, "message processing failed; will be redelivered",
				"message_id", messageID,
				"error", herr,
			)
			continue
		}

		if _, err := c.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
			QueueUrl:      aws.String(c.cfg.QueueURL),
			ReceiptHandle: msg.ReceiptHandle,
		}); err != nil {
			c.logger.ErrorContext(ctx, "delete failed; message will be redelivered",
				"message_id", messageID,
				"error", err,
			)
		}
	}

	return res, nil
}

func pause(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
